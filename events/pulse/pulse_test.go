package pulse_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonantlabs/negotiator/events"
	"github.com/resonantlabs/negotiator/events/pulse"
	streamopts "goa.design/pulse/streaming/options"
)

type fakeStream struct {
	added []string
	err   error
}

func (s *fakeStream) Add(_ context.Context, event string, payload []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.added = append(s.added, event+":"+string(payload))
	return "1-0", nil
}

type fakeClient struct {
	streams map[string]*fakeStream
	openErr error
}

func (c *fakeClient) Stream(name string, _ ...streamopts.Stream) (pulse.Stream, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	s, ok := c.streams[name]
	if !ok {
		s = &fakeStream{}
		c.streams[name] = s
	}
	return s, nil
}

func (c *fakeClient) Close(_ context.Context) error { return nil }

func TestNewSink_NilClientIsError(t *testing.T) {
	_, err := pulse.NewSink(nil)
	assert.Error(t, err)
}

func TestSend_PublishesToNegotiationStream(t *testing.T) {
	client := &fakeClient{streams: map[string]*fakeStream{}}
	sink, err := pulse.NewSink(client)
	require.NoError(t, err)

	evt := events.Event{
		EventType:     "round.started",
		NegotiationID: "nego-1",
		Timestamp:     time.Now(),
		Data:          map[string]any{"round": 1},
	}
	require.NoError(t, sink.Send(context.Background(), evt))

	stream := client.streams["negotiation/nego-1"]
	require.NotNil(t, stream)
	require.Len(t, stream.added, 1)
}

func TestSend_MissingNegotiationIDIsError(t *testing.T) {
	client := &fakeClient{streams: map[string]*fakeStream{}}
	sink, err := pulse.NewSink(client)
	require.NoError(t, err)

	err = sink.Send(context.Background(), events.Event{EventType: "x"})
	assert.Error(t, err)
}

func TestSend_PropagatesStreamOpenError(t *testing.T) {
	client := &fakeClient{streams: map[string]*fakeStream{}, openErr: assert.AnError}
	sink, err := pulse.NewSink(client)
	require.NoError(t, err)

	err = sink.Send(context.Background(), events.Event{EventType: "x", NegotiationID: "nego-1"})
	assert.Error(t, err)
}
