// Package pulse adapts events.Sink onto goa.design/pulse streams so a
// negotiation's event history can be relayed across processes (e.g. to a
// separate WebSocket gateway or the persistence sink) without the Engine
// knowing about Redis at all. It mirrors the layering the teacher uses for
// its own hook-event relay: callers build a Redis client, wrap it with
// pulse.New, and hand the resulting client to NewSink.
package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	"github.com/resonantlabs/negotiator/events"
)

type (
	// Client exposes the subset of goa.design/pulse streaming operations the
	// sink needs, so tests can substitute a fake without a live Redis.
	Client interface {
		Stream(name string, opts ...streamopts.Stream) (Stream, error)
		Close(ctx context.Context) error
	}

	// Stream is a single Pulse stream handle.
	Stream interface {
		Add(ctx context.Context, event string, payload []byte) (string, error)
	}

	client struct {
		redis *redis.Client
	}

	streamHandle struct {
		s *streaming.Stream
	}
)

// New wraps a Redis connection as a Pulse Client.
func New(rdb *redis.Client) Client {
	return &client{redis: rdb}
}

func (c *client) Stream(name string, opts ...streamopts.Stream) (Stream, error) {
	s, err := streaming.NewStream(name, c.redis, opts...)
	if err != nil {
		return nil, fmt.Errorf("open pulse stream %q: %w", name, err)
	}
	return &streamHandle{s: s}, nil
}

func (c *client) Close(_ context.Context) error {
	return nil
}

func (h *streamHandle) Add(ctx context.Context, event string, payload []byte) (string, error) {
	return h.s.Add(ctx, event, payload)
}

// Envelope wraps an events.Event for transmission over a Pulse stream.
type Envelope struct {
	Type          string         `json:"type"`
	NegotiationID string         `json:"negotiation_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Data          map[string]any `json:"data,omitempty"`
}

// Sink publishes events.Event values into one Pulse stream per
// negotiation, named "negotiation/<negotiation_id>".
type Sink struct {
	client Client
}

// NewSink constructs a Pulse-backed events.Sink.
func NewSink(c Client) (*Sink, error) {
	if c == nil {
		return nil, errors.New("pulse client is required")
	}
	return &Sink{client: c}, nil
}

// Send publishes evt to the negotiation's Pulse stream.
func (s *Sink) Send(ctx context.Context, evt events.Event) error {
	if evt.NegotiationID == "" {
		return errors.New("event missing negotiation id")
	}
	stream, err := s.client.Stream(streamName(evt.NegotiationID))
	if err != nil {
		return err
	}
	env := Envelope{
		Type:          string(evt.EventType),
		NegotiationID: evt.NegotiationID,
		Timestamp:     evt.Timestamp.UTC(),
		Data:          evt.Data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	_, err = stream.Add(ctx, env.Type, payload)
	return err
}

func streamName(negotiationID string) string {
	return "negotiation/" + negotiationID
}
