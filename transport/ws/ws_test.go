package ws_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonantlabs/negotiator/events"
	"github.com/resonantlabs/negotiator/session"
	"github.com/resonantlabs/negotiator/transport/ws"
)

func newTestWSServer(t *testing.T, h *ws.Handler) (string, func()) {
	t.Helper()
	r := mux.NewRouter()
	h.Register(r)
	srv := httptest.NewServer(r)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/"
	return url, srv.Close
}

func TestServe_UnknownNegotiationClosesWithCode4004(t *testing.T) {
	h := &ws.Handler{Store: session.NewStore(), Bus: events.New()}
	url, closeSrv := newTestWSServer(t, h)
	defer closeSrv()

	conn, _, err := websocket.DefaultDialer.Dial(url+"missing", nil)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close error, got %v", err)
	assert.Equal(t, 4004, closeErr.Code)
}

func TestServe_ReplaysEventHistoryThenBridgesBus(t *testing.T) {
	store := session.NewStore()
	bus := events.New()
	h := &ws.Handler{Store: store, Bus: bus}
	url, closeSrv := newTestWSServer(t, h)
	defer closeSrv()

	sess := session.New("nego-1", session.Demand{RawIntent: "ship it"}, 6)
	_, err := store.Create(sess)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), events.New(events.TypeFormulationReady, "nego-1", map[string]any{"formulated_text": "ship it"})))

	conn, _, err := websocket.DefaultDialer.Dial(url+"nego-1", nil)
	require.NoError(t, err)
	defer conn.Close()

	var replayed map[string]any
	require.NoError(t, conn.ReadJSON(&replayed))
	assert.Equal(t, "formulation.ready", replayed["type"])

	require.Eventually(t, func() bool {
		return bus.SubscriberCount("nego-1") == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), events.New(events.TypePlanReady, "nego-1", map[string]any{"plan": "done"})))

	var liveMsg map[string]any
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&liveMsg))
	assert.Equal(t, "plan.ready", liveMsg["type"])
}

func TestSubscribeWithHistory_ReturnsPriorEventsAndRegistersLiveSubscriber(t *testing.T) {
	bus := events.New()
	require.NoError(t, bus.Publish(context.Background(), events.New(events.TypeFormulationReady, "nego-2", map[string]any{"k": "v"})))

	history, sub := bus.SubscribeWithHistory("nego-2")
	defer sub.Close()

	require.Len(t, history, 1)
	assert.Equal(t, events.TypeFormulationReady, history[0].EventType)
	assert.Equal(t, 1, bus.SubscriberCount("nego-2"))
}
