// Package ws implements the WebSocket façade of spec §6.2: one connection
// per negotiation id, replaying event_history before bridging the live
// Event Bus subscription, grounded on the teacher's
// runtime/agent/stream/bridge.go translated from its hook-stream source
// to this module's events.Bus.
package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/resonantlabs/negotiator/events"
	"github.com/resonantlabs/negotiator/session"
)

// closeUnknownNegotiation is the WebSocket close code used when a client
// connects for a negotiation id the Store does not recognize (spec
// §6.2).
const closeUnknownNegotiation = 4004

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler bridges one negotiation's Event Bus subscription onto a
// WebSocket connection.
type Handler struct {
	Store *session.Store
	Bus   *events.Bus
}

// Register mounts the /ws/{negotiation_id} route onto r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/ws/{negotiation_id}", h.serve)
}

type wireEvent struct {
	Type          string         `json:"type"`
	NegotiationID string         `json:"negotiation_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Data          map[string]any `json:"data,omitempty"`
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	negotiationID := mux.Vars(r)["negotiation_id"]
	sess := h.Store.Get(negotiationID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if sess == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeUnknownNegotiation, "unknown negotiation"),
			time.Now().Add(time.Second))
		return
	}

	history, sub := h.Bus.SubscribeWithHistory(negotiationID)
	h.Store.SetSubscribed(negotiationID, true)
	defer func() {
		_ = sub.Close()
		h.Store.SetSubscribed(negotiationID, h.Bus.SubscriberCount(negotiationID) > 0)
		if h.Store.MaybeDestroy(negotiationID) {
			h.Bus.Forget(negotiationID)
		}
	}()

	for _, evt := range history {
		if err := conn.WriteJSON(toWireEvent(evt)); err != nil {
			return
		}
	}

	go h.drainClient(conn, sub)

	for evt := range sub.C() {
		if err := conn.WriteJSON(toWireEvent(evt)); err != nil {
			return
		}
	}
}

// drainClient discards anything the client sends (this façade is
// read-only) but must still read the connection so gorilla/websocket's
// control-frame handling (pings, close) keeps working, and so the read
// loop notices the client disconnecting.
func (h *Handler) drainClient(conn *websocket.Conn, sub *events.Subscriber) {
	defer sub.Close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func toWireEvent(evt events.Event) wireEvent {
	return wireEvent{
		Type:          string(evt.EventType),
		NegotiationID: evt.NegotiationID,
		Timestamp:     evt.Timestamp,
		Data:          evt.Data,
	}
}
