// Package events implements the per-session Event Bus: a typed, ordered
// event stream fanned out to subscribers with a bounded per-subscriber
// queue so one slow WebSocket client cannot block the Engine (spec §5).
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type enumerates the wire event types of spec §6.2.
type Type string

const (
	TypeFormulationReady      Type = "formulation.ready"
	TypeResonanceActivated    Type = "resonance.activated"
	TypeOfferReceived         Type = "offer.received"
	TypeBarrierComplete       Type = "barrier.complete"
	TypeCoordinatorToolCall   Type = "coordinator.tool_call"
	TypeSubNegotiationStarted Type = "sub_negotiation.started"
	TypePlanReady             Type = "plan.ready"
)

// Event is an immutable, typed, timestamped record broadcast on a
// session's channel and appended to its event_history.
type Event struct {
	EventType     Type
	NegotiationID string
	Timestamp     time.Time
	Data          map[string]any
}

// New constructs an Event stamped with the current wall-clock time.
func New(eventType Type, negotiationID string, data map[string]any) Event {
	return Event{EventType: eventType, NegotiationID: negotiationID, Timestamp: time.Now(), Data: data}
}

// AgentSummary is the shape carried by resonance.activated's agents[]
// field.
type AgentSummary struct {
	AgentID        string  `json:"agent_id"`
	DisplayName    string  `json:"display_name"`
	ResonanceScore float64 `json:"resonance_score"`
}

// DefaultQueueDepth is the recommended bounded send-side queue depth per
// subscriber (spec §5).
const DefaultQueueDepth = 128

// DefaultSendDeadline bounds how long the bus waits for a slow
// subscriber's queue to drain before dropping it, so a stuck subscriber
// can never head-of-line block the Engine.
const DefaultSendDeadline = 250 * time.Millisecond

// Subscriber receives events for one negotiation over a channel. Callers
// range over C() until it closes (on Close or on being dropped for being
// too slow).
type Subscriber struct {
	id       string
	ch       chan Event
	bus      *Bus
	negoID   string
	closeOne sync.Once
}

// ID returns the subscription handle.
func (s *Subscriber) ID() string { return s.id }

// C returns the channel events are delivered on.
func (s *Subscriber) C() <-chan Event { return s.ch }

// Close unregisters the subscriber. Idempotent and safe for concurrent
// use.
func (s *Subscriber) Close() error {
	s.closeOne.Do(func() {
		s.bus.remove(s.negoID, s.id)
		close(s.ch)
	})
	return nil
}

// Bus is a per-session fan-out event bus. The zero value is not usable;
// construct with New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*Subscriber // negotiationID -> subscriberID -> subscriber
	history     map[string][]Event                // negotiationID -> event_history, append-only
	sinks       []Sink
}

// Sink is an optional external delivery target for published events (e.g.
// a Pulse-backed relay for cross-process fan-out, see events/pulse). The
// Bus calls every configured Sink in addition to in-process subscribers;
// a Sink failure is returned from Publish once in-process delivery has
// been attempted, and never blocks that delivery.
type Sink interface {
	Send(ctx context.Context, evt Event) error
}

// New constructs an empty Bus, optionally forwarding every published event
// to the given sinks (order preserved).
func New(sinks ...Sink) *Bus {
	return &Bus{
		subscribers: make(map[string]map[string]*Subscriber),
		history:     make(map[string][]Event),
		sinks:       sinks,
	}
}

// Subscribe registers a new Subscriber for negotiationID with a bounded
// queue of DefaultQueueDepth. Callers that also need the negotiation's
// event_history replayed without missing or duplicating events across the
// snapshot-then-subscribe boundary must use SubscribeWithHistory instead.
func (b *Bus) Subscribe(negotiationID string) *Subscriber {
	sub := &Subscriber{
		id:     uuid.NewString(),
		ch:     make(chan Event, DefaultQueueDepth),
		bus:    b,
		negoID: negotiationID,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers[negotiationID] == nil {
		b.subscribers[negotiationID] = make(map[string]*Subscriber)
	}
	b.subscribers[negotiationID][sub.id] = sub
	return sub
}

// SubscribeWithHistory atomically returns negotiationID's event_history
// (in emit order, per spec's append-only ordering guarantee) together
// with a new live Subscriber, registered under the same lock as the
// history snapshot. This is the one call a new WebSocket connection must
// use instead of a bare Subscribe: taking the history copy and
// registering the subscriber as two separate locked sections would let an
// event published in between be either lost (never in the snapshot, sent
// before the subscriber was registered) or delivered twice.
func (b *Bus) SubscribeWithHistory(negotiationID string) ([]Event, *Subscriber) {
	sub := &Subscriber{
		id:     uuid.NewString(),
		ch:     make(chan Event, DefaultQueueDepth),
		bus:    b,
		negoID: negotiationID,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	history := append([]Event(nil), b.history[negotiationID]...)
	if b.subscribers[negotiationID] == nil {
		b.subscribers[negotiationID] = make(map[string]*Subscriber)
	}
	b.subscribers[negotiationID][sub.id] = sub
	return history, sub
}

func (b *Bus) remove(negotiationID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subscribers[negotiationID]; ok {
		delete(subs, subID)
		if len(subs) == 0 {
			delete(b.subscribers, negotiationID)
		}
	}
}

// Publish delivers evt to every subscriber registered for
// evt.NegotiationID, and to every configured Sink. Delivery to a
// subscriber whose queue is full for longer than DefaultSendDeadline
// drops that subscriber (closing its channel) rather than blocking the
// publisher — this is the Engine's single logical driving goroutine for
// the session, and it must never stall on a slow consumer.
//
// Publish itself never blocks longer than DefaultSendDeadline per
// subscriber and never returns an error for subscriber delivery; only
// Sink errors are returned, and only after all subscriber delivery has
// been attempted.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	b.mu.Lock()
	b.history[evt.NegotiationID] = append(b.history[evt.NegotiationID], evt)
	subs := make([]*Subscriber, 0, len(b.subscribers[evt.NegotiationID]))
	for _, s := range b.subscribers[evt.NegotiationID] {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- evt:
		case <-time.After(DefaultSendDeadline):
			_ = s.Close()
		}
	}

	var firstErr error
	for _, sink := range b.sinks {
		if err := sink.Send(ctx, evt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SubscriberCount reports how many live subscribers a negotiation
// currently has. Used by the Session Store's lifecycle rule ("destroyed
// when ... no subscriber reads from its event channel").
func (b *Bus) SubscriberCount(negotiationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[negotiationID])
}

// Forget discards negotiationID's retained event_history. Callers should
// invoke this only once the Session Store has actually destroyed the
// session (spec §3's lifecycle rule), since a live negotiation's history
// must remain replayable to a reconnecting subscriber at any point.
func (b *Bus) Forget(negotiationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.history, negotiationID)
}
