package session

import (
	"context"
	"sync"
	"time"

	"github.com/resonantlabs/negotiator/toolerrors"
)

// ConfirmationGate is the one-shot completion primitive gating Stage 1's
// exit (spec §4.2): the user confirms the formulated demand exactly once,
// or the gate auto-confirms when its deadline elapses first. Either path
// closes the gate; neither can be taken twice.
type ConfirmationGate struct {
	once     sync.Once
	done     chan struct{}
	confirmed bool
	auto      bool
}

// NewConfirmationGate constructs an unclosed gate.
func NewConfirmationGate() *ConfirmationGate {
	return &ConfirmationGate{done: make(chan struct{})}
}

// Confirm closes the gate as a user-driven confirmation. A second call,
// whether from a racing user action or a racing timeout, is a no-op.
func (g *ConfirmationGate) Confirm() {
	g.once.Do(func() {
		g.confirmed = true
		close(g.done)
	})
}

// Wait blocks until the gate closes (by Confirm or by timeout elapsing),
// or until ctx is cancelled. It returns whether the negotiation should
// proceed as confirmed, and whether the confirmation was auto-triggered by
// the timeout rather than by the user.
func (g *ConfirmationGate) Wait(ctx context.Context, timeout time.Duration) (confirmed, auto bool, err error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-g.done:
		return g.confirmed, g.auto, nil
	case <-timer.C:
		g.once.Do(func() {
			g.confirmed = true
			g.auto = true
			close(g.done)
		})
		return g.confirmed, g.auto, nil
	case <-ctx.Done():
		return false, false, ctx.Err()
	}
}

// entry pairs a Session with the bookkeeping the Store needs that does not
// belong on the aggregate itself: its confirmation gate and whether a
// WebSocket subscriber is live (mirrored from the Event Bus so the
// Store can apply its destruction rule without taking a dependency on
// events.Bus).
type entry struct {
	mu        sync.RWMutex
	session   *Session
	gate      *ConfirmationGate
	subscribed bool
}

// Store is the in-memory Session Store: negotiation_id -> Session, plus
// each session's confirmation gate. Spec §3/§9 Non-goal: no cross-process
// durability. A process restart loses every in-flight negotiation; this is
// by design, not an oversight.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Create registers a new Session and its confirmation gate, returning
// both. It is an error to Create a negotiation id that already exists.
func (s *Store) Create(sess *Session) (*ConfirmationGate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[sess.NegotiationID]; exists {
		return nil, toolerrors.NewEngineError("negotiation already exists", toolerrors.Context{
			NegotiationID: sess.NegotiationID,
		}, nil)
	}
	gate := NewConfirmationGate()
	s.entries[sess.NegotiationID] = &entry{session: sess, gate: gate}
	return gate, nil
}

// Get returns the Session for negotiationID, or nil if unknown.
func (s *Store) Get(negotiationID string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[negotiationID]
	if !ok {
		return nil
	}
	return e.session
}

// Gate returns the confirmation gate for negotiationID, or nil if unknown.
func (s *Store) Gate(negotiationID string) *ConfirmationGate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[negotiationID]
	if !ok {
		return nil
	}
	return e.gate
}

// SetSubscribed records whether negotiationID currently has at least one
// live event subscriber, for use by MaybeDestroy.
func (s *Store) SetSubscribed(negotiationID string, subscribed bool) {
	s.mu.RLock()
	e, ok := s.entries[negotiationID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.subscribed = subscribed
	e.mu.Unlock()
}

// MaybeDestroy removes negotiationID from the Store if it has completed,
// has no live subscribers, and is not referenced as another negotiation's
// parent (spec §3's session lifecycle rule). It returns whether the
// session was removed.
func (s *Store) MaybeDestroy(negotiationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[negotiationID]
	if !ok {
		return false
	}
	e.mu.RLock()
	subscribed := e.subscribed
	sess := e.session
	e.mu.RUnlock()

	if sess.State != StateCompleted || subscribed {
		return false
	}
	for _, other := range s.entries {
		if other.session.ParentNegotiationID == negotiationID {
			return false
		}
	}
	delete(s.entries, negotiationID)
	return true
}

// All returns every live Session, in no particular order. No HTTP route
// lists negotiations through it.
func (s *Store) All() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.session)
	}
	return out
}
