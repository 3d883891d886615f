// Package session implements the root aggregate of spec §3: the
// Negotiation Session, its Demand Snapshot, Agent Participants, and the
// Session Store that maps negotiation id to session plus the per-session
// confirmation gate and subscriber bookkeeping.
package session

import (
	"time"

	"github.com/resonantlabs/negotiator/trace"
)

// State is one of the Negotiation Engine's lifecycle states (spec §4.1).
type State string

const (
	StateCreated        State = "created"
	StateFormulating    State = "formulating"
	StateFormulated     State = "formulated"
	StateEncoding       State = "encoding"
	StateOffering       State = "offering"
	StateBarrierWaiting State = "barrier_waiting"
	StateSynthesizing   State = "synthesizing"
	StateCompleted      State = "completed"
)

// transitions enumerates every legal (from, to) pair of spec §4.1's table.
// Anything not listed here is rejected.
var transitions = map[State]map[State]bool{
	StateCreated:        {StateFormulating: true, StateCompleted: true},
	StateFormulating:    {StateFormulated: true, StateCompleted: true},
	StateFormulated:     {StateEncoding: true, StateCompleted: true},
	StateEncoding:       {StateOffering: true, StateCompleted: true},
	StateOffering:       {StateBarrierWaiting: true, StateCompleted: true},
	StateBarrierWaiting: {StateSynthesizing: true, StateCompleted: true},
	StateSynthesizing:   {StateSynthesizing: true, StateCompleted: true},
	StateCompleted:      {},
}

// CanTransition reports whether from -> to appears in spec §4.1's table.
func CanTransition(from, to State) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// ParticipantState is one Agent Participant's lifecycle state.
type ParticipantState string

const (
	ParticipantActive  ParticipantState = "active"
	ParticipantReplied ParticipantState = "replied"
	ParticipantExited  ParticipantState = "exited"
)

// Enrichments is the demand-formulation detail that distinguishes what a
// user asked for from what they actually need (spec §4.7).
type Enrichments struct {
	HardConstraints       []string
	NegotiablePreferences []string
	ContextAdded          string
}

// Demand is the Demand Snapshot taken at negotiation start. FormulatedText
// and Enrichments are set exactly once, on transition to StateFormulated.
type Demand struct {
	RawIntent      string
	FormulatedText string
	Enrichments    Enrichments
	UserID         string
	Scope          string
	Metadata       map[string]any
}

// Offer is a participant's response to the formulated demand.
// Confidence is clamped to [0,1] on ingest by the caller (the Offer
// Skill's output validation), never inside this type.
type Offer struct {
	AgentID      string
	Content      string
	Capabilities []string
	Confidence   float64
	CreatedAt    time.Time
}

// Participant is one agent activated into a negotiation.
type Participant struct {
	AgentID        string
	DisplayName    string
	ResonanceScore float64
	State          ParticipantState
	Offer          *Offer
}

// CoordinatorHistoryEntry is one entry in the coordinator loop's running
// history: either a tool call's recorded result, or a free-text
// "center_reasoning" note preserved across rounds (spec §4.5).
type CoordinatorHistoryEntry struct {
	Type   string // "tool_result" or "center_reasoning"
	Round  int
	Tool   string
	Args   map[string]any
	Result string
	// Content holds the free-text reasoning when Type is
	// "center_reasoning".
	Content string
}

// Session is the root aggregate for one negotiation.
type Session struct {
	NegotiationID        string
	Demand               Demand
	State                State
	Participants         []*Participant
	CoordinatorRounds    int
	MaxCoordinatorRounds int
	PlanOutput           string
	ParentNegotiationID  string
	Depth                int
	SubNegotiationIDs    []string
	Trace                *trace.Chain
	CoordinatorHistory   []CoordinatorHistoryEntry
	CreatedAt            time.Time
	CompletedAt          *time.Time
	Metadata             map[string]any
}

// New constructs a fresh Session in StateCreated.
func New(negotiationID string, demand Demand, maxCoordinatorRounds int) *Session {
	return &Session{
		NegotiationID:        negotiationID,
		Demand:               demand,
		State:                StateCreated,
		MaxCoordinatorRounds: maxCoordinatorRounds,
		Trace:                trace.New(negotiationID),
		Metadata:             map[string]any{},
		CreatedAt:            time.Now(),
	}
}

// ParticipantByID returns the participant with the given agent id, or nil.
func (s *Session) ParticipantByID(agentID string) *Participant {
	for _, p := range s.Participants {
		if p.AgentID == agentID {
			return p
		}
	}
	return nil
}

// RepliedAgentIDs returns the agent ids of every participant currently in
// state replied, in participant order.
func (s *Session) RepliedAgentIDs() []string {
	var ids []string
	for _, p := range s.Participants {
		if p.State == ParticipantReplied {
			ids = append(ids, p.AgentID)
		}
	}
	return ids
}
