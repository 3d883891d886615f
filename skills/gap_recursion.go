package skills

import (
	"context"
	"fmt"

	"github.com/resonantlabs/negotiator/profile"
	"github.com/resonantlabs/negotiator/session"
	"github.com/resonantlabs/negotiator/toolerrors"
)

// ComposedDemand is GapRecursionSkill's parsed output (spec §4.7): the
// text and supporting context used to compose a child negotiation's raw
// intent from a gap description.
type ComposedDemand struct {
	SubDemandText string
	Context       string
}

// GapRecursionSkill turns a create_sub_demand tool call's gap_description
// into the Demand Snapshot for a nested negotiation, grounded on
// original_source's recursive sub-demand handling in core/engine.py. It
// performs its own LLM call through the Profile Source bound at
// construction (like SubNegotiationSkill, not through a Reasoning Client) to
// expand the coordinator's terse gap description into a self-contained
// raw_intent the child negotiation's own Formulation stage can work from.
type GapRecursionSkill struct {
	Source   profile.Source
	AgentID  string
	MaxDepth int
}

// NewGapRecursionSkill constructs a GapRecursionSkill bound to the model
// identity used for gap composition, with the given recursion depth
// ceiling.
func NewGapRecursionSkill(src profile.Source, agentID string, maxDepth int) *GapRecursionSkill {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &GapRecursionSkill{Source: src, AgentID: agentID, MaxDepth: maxDepth}
}

// Compose expands gapDescription into a sub_demand_text plus supporting
// context via a Chat call on the bound Profile Source.
func (s *GapRecursionSkill) Compose(ctx context.Context, gapDescription string) (ComposedDemand, error) {
	if gapDescription == "" {
		return ComposedDemand{}, toolerrors.NewSkillError("create_sub_demand gap_description is empty", toolerrors.Context{Skill: "gap_recursion"}, nil)
	}
	prompt := fmt.Sprintf(gapPromptTemplate, gapDescription)
	reply, err := s.Source.Chat(ctx, s.AgentID, []profile.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return ComposedDemand{}, toolerrors.NewSkillError("gap recursion call failed", toolerrors.Context{Skill: "gap_recursion"}, err)
	}
	obj, err := ParseJSONLenient(reply, "sub_demand_text")
	if err != nil {
		return ComposedDemand{}, err
	}
	text, err := StringField(obj, "sub_demand_text")
	if err != nil {
		return ComposedDemand{}, err
	}
	return ComposedDemand{
		SubDemandText: text,
		Context:       OptionalStringField(obj, "context"),
	}, nil
}

// ComposeChildDemand calls Compose and wraps the result into the child
// negotiation's Demand Snapshot, rejecting recursion past MaxDepth so a
// coordinator loop cannot spin up sub-negotiations forever.
func (s *GapRecursionSkill) ComposeChildDemand(ctx context.Context, parentNegotiationID string, parentDepth int, gapDescription, scope, userID string) (session.Demand, int, error) {
	if parentDepth+1 > s.MaxDepth {
		return session.Demand{}, 0, toolerrors.NewEngineError("sub-negotiation recursion depth exceeded", toolerrors.Context{
			NegotiationID: parentNegotiationID,
		}, nil)
	}
	composed, err := s.Compose(ctx, gapDescription)
	if err != nil {
		return session.Demand{}, 0, err
	}
	if scope == "" {
		scope = "all"
	}
	return session.Demand{
		RawIntent: composed.SubDemandText,
		Scope:     scope,
		UserID:    userID,
		Metadata: map[string]any{
			"parent_negotiation_id": parentNegotiationID,
			"gap_description":       gapDescription,
			"gap_context":           composed.Context,
		},
	}, parentDepth + 1, nil
}

const gapPromptTemplate = `A coordinator has identified the following unmet gap in a negotiation's
collected offers:

%s

Expand this into a self-contained demand statement a fresh negotiation could
be started from, plus any context the child negotiation needs to understand
why it exists. Respond with a single JSON object of the form:
{"sub_demand_text": "...", "context": "..."}
and nothing else.`
