package skills

import (
	"context"
	"fmt"

	"github.com/resonantlabs/negotiator/profile"
	"github.com/resonantlabs/negotiator/toolerrors"
)

// AgentContributions is the per-agent half of a DiscoveryReport: what each
// of the two investigated agents can separately bring to the gap.
type AgentContributions struct {
	AgentA []string
	AgentB []string
}

// DiscoveryReport is SubNegotiationSkill's parsed output (spec §4.7).
type DiscoveryReport struct {
	NewAssociations         []string
	Coordination            string
	AdditionalContributions AgentContributions
	Summary                 string
}

// SubNegotiationSkill runs the start_discovery platform-side reasoning
// call between two agents, grounded on original_source's cross-agent
// discovery step in core/engine.py. It performs its own LLM call against
// the model identity bound at construction, independent of either agent's
// own Profile Source — discovery reasons about the two agents, it does
// not speak as either of them.
type SubNegotiationSkill struct {
	Source  profile.Source
	AgentID string
}

// NewSubNegotiationSkill constructs a SubNegotiationSkill bound to the
// model identity used for discovery calls.
func NewSubNegotiationSkill(src profile.Source, agentID string) *SubNegotiationSkill {
	return &SubNegotiationSkill{Source: src, AgentID: agentID}
}

// Discover investigates whether agentA and agentB can jointly cover a gap
// the coordinator flagged via reason, and returns the structured result
// start_discovery appends to coordinator history.
func (s *SubNegotiationSkill) Discover(ctx context.Context, agentA, agentB, reason string) (DiscoveryReport, error) {
	if agentA == "" || agentB == "" {
		return DiscoveryReport{}, toolerrors.NewSkillError("start_discovery requires both agent_a and agent_b", toolerrors.Context{Skill: "sub_negotiation"}, nil)
	}
	prompt := fmt.Sprintf(discoveryPromptTemplate, agentA, agentB, reason)
	reply, err := s.Source.Chat(ctx, s.AgentID, []profile.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return DiscoveryReport{}, toolerrors.NewSkillError("discovery call failed", toolerrors.Context{Skill: "sub_negotiation"}, err)
	}
	obj, err := ParseJSONLenient(reply, "summary")
	if err != nil {
		return DiscoveryReport{}, err
	}
	report, ok := obj["discovery_report"].(map[string]any)
	if !ok {
		report = obj
	}
	contrib, _ := report["additional_contributions"].(map[string]any)
	return DiscoveryReport{
		NewAssociations: StringSliceField(report, "new_associations"),
		Coordination:    OptionalStringField(report, "coordination"),
		AdditionalContributions: AgentContributions{
			AgentA: StringSliceField(contrib, "agent_a"),
			AgentB: StringSliceField(contrib, "agent_b"),
		},
		Summary: OptionalStringField(report, "summary"),
	}, nil
}

const discoveryPromptTemplate = `Two agents, %s and %s, have both been active in this negotiation.
The coordinator wants to know whether they can jointly cover a gap in the
offers collected so far. Reason given by the coordinator: %s

Respond with a single JSON object of the form:
{"discovery_report": {"new_associations": ["..."], "coordination": "...",
"additional_contributions": {"agent_a": ["..."], "agent_b": ["..."]},
"summary": "..."}}
and nothing else.`
