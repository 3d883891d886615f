package skills

import (
	"context"
	"fmt"

	"github.com/resonantlabs/negotiator/profile"
	"github.com/resonantlabs/negotiator/toolerrors"
)

// Enrichments is the distinguishing-need-from-requirement detail
// DemandFormulationSkill attaches to its formulated text (spec §4.7).
type Enrichments struct {
	HardConstraints       []string
	NegotiablePreferences []string
	ContextAdded          string
}

// DemandFormulationResult is DemandFormulationSkill's parsed output.
type DemandFormulationResult struct {
	FormulatedText string
	Confidence     float64
	Enrichments    Enrichments
}

// DemandFormulationSkill turns a user's raw intent into the formulated
// demand text the Resonance Detector and every Offer Generation call will
// see (spec §4.2). It runs against a single, un-scoped model — there is
// no agent profile to fabricate from at this stage.
type DemandFormulationSkill struct {
	Source  profile.Source
	AgentID string // the model identity used for formulation calls
}

// NewDemandFormulationSkill constructs a DemandFormulationSkill bound to
// the given Profile Source and model agent id.
func NewDemandFormulationSkill(src profile.Source, agentID string) *DemandFormulationSkill {
	return &DemandFormulationSkill{Source: src, AgentID: agentID}
}

// Run formulates rawIntent into structured demand text.
func (s *DemandFormulationSkill) Run(ctx context.Context, rawIntent string) (DemandFormulationResult, error) {
	if rawIntent == "" {
		return DemandFormulationResult{}, toolerrors.NewSkillError("raw intent is empty", toolerrors.Context{Skill: "demand_formulation"}, nil)
	}
	prompt := fmt.Sprintf(formulationPromptTemplate, rawIntent)
	reply, err := s.Source.Chat(ctx, s.AgentID, []profile.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return DemandFormulationResult{}, toolerrors.NewSkillError("demand formulation call failed", toolerrors.Context{Skill: "demand_formulation"}, err)
	}
	obj, err := ParseJSONLenient(reply, "formulated_text")
	if err != nil {
		return DemandFormulationResult{}, err
	}
	text, err := StringField(obj, "formulated_text")
	if err != nil {
		return DemandFormulationResult{}, err
	}
	enrichments, _ := obj["enrichments"].(map[string]any)
	return DemandFormulationResult{
		FormulatedText: text,
		Confidence:     ClampConfidence(Float64Field(obj, "confidence", 1.0)),
		Enrichments: Enrichments{
			HardConstraints:       StringSliceField(enrichments, "hard_constraints"),
			NegotiablePreferences: StringSliceField(enrichments, "negotiable_preferences"),
			ContextAdded:          OptionalStringField(enrichments, "context_added"),
		},
	}, nil
}

const formulationPromptTemplate = `A user has expressed the following intent:

%s

Restate this as a clear, actionable demand statement that other agents can
evaluate and respond to. Distinguish what the user actually needs from what
they literally asked for, preserving their underlying intent. Respond with a
single JSON object of the form:
{"formulated_text": "...", "confidence": 0.0-1.0,
"enrichments": {"hard_constraints": ["..."], "negotiable_preferences": ["..."],
"context_added": "..."}}
and nothing else.`
