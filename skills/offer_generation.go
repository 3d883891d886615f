package skills

import (
	"context"
	"fmt"

	"github.com/resonantlabs/negotiator/profile"
	"github.com/resonantlabs/negotiator/toolerrors"
	"github.com/resonantlabs/negotiator/vector"
)

// OfferGenerationResult is OfferGenerationSkill's parsed output.
type OfferGenerationResult struct {
	Content      string
	Capabilities []string
	Confidence   float64
}

// OfferGenerationSkill asks one agent to respond to the formulated
// demand, using only that agent's own profile (spec §4.7's
// anti-fabrication rule: the prompt is built from this agent's profile
// data alone, never from a sibling's).
type OfferGenerationSkill struct {
	Source profile.Source
}

// NewOfferGenerationSkill constructs an OfferGenerationSkill.
func NewOfferGenerationSkill(src profile.Source) *OfferGenerationSkill {
	return &OfferGenerationSkill{Source: src}
}

// Run asks agentID for an offer against formulatedDemand, using
// agentProfile (must be agentID's own profile) to ground the prompt.
func (s *OfferGenerationSkill) Run(ctx context.Context, agentID, formulatedDemand string, agentProfile map[string]any) (OfferGenerationResult, error) {
	profileText := vector.ProfileText(agentProfile)
	prompt := fmt.Sprintf(offerPromptTemplate, profileText, formulatedDemand)
	reply, err := s.Source.Chat(ctx, agentID, []profile.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return OfferGenerationResult{}, toolerrors.NewSkillError("offer generation call failed", toolerrors.Context{Skill: agentID}, err)
	}
	obj, err := ParseJSONLenient(reply, "content")
	if err != nil {
		return OfferGenerationResult{}, err
	}
	content, err := StringField(obj, "content")
	if err != nil {
		return OfferGenerationResult{}, err
	}
	return OfferGenerationResult{
		Content:      content,
		Capabilities: StringSliceField(obj, "capabilities"),
		Confidence:   ClampConfidence(Float64Field(obj, "confidence", 0.5)),
	}, nil
}

const offerPromptTemplate = `You are an agent with this profile:

%s

A negotiation has presented the following demand:

%s

Decide whether and how you can help, and respond with a single JSON object
of the form:
{"content": "...", "capabilities": ["..."], "confidence": 0.0-1.0}
and nothing else. Base your offer only on your own profile above; you have
no knowledge of any other agent's profile or capabilities.`
