package skills

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/resonantlabs/negotiator/reasoning"
	"github.com/resonantlabs/negotiator/session"
	"github.com/resonantlabs/negotiator/toolerrors"
)

// CoordinatorStep is one round's validated result: the model's free-text
// reasoning plus its (schema-validated) tool calls.
type CoordinatorStep struct {
	Text      string
	ToolCalls []reasoning.ToolCall
}

// CoordinatorSkill drives one round of the Coordinator Synthesis Loop
// (spec §4.5): it assembles the running history into a message list,
// masks prior offer detail from round 2 onward, restricts the offered
// tool set to output_plan and create_machine once the round cap is reached
// (tools_restricted), and validates every returned tool call's arguments
// against the closed schema set before handing them back to the Engine.
type CoordinatorSkill struct {
	Client   reasoning.Client
	Registry *ToolRegistry
}

// NewCoordinatorSkill constructs a CoordinatorSkill.
func NewCoordinatorSkill(client reasoning.Client, registry *ToolRegistry) *CoordinatorSkill {
	return &CoordinatorSkill{Client: client, Registry: registry}
}

// Step runs one coordinator round. demand and offers seed the first
// round's messages; history carries every prior round's tool results and
// reasoning notes. restricted forces the tool set down to output_plan
// and create_machine (the Engine sets this once coordinator_rounds has reached the
// session's cap, forcing a final round).
func (s *CoordinatorSkill) Step(ctx context.Context, demand string, offers []session.Offer, history []session.CoordinatorHistoryEntry, round int, restricted bool) (CoordinatorStep, error) {
	messages := buildMessages(demand, offers, history, round)
	tools := s.Registry.Specs()
	if restricted {
		tools = onlyTools(tools, ToolOutputPlan, ToolCreateMachine)
	}

	resp, err := s.Client.Complete(ctx, messages, tools)
	if err != nil {
		return CoordinatorStep{}, toolerrors.NewSkillError("coordinator reasoning call failed", toolerrors.Context{Skill: "coordinator"}, err)
	}

	calls := make([]reasoning.ToolCall, 0, len(resp.ToolCalls))
	for _, call := range resp.ToolCalls {
		if restricted && call.Name != ToolOutputPlan && call.Name != ToolCreateMachine {
			continue // tools_restricted: silently drop anything but output_plan/create_machine
		}
		if err := s.Registry.Validate(call.Name, call.Args); err != nil {
			return CoordinatorStep{}, err
		}
		calls = append(calls, call)
	}

	return CoordinatorStep{Text: resp.Text, ToolCalls: calls}, nil
}

func onlyTools(tools []reasoning.ToolSpec, names ...string) []reasoning.ToolSpec {
	var out []reasoning.ToolSpec
	for _, t := range tools {
		for _, name := range names {
			if t.Name == name {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// buildMessages renders the demand, the offers collected in Stage 3, and
// the running coordinator history into the model's message list. Offer
// content is shown in full only through round 1; from round 2 onward it
// is masked to a short summary so the model reasons from its own tool
// results and notes rather than re-reading the original offers verbatim
// every round (spec §4.5's observation masking).
func buildMessages(demand string, offers []session.Offer, history []session.CoordinatorHistoryEntry, round int) []reasoning.Message {
	var messages []reasoning.Message
	messages = append(messages, reasoning.Message{Role: "user", Content: "Negotiation demand:\n" + demand})

	if round <= 1 {
		messages = append(messages, reasoning.Message{Role: "user", Content: formatOffers(offers)})
	} else {
		messages = append(messages, reasoning.Message{Role: "user", Content: fmt.Sprintf("(%d agent offers collected; see coordinator history below for what has already been established)", len(offers))})
	}

	for _, entry := range history {
		switch entry.Type {
		case "center_reasoning":
			messages = append(messages, reasoning.Message{Role: "assistant", Content: entry.Content})
		case "tool_result":
			argsJSON, _ := json.Marshal(entry.Args)
			messages = append(messages, reasoning.Message{
				Role:       "tool",
				Content:    fmt.Sprintf("round %d: %s(%s) -> %s", entry.Round, entry.Tool, string(argsJSON), entry.Result),
				ToolName:   entry.Tool,
				ToolCallID: fmt.Sprintf("%s-%d", entry.Tool, entry.Round),
			})
		}
	}

	return messages
}

func formatOffers(offers []session.Offer) string {
	out := "Agent offers:\n"
	for _, o := range offers {
		out += fmt.Sprintf("- %s (confidence %.2f): %s\n", o.AgentID, o.Confidence, o.Content)
	}
	return out
}
