package engine

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/resonantlabs/negotiator/events"
	"github.com/resonantlabs/negotiator/profile"
	"github.com/resonantlabs/negotiator/reasoning"
	"github.com/resonantlabs/negotiator/session"
	"github.com/resonantlabs/negotiator/skills"
	"github.com/resonantlabs/negotiator/toolerrors"
)

// runSynthesis implements Stage 4 of spec §4.5: the round-bounded
// Coordinator Synthesis Loop. Each round calls the Coordinator Skill with
// the running history, dispatches whatever tool calls it returns, and
// loops until output_plan is called or MaxCoordinatorRounds is reached —
// at which point the final round is forced to offer only output_plan and
// create_machine (tools_restricted), and that forced round still counts toward
// coordinator_rounds.
func (e *Engine) runSynthesis(ctx context.Context, sess *session.Session) error {
	rec := sess.Trace.Start("synthesis")

	for {
		sess.CoordinatorRounds++
		round := sess.CoordinatorRounds
		restricted := round >= sess.MaxCoordinatorRounds

		offers := collectedOffers(sess)
		step, err := e.Coordinator.Step(ctx, sess.Demand.FormulatedText, offers, sess.CoordinatorHistory, round, restricted)
		if err != nil {
			return err
		}
		if step.Text != "" {
			sess.CoordinatorHistory = append(sess.CoordinatorHistory, session.CoordinatorHistoryEntry{
				Type: "center_reasoning", Round: round, Content: step.Text,
			})
		}

		e.publish(sess, events.TypeCoordinatorToolCall, map[string]any{
			"round": round, "tool_calls": len(step.ToolCalls), "restricted": restricted,
		})

		done, err := e.dispatchToolCalls(ctx, sess, round, step.ToolCalls)
		if err != nil {
			return err
		}
		if done {
			break
		}
		if restricted {
			// tools_restricted round completed without the model
			// calling output_plan: force completion with whatever
			// reasoning text it gave us rather than looping forever.
			if sess.PlanOutput == "" {
				sess.PlanOutput = step.Text
			}
			break
		}
	}

	rec.Finish("", sess.PlanOutput, map[string]any{"rounds": sess.CoordinatorRounds})
	return nil
}

// dispatchToolCalls runs every tool call from one round concurrently,
// bounded by an errgroup.Group, and records each as a
// CoordinatorHistoryEntry in the model's original call order once all
// have finished. A single round only rarely carries more than one call
// (e.g. two independent ask_agent questions), but when it does there is
// no reason to make the second wait on the first's round-trip: unlike
// Stage 3's offer barrier in offers.go, these calls don't race each
// other for participant state, so errgroup's all-or-nothing error
// semantics (cancel every sibling's context on the first failure) are
// the right fit here. It returns done=true once output_plan has been
// called, ending the loop.
func (e *Engine) dispatchToolCalls(ctx context.Context, sess *session.Session, round int, calls []reasoning.ToolCall) (bool, error) {
	if len(calls) == 0 {
		return false, nil
	}

	results := make([]session.CoordinatorHistoryEntry, len(calls))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			result, err := e.dispatchOne(gctx, sess, call, &mu)
			if err != nil {
				return err
			}
			results[i] = session.CoordinatorHistoryEntry{
				Type: "tool_result", Round: round, Tool: call.Name, Args: call.Args, Result: result,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	done := false
	for _, entry := range results {
		sess.CoordinatorHistory = append(sess.CoordinatorHistory, entry)
		if entry.Tool == skills.ToolOutputPlan {
			done = true
		}
	}
	return done, nil
}

func (e *Engine) dispatchOne(ctx context.Context, sess *session.Session, call reasoning.ToolCall, mu *sync.Mutex) (string, error) {
	switch call.Name {
	case skills.ToolOutputPlan:
		plan, _ := call.Args["plan"].(string)
		mu.Lock()
		sess.PlanOutput = plan
		mu.Unlock()
		return "plan recorded", nil

	case skills.ToolAskAgent:
		return e.dispatchAskAgent(ctx, sess, call.Args)

	case skills.ToolStartDiscovery:
		return e.dispatchStartDiscovery(ctx, sess, call.Args)

	case skills.ToolCreateSubDemand:
		return e.dispatchCreateSubDemand(ctx, sess, call.Args, mu)

	case skills.ToolCreateMachine:
		payload, _ := call.Args["payload"].(map[string]any)
		mu.Lock()
		sess.Metadata["machine_payload"] = payload
		mu.Unlock()
		return "machine payload recorded", nil

	default:
		return "", toolerrors.NewEngineError("unreachable: closed tool enum violated", toolerrors.Context{NegotiationID: sess.NegotiationID}, nil)
	}
}

func (e *Engine) dispatchAskAgent(ctx context.Context, sess *session.Session, args map[string]any) (string, error) {
	agentID, _ := args["agent_id"].(string)
	question, _ := args["question"].(string)
	p := sess.ParticipantByID(agentID)
	if p == nil {
		return "unknown agent", nil
	}
	src, err := e.ProfileSourceFor(agentID)
	if err != nil {
		return "agent unreachable", nil
	}
	reply, err := src.Chat(ctx, agentID, []profile.Message{{Role: "user", Content: question}})
	if err != nil {
		return "agent did not respond", nil
	}
	return reply, nil
}

// dispatchStartDiscovery invokes the SubNegotiation Skill between the two
// named agents and appends its structured discovery_report to history, as
// spec §4.5 requires for start_discovery.
func (e *Engine) dispatchStartDiscovery(ctx context.Context, sess *session.Session, args map[string]any) (string, error) {
	agentA, _ := args["agent_a"].(string)
	agentB, _ := args["agent_b"].(string)
	reason, _ := args["reason"].(string)

	report, err := e.SubNegotiation.Discover(ctx, agentA, agentB, reason)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(report)
	if err != nil {
		return "", toolerrors.NewEngineError("encode discovery report", toolerrors.Context{NegotiationID: sess.NegotiationID}, err)
	}
	return string(encoded), nil
}

// dispatchCreateSubDemand records the requested sub-negotiation but does
// not execute it: running a nested negotiation end to end from inside
// the parent's own coordinator loop is left to the caller (the HTTP
// layer observes sub_negotiation.started and may choose to drive it),
// since the closed tool enum's contract only requires recording the
// request, not owning the child's lifecycle. The GapRecursion Skill
// still runs here, synchronously, to compose the child's raw_intent
// from the coordinator's gap_description so that by the time the caller
// picks up the event, the child's Demand Snapshot is ready to start.
func (e *Engine) dispatchCreateSubDemand(ctx context.Context, sess *session.Session, args map[string]any, mu *sync.Mutex) (string, error) {
	gapDescription, _ := args["gap_description"].(string)
	scope, _ := args["scope"].(string)

	demand, _, err := e.GapRecursion.ComposeChildDemand(ctx, sess.NegotiationID, sess.Depth, gapDescription, scope, sess.Demand.UserID)
	if err != nil {
		return "", err
	}

	subNegotiationID := uuid.NewString()
	mu.Lock()
	sess.SubNegotiationIDs = append(sess.SubNegotiationIDs, subNegotiationID)
	mu.Unlock()
	e.publish(sess, events.TypeSubNegotiationStarted, map[string]any{
		"sub_negotiation_id": subNegotiationID,
		"gap_description":    gapDescription,
		"raw_intent":         demand.RawIntent,
	})
	return "started", nil
}

func collectedOffers(sess *session.Session) []session.Offer {
	var out []session.Offer
	for _, p := range sess.Participants {
		if p.Offer != nil {
			out = append(out, *p.Offer)
		}
	}
	return out
}
