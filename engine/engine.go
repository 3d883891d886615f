// Package engine implements the Negotiation Engine: the deterministic
// state machine of spec §4.1 that drives one negotiation from intent
// formulation through coordinator synthesis to completion, publishing
// every transition onto the Event Bus and recording it onto the Trace
// Chain. It composes every other package as a collaborator rather than
// reimplementing their concerns, grounded on the teacher's
// runtime/agent/runtime/workflow_loop.go sequencing (translated here from
// a Temporal workflow into a single driving goroutine per negotiation,
// per spec §9).
package engine

import (
	"context"
	"fmt"

	"github.com/resonantlabs/negotiator/agentregistry"
	"github.com/resonantlabs/negotiator/events"
	"github.com/resonantlabs/negotiator/profile"
	"github.com/resonantlabs/negotiator/resonance"
	"github.com/resonantlabs/negotiator/scene"
	"github.com/resonantlabs/negotiator/session"
	"github.com/resonantlabs/negotiator/skills"
	"github.com/resonantlabs/negotiator/toolerrors"
	"github.com/resonantlabs/negotiator/vector"
)

// Persistence is the optional finished-negotiation sink (spec §1's
// persistence Non-goal notwithstanding, a collaborator interface is
// wired so a deployment can opt in). A nil Persistence is valid:
// finalizeIfNeeded simply skips the write.
type Persistence interface {
	SaveCompleted(ctx context.Context, sess *session.Session) error
}

// Engine wires every collaborator spec §2 names into the single
// component that actually drives a negotiation's lifecycle.
type Engine struct {
	Store    *session.Store
	Bus      *events.Bus
	Scenes   *scene.Registry
	Agents   *agentregistry.Registry
	Encoder  vector.Encoder
	Detector *resonance.Detector

	Formulation    *skills.DemandFormulationSkill
	OfferGen       *skills.OfferGenerationSkill
	Coordinator    *skills.CoordinatorSkill
	SubNegotiation *skills.SubNegotiationSkill
	GapRecursion   *skills.GapRecursionSkill

	Persistence Persistence
	Config      Config
}

// New constructs an Engine. Persistence may be nil.
func New(
	store *session.Store,
	bus *events.Bus,
	scenes *scene.Registry,
	agents *agentregistry.Registry,
	encoder vector.Encoder,
	detector *resonance.Detector,
	formulation *skills.DemandFormulationSkill,
	offerGen *skills.OfferGenerationSkill,
	coordinator *skills.CoordinatorSkill,
	subNegotiation *skills.SubNegotiationSkill,
	gapRecursion *skills.GapRecursionSkill,
	persistence Persistence,
	cfg Config,
) *Engine {
	return &Engine{
		Store: store, Bus: bus, Scenes: scenes, Agents: agents,
		Encoder: encoder, Detector: detector,
		Formulation: formulation, OfferGen: offerGen, Coordinator: coordinator,
		SubNegotiation: subNegotiation, GapRecursion: gapRecursion,
		Persistence: persistence, Config: cfg,
	}
}

// transition enforces spec §4.1's table; an illegal transition is a
// programmer error in the Engine itself, never a user-triggerable one, so
// it always returns a *toolerrors.EngineError rather than panicking.
func (e *Engine) transition(sess *session.Session, to session.State) error {
	if !session.CanTransition(sess.State, to) {
		return toolerrors.NewEngineError(
			fmt.Sprintf("illegal transition %s -> %s", sess.State, to),
			toolerrors.Context{NegotiationID: sess.NegotiationID, Stage: string(sess.State)},
			nil,
		)
	}
	from := sess.State
	sess.State = to
	e.publish(sess, "engine.transition", map[string]any{"from": string(from), "to": string(to)})
	return nil
}

func (e *Engine) publish(sess *session.Session, eventType events.Type, data map[string]any) {
	if e.Bus == nil {
		return
	}
	_ = e.Bus.Publish(context.Background(), events.New(eventType, sess.NegotiationID, data))
}

// StartNegotiation creates a new Session in StateCreated, registers it
// with the Store, and returns it along with its confirmation gate. The
// caller is responsible for running Run in its own goroutine; this keeps
// the HTTP handler that accepts the request free to return
// negotiation_id immediately (spec §6.1).
func (e *Engine) StartNegotiation(negotiationID string, demand session.Demand) (*session.Session, *session.ConfirmationGate, error) {
	sess := session.New(negotiationID, demand, e.Config.MaxCoordinatorRounds)
	gate, err := e.Store.Create(sess)
	if err != nil {
		return nil, nil, err
	}
	return sess, gate, nil
}

// Confirm closes negotiationID's confirmation gate as a user-driven
// confirmation (spec §6.1's confirm route). Called before Run reaches the
// gate, it closes the gate early, so Run passes it without waiting; once
// the gate is closed, Confirm is a no-op.
func (e *Engine) Confirm(negotiationID string) error {
	gate := e.Store.Gate(negotiationID)
	if gate == nil {
		return toolerrors.NewEngineError("unknown negotiation", toolerrors.Context{NegotiationID: negotiationID}, nil)
	}
	gate.Confirm()
	return nil
}

// Run drives sess from StateCreated through StateCompleted. It is meant
// to be called once per negotiation, from a dedicated goroutine; ctx
// cancellation aborts the run and marks the session completed with the
// cancellation recorded on its trace (spec §5's cancellation
// propagation: stopping the negotiation source goroutine must stop every
// descendant goroutine it spawned).
func (e *Engine) Run(ctx context.Context, sess *session.Session, gate *session.ConfirmationGate) error {
	defer e.finalizeIfNeeded(sess)

	if err := e.runFormulation(ctx, sess); err != nil {
		return e.abort(sess, err)
	}
	if err := e.runConfirmation(ctx, sess, gate); err != nil {
		return e.abort(sess, err)
	}
	activated, err := e.runEncodingAndResonance(ctx, sess)
	if err != nil {
		return e.abort(sess, err)
	}
	if err := e.runOffers(ctx, sess, activated); err != nil {
		return e.abort(sess, err)
	}
	if err := e.runSynthesis(ctx, sess); err != nil {
		return e.abort(sess, err)
	}
	return e.complete(sess)
}

func (e *Engine) abort(sess *session.Session, cause error) error {
	rec := sess.Trace.Start("abort")
	_ = e.transition(sess, session.StateCompleted)
	rec.Finish("", cause.Error(), nil)
	sess.Trace.Complete()
	return cause
}

func (e *Engine) complete(sess *session.Session) error {
	if err := e.transition(sess, session.StateCompleted); err != nil {
		return err
	}
	sess.Trace.Complete()
	e.publish(sess, "plan.ready", map[string]any{"plan": sess.PlanOutput})
	return nil
}

func (e *Engine) finalizeIfNeeded(sess *session.Session) {
	if e.Persistence == nil {
		return
	}
	if sess.State != session.StateCompleted {
		return
	}
	_ = e.Persistence.SaveCompleted(context.Background(), sess)
}

// ProfileSourceFor satisfies the anti-fabrication rule at the single call
// site that resolves which Profile Source answers for an agent: callers
// must pass the result straight into a skill scoped to that same
// agentID, never cache it for use against a different agent.
func (e *Engine) ProfileSourceFor(agentID string) (profile.Source, error) {
	return e.Agents.Source(agentID)
}
