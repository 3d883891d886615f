package engine

import (
	"context"

	"github.com/resonantlabs/negotiator/events"
	"github.com/resonantlabs/negotiator/session"
)

// runFormulation implements Stage 1 of spec §4.2: transition into
// formulating, run the Demand Formulation Skill against the raw intent,
// store the formulated text, and transition to formulated.
func (e *Engine) runFormulation(ctx context.Context, sess *session.Session) error {
	rec := sess.Trace.Start("formulation")
	if err := e.transition(sess, session.StateFormulating); err != nil {
		return err
	}

	result, err := e.Formulation.Run(ctx, sess.Demand.RawIntent)
	if err != nil {
		return err
	}
	sess.Demand.FormulatedText = result.FormulatedText
	sess.Demand.Enrichments = session.Enrichments{
		HardConstraints:       result.Enrichments.HardConstraints,
		NegotiablePreferences: result.Enrichments.NegotiablePreferences,
		ContextAdded:          result.Enrichments.ContextAdded,
	}

	if err := e.transition(sess, session.StateFormulated); err != nil {
		return err
	}
	rec.Finish(sess.Demand.RawIntent, result.FormulatedText, map[string]any{"confidence": result.Confidence})
	e.publish(sess, events.TypeFormulationReady, map[string]any{
		"formulated_text": result.FormulatedText,
		"confidence":      result.Confidence,
		"enrichments": map[string]any{
			"hard_constraints":       sess.Demand.Enrichments.HardConstraints,
			"negotiable_preferences": sess.Demand.Enrichments.NegotiablePreferences,
			"context_added":          sess.Demand.Enrichments.ContextAdded,
		},
	})
	return nil
}
