package engine

import (
	"context"

	"github.com/resonantlabs/negotiator/session"
)

// runConfirmation implements the confirmation gate of spec §4.2: the
// Engine blocks in state formulated until the user confirms or the
// timeout elapses, whichever comes first. Either path proceeds the same
// way; only the trace records which one happened.
func (e *Engine) runConfirmation(ctx context.Context, sess *session.Session, gate *session.ConfirmationGate) error {
	rec := sess.Trace.Start("confirmation_gate")
	_, auto, err := gate.Wait(ctx, e.Config.ConfirmationTimeout)
	if err != nil {
		return err
	}
	rec.Finish("", "", map[string]any{"auto_confirmed": auto})
	return nil
}
