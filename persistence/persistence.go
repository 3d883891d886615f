// Package persistence defines the optional finished-negotiation sink:
// spec §1 scopes cross-process session durability out as a Non-goal for
// the live Session Store, but a deployment may still want a durable
// record of completed negotiations for audit or analytics. Sink is that
// narrower, write-only collaborator.
package persistence

import (
	"context"

	"github.com/resonantlabs/negotiator/session"
)

// Sink persists a completed Session. Implementations must tolerate being
// called with a Session whose State is always StateCompleted; the Engine
// never calls SaveCompleted for an in-flight negotiation.
type Sink interface {
	SaveCompleted(ctx context.Context, sess *session.Session) error
}
