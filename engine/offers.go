package engine

import (
	"context"
	"sync"
	"time"

	"github.com/resonantlabs/negotiator/events"
	"github.com/resonantlabs/negotiator/session"
)

// runOffers implements Stage 3 of spec §4.4: one goroutine per activated
// participant, each bounded by its own context.WithTimeout so a single
// slow or dead agent cannot hold up its siblings, synchronized by a
// sync.WaitGroup barrier. This is deliberately not a single shared
// errgroup.Group: errgroup cancels every sibling's context the moment one
// goroutine returns an error, which would let one agent's timeout take
// down a sibling that was about to answer. A plain WaitGroup with
// independent per-goroutine timeouts is correct here even though
// x/sync/errgroup is used in the Coordinator stage's bounded fan-out
// elsewhere in this package's call graph.
func (e *Engine) runOffers(ctx context.Context, sess *session.Session, activated []*session.Participant) error {
	rec := sess.Trace.Start("offers_barrier")
	if err := e.transition(sess, session.StateBarrierWaiting); err != nil {
		return err
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, p := range activated {
		wg.Add(1)
		go func(p *session.Participant) {
			defer wg.Done()
			e.collectOffer(ctx, sess, p, &mu)
		}(p)
	}
	wg.Wait()

	replied := sess.RepliedAgentIDs()
	rec.Finish("", "", map[string]any{"activated": len(activated), "replied": len(replied)})
	e.publish(sess, events.TypeBarrierComplete, map[string]any{"replied": replied})

	return e.transition(sess, session.StateSynthesizing)
}

// collectOffer runs a single participant's Offer Generation call under
// its own timeout, and records the result (or the timeout) onto the
// participant in place. It fetches only p.AgentID's own profile, never a
// sibling's, upholding spec §4.7's anti-fabrication rule at the one call
// site where it would be easy to get wrong under concurrency.
func (e *Engine) collectOffer(ctx context.Context, sess *session.Session, p *session.Participant, mu *sync.Mutex) {
	agentCtx, cancel := context.WithTimeout(ctx, e.Config.OfferTimeout)
	defer cancel()

	src, err := e.ProfileSourceFor(p.AgentID)
	if err != nil {
		e.markExited(sess, p, mu)
		return
	}
	agentProfile, err := src.GetProfile(agentCtx, p.AgentID)
	if err != nil {
		e.markExited(sess, p, mu)
		return
	}
	result, err := e.OfferGen.Run(agentCtx, p.AgentID, sess.Demand.FormulatedText, agentProfile)
	if err != nil {
		e.markExited(sess, p, mu)
		return
	}

	mu.Lock()
	p.State = session.ParticipantReplied
	p.Offer = &session.Offer{
		AgentID:      p.AgentID,
		Content:      result.Content,
		Capabilities: result.Capabilities,
		Confidence:   result.Confidence,
		CreatedAt:    time.Now(),
	}
	mu.Unlock()

	e.publish(sess, events.TypeOfferReceived, map[string]any{
		"agent_id": p.AgentID, "confidence": result.Confidence,
	})
}

// markExited records a timed-out or failed participant as exited without
// emitting any per-agent event; only the barrier summary (offers_barrier's
// replied count plus TypeBarrierComplete) reports the outcome.
func (e *Engine) markExited(sess *session.Session, p *session.Participant, mu *sync.Mutex) {
	mu.Lock()
	p.State = session.ParticipantExited
	mu.Unlock()
}
