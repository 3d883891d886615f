package engine

import (
	"context"

	"github.com/resonantlabs/negotiator/events"
	"github.com/resonantlabs/negotiator/resonance"
	"github.com/resonantlabs/negotiator/session"
	"github.com/resonantlabs/negotiator/toolerrors"
)

// runEncodingAndResonance implements Stage 2 of spec §4.3: resolve the
// demand's scope to a candidate agent list, encode the formulated demand
// and every candidate's profile into the same vector space, and run the
// Resonance Detector to partition candidates into activated and
// filtered. It returns the activated participants (with no Offer yet),
// already appended to sess.Participants.
func (e *Engine) runEncodingAndResonance(ctx context.Context, sess *session.Session) ([]*session.Participant, error) {
	rec := sess.Trace.Start("encoding_resonance")
	if err := e.transition(sess, session.StateEncoding); err != nil {
		return nil, err
	}

	candidateIDs, err := e.Scenes.ResolveScope(sess.Demand.Scope)
	if err != nil {
		return nil, err
	}
	candidateIDs = e.Agents.InScope(candidateIDs)

	demandVec, err := e.Encoder.Encode(ctx, sess.Demand.FormulatedText)
	if err != nil {
		return nil, toolerrors.NewEncodingError("encode formulated demand failed", toolerrors.Context{NegotiationID: sess.NegotiationID}, err)
	}

	agentVectors, err := e.Agents.Vectors(ctx, candidateIDs, e.Encoder)
	if err != nil {
		return nil, err
	}

	demandDot := resonance.DotNorm(demandVec)
	agentDots := make(map[string]resonance.DotNorm, len(agentVectors))
	for id, v := range agentVectors {
		agentDots[id] = resonance.DotNorm(v)
	}

	activatedScores, filteredScores := e.Detector.Detect(ctx, demandDot, agentDots, e.Config.KStar, e.Config.MinResonanceScore)

	activated := make([]*session.Participant, 0, len(activatedScores))
	summaries := make([]events.AgentSummary, 0, len(activatedScores))
	for _, scored := range activatedScores {
		p := &session.Participant{
			AgentID:        scored.AgentID,
			DisplayName:    e.Agents.DisplayName(scored.AgentID),
			ResonanceScore: scored.Score,
			State:          session.ParticipantActive,
		}
		sess.Participants = append(sess.Participants, p)
		activated = append(activated, p)
		summaries = append(summaries, events.AgentSummary{
			AgentID: p.AgentID, DisplayName: p.DisplayName, ResonanceScore: p.ResonanceScore,
		})
	}

	rec.Finish(sess.Demand.FormulatedText, "", map[string]any{
		"candidates": len(candidateIDs), "activated": len(activated), "filtered": len(filteredScores),
	})
	e.publish(sess, events.TypeResonanceActivated, map[string]any{"agents": summaries})

	if err := e.transition(sess, session.StateOffering); err != nil {
		return nil, err
	}
	return activated, nil
}
