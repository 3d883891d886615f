// Package scripted provides a fixture profile.Source with canned profiles
// and scripted replies, grounded on original_source's apps/shared mock
// model fixtures. Used by engine tests and local demos so a negotiation
// can run end to end without a live model.
package scripted

import (
	"context"
	"fmt"
	"sync"

	"github.com/resonantlabs/negotiator/profile"
	"github.com/resonantlabs/negotiator/toolerrors"
)

// Source is a fixed-script profile.Source: profiles are seeded up front,
// replies are either a fixed string per agent or produced by a Responder
// callback when one is registered.
type Source struct {
	mu        sync.RWMutex
	profiles  map[string]map[string]any
	replies   map[string]string
	responder map[string]Responder
}

// Responder computes a reply for agentID given the running message
// history, for tests that need the reply to depend on what was asked.
type Responder func(ctx context.Context, agentID string, messages []profile.Message) (string, error)

// New constructs an empty scripted Source.
func New() *Source {
	return &Source{
		profiles:  make(map[string]map[string]any),
		replies:   make(map[string]string),
		responder: make(map[string]Responder),
	}
}

// SeedProfile registers agentID's profile fields.
func (s *Source) SeedProfile(agentID string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[agentID] = fields
}

// SeedReply registers a fixed reply agentID returns from every Chat call
// that has no Responder.
func (s *Source) SeedReply(agentID, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[agentID] = reply
}

// SeedResponder registers a callback that computes agentID's reply,
// taking priority over any fixed reply from SeedReply.
func (s *Source) SeedResponder(agentID string, fn Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder[agentID] = fn
}

func (s *Source) GetProfile(_ context.Context, agentID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[agentID]
	if !ok {
		return nil, toolerrors.NewAdapterError(
			fmt.Sprintf("no scripted profile for agent %q", agentID),
			toolerrors.Context{Skill: agentID}, nil)
	}
	return p, nil
}

func (s *Source) Chat(ctx context.Context, agentID string, messages []profile.Message) (string, error) {
	s.mu.RLock()
	responder, hasResponder := s.responder[agentID]
	reply, hasReply := s.replies[agentID]
	s.mu.RUnlock()

	if hasResponder {
		return responder(ctx, agentID, messages)
	}
	if hasReply {
		return reply, nil
	}
	return "", toolerrors.NewAdapterError(
		fmt.Sprintf("no scripted reply for agent %q", agentID),
		toolerrors.Context{Skill: agentID}, nil)
}

func (s *Source) ChatStream(ctx context.Context, agentID string, messages []profile.Message) (<-chan profile.StreamChunk, error) {
	out := make(chan profile.StreamChunk, 1)
	go func() {
		defer close(out)
		text, err := s.Chat(ctx, agentID, messages)
		if err != nil {
			out <- profile.StreamChunk{Err: err}
			return
		}
		out <- profile.StreamChunk{Delta: text}
	}()
	return out, nil
}
