// Package agentregistry implements the Agent Registry of spec §4.9: the
// catalog of agents available to negotiate, each bound to the Profile
// Source that answers for it, and the vector production used by the
// Resonance Detector.
package agentregistry

import (
	"context"
	"strings"

	"github.com/resonantlabs/negotiator/profile"
	"github.com/resonantlabs/negotiator/toolerrors"
	"github.com/resonantlabs/negotiator/vector"

	"sync"
)

// Agent is one catalog entry, grounded on original_source's
// agent_manager.py.
type Agent struct {
	AgentID     string
	DisplayName string
	SourceTag   string
	SceneIDs    []string
	ProfileData map[string]any
	// Precomputed is an optional vector loaded from the precomputed
	// vectors archive (spec §6.6); when set, Vectors skips encoding.
	Precomputed vector.Vector
}

// Registry is the in-memory Agent Registry: agent_id -> Agent, plus the
// source_tag -> profile.Source binding table.
type Registry struct {
	mu      sync.RWMutex
	agents  map[string]*Agent
	sources map[string]profile.Source
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*Agent), sources: make(map[string]profile.Source)}
}

// RegisterSource binds a profile.Source under sourceTag, for agents whose
// SourceTag names it.
func (r *Registry) RegisterSource(sourceTag string, src profile.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[sourceTag] = src
}

// Put registers or replaces an Agent.
func (r *Registry) Put(a *Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.AgentID] = a
}

// Get returns the Agent for agentID, or nil if unknown.
func (r *Registry) Get(agentID string) *Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agents[agentID]
}

// DisplayName returns agentID's display name, or agentID itself if
// unregistered (so the coordinator can still reference an id it was
// handed out of band without crashing on a missing lookup).
func (r *Registry) DisplayName(agentID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.agents[agentID]; ok && a.DisplayName != "" {
		return a.DisplayName
	}
	return agentID
}

// Source returns the profile.Source bound to agentID's source_tag.
func (r *Registry) Source(agentID string) (profile.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	if !ok {
		return nil, toolerrors.NewAdapterError("unknown agent", toolerrors.Context{Skill: agentID}, nil)
	}
	src, ok := r.sources[a.SourceTag]
	if !ok {
		return nil, toolerrors.NewAdapterError("no profile source bound for source_tag", toolerrors.Context{Skill: a.SourceTag}, nil)
	}
	return src, nil
}

// Vectors produces one resonance vector per agent in agentIDs: the
// agent's precomputed vector if it has one, otherwise its profile text
// (vector.ProfileText) encoded fresh via enc on every call. Agents with
// neither a precomputed vector nor any profile text are omitted rather
// than failing the whole batch, so one empty profile cannot stall every
// sibling's resonance score; an error from enc itself fails the call.
func (r *Registry) Vectors(ctx context.Context, agentIDs []string, enc vector.Encoder) (map[string]vector.Vector, error) {
	out := make(map[string]vector.Vector, len(agentIDs))
	var toEncode []string
	var toEncodeText []string

	for _, id := range agentIDs {
		a := r.Get(id)
		if a == nil {
			continue
		}
		if a.Precomputed != nil {
			out[id] = a.Precomputed
			continue
		}
		text := vector.ProfileText(a.ProfileData)
		if strings.TrimSpace(text) == "" {
			continue
		}
		toEncode = append(toEncode, id)
		toEncodeText = append(toEncodeText, text)
	}

	if len(toEncode) == 0 {
		return out, nil
	}
	vecs, err := enc.BatchEncode(ctx, toEncodeText)
	if err != nil {
		return nil, toolerrors.NewEncodingError("batch encode agent profiles failed", toolerrors.Context{}, err)
	}
	for i, id := range toEncode {
		out[id] = vecs[i]
	}
	return out, nil
}

// InScope filters agentIDs down to those registered in this Registry,
// preserving order.
func (r *Registry) InScope(agentIDs []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(agentIDs))
	for _, id := range agentIDs {
		if _, ok := r.agents[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
