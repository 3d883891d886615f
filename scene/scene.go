// Package scene implements the Scene Registry of spec §4.9: scenes group
// agents into addressable scopes, and a negotiation's demand carries a
// scope selector string naming which scenes' agents may participate.
package scene

import (
	"strings"
	"sync"

	"github.com/resonantlabs/negotiator/toolerrors"
)

// Scene is a named collection of agent ids, grounded on
// original_source's scene_registry.py.
type Scene struct {
	ID      string
	Name    string
	AgentIDs []string
}

// Registry is the in-memory Scene Registry: scene_id -> Scene.
type Registry struct {
	mu     sync.RWMutex
	scenes map[string]*Scene
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{scenes: make(map[string]*Scene)}
}

// Put registers or replaces a Scene.
func (r *Registry) Put(s *Scene) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenes[s.ID] = s
}

// Get returns the Scene for sceneID, or nil if unknown.
func (r *Registry) Get(sceneID string) *Scene {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scenes[sceneID]
}

// All returns every registered Scene, in no particular order.
func (r *Registry) All() []*Scene {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Scene, 0, len(r.scenes))
	for _, s := range r.scenes {
		out = append(out, s)
	}
	return out
}

const allScope = "all"
const sceneScopePrefix = "scene:"

// ResolveScope parses a demand's scope selector and returns the agent ids
// in scope. "all" returns every agent across every registered scene;
// "scene:<id>" returns the named scene's agents, or a ConfigError if the
// scene is unknown. Any other selector is reserved for future use and is
// itself a ConfigError until defined.
func (r *Registry) ResolveScope(scope string) ([]string, error) {
	switch {
	case scope == allScope:
		r.mu.RLock()
		defer r.mu.RUnlock()
		var ids []string
		for _, s := range r.scenes {
			ids = append(ids, s.AgentIDs...)
		}
		return ids, nil
	case strings.HasPrefix(scope, sceneScopePrefix):
		sceneID := strings.TrimPrefix(scope, sceneScopePrefix)
		s := r.Get(sceneID)
		if s == nil {
			return nil, toolerrors.NewConfigError("unknown scene in scope selector", toolerrors.Context{Stage: scope}, nil)
		}
		return append([]string(nil), s.AgentIDs...), nil
	default:
		return nil, toolerrors.NewConfigError("unrecognized scope selector", toolerrors.Context{Stage: scope}, nil)
	}
}
