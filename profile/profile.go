// Package profile defines the Profile Source collaborator contract of
// spec §6.4: how the Engine and Skills retrieve an agent's profile data
// and, where an agent is itself backed by a live model, how they converse
// with it. Concrete sources live in subpackages (profile/anthropic,
// profile/scripted).
package profile

import "context"

// Message is one turn of a chat exchange with an agent-backed model.
type Message struct {
	Role    string // "user", "assistant", or "system"
	Content string
}

// StreamChunk is one increment of a streamed chat response. Err is set
// (and Delta empty) on the final item of a stream that failed.
type StreamChunk struct {
	Delta string
	Err   error
}

// Source is the Profile Source contract. Every method is scoped to one
// agent id; callers must never request or forward data for an agent they
// are not addressing, the anti-fabrication rule of spec §4.7.
type Source interface {
	// GetProfile returns the stored profile fields for agentID (bio,
	// role, skills, shades, and any source-specific fields). Callers
	// pass the result to vector.ProfileText for encoding or embed
	// individual fields in skill prompts; they never forward another
	// agent's profile.
	GetProfile(ctx context.Context, agentID string) (map[string]any, error)

	// Chat sends messages to agentID's backing model and returns its
	// full reply.
	Chat(ctx context.Context, agentID string, messages []Message) (string, error)

	// ChatStream behaves like Chat but delivers the reply incrementally
	// on the returned channel, which the Source closes when the
	// response (or an error) completes.
	ChatStream(ctx context.Context, agentID string, messages []Message) (<-chan StreamChunk, error)
}
