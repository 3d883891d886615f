// Package anthropic adapts github.com/anthropics/anthropic-sdk-go onto the
// profile.Source contract, grounded on the teacher's
// features/model/anthropic/client.go client shape.
package anthropic

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/resonantlabs/negotiator/profile"
	"github.com/resonantlabs/negotiator/toolerrors"
)

// ProfileStore resolves an agent's stored profile fields. The Anthropic
// Source itself only knows how to converse with a model; profile data
// comes from whatever registry backs the deployment (see agentregistry).
type ProfileStore interface {
	Profile(ctx context.Context, agentID string) (map[string]any, error)
}

// MessagesClient is the subset of *sdk.Client the Source needs, so tests
// can substitute a fake.
type MessagesClient interface {
	New(ctx context.Context, params sdk.MessageNewParams) (*sdk.Message, error)
}

// Source is a profile.Source backed by the Anthropic Messages API.
type Source struct {
	client  MessagesClient
	model   sdk.Model
	store   ProfileStore
	maxTokens int64
}

// Options configures a Source.
type Options struct {
	Model     sdk.Model
	MaxTokens int64
}

// New constructs a Source from an existing Anthropic client.
func New(client MessagesClient, store ProfileStore, opts Options) *Source {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if opts.Model == "" {
		opts.Model = sdk.ModelClaude3_5SonnetLatest
	}
	return &Source{client: client, model: opts.Model, store: store, maxTokens: opts.MaxTokens}
}

// NewFromAPIKey constructs a Source from a raw API key, for callers that
// don't already hold a configured *sdk.Client.
func NewFromAPIKey(apiKey string, store ProfileStore, opts Options) *Source {
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Messages, store, opts)
}

func (s *Source) GetProfile(ctx context.Context, agentID string) (map[string]any, error) {
	if s.store == nil {
		return nil, toolerrors.NewAdapterError("profile source has no backing store", toolerrors.Context{Skill: agentID}, nil)
	}
	p, err := s.store.Profile(ctx, agentID)
	if err != nil {
		return nil, toolerrors.NewAdapterError("fetch profile failed", toolerrors.Context{Skill: agentID}, err)
	}
	return p, nil
}

func (s *Source) Chat(ctx context.Context, agentID string, messages []profile.Message) (string, error) {
	params := sdk.MessageNewParams{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		Messages:  toAnthropicMessages(messages),
	}
	resp, err := s.client.New(ctx, params)
	if err != nil {
		return "", toolerrors.NewAdapterError("anthropic chat failed", toolerrors.Context{Skill: agentID}, err)
	}
	return concatText(resp), nil
}

// ChatStream is implemented in terms of Chat: the Anthropic streaming
// surface is not wired (no component needs token-by-token delivery from a
// Profile Source; the Coordinator's own reasoning calls go through the
// reasoning.Client instead). It still satisfies the Source contract by
// delivering the whole reply as a single chunk.
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

func toAnthropicMessages(messages []profile.Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := sdk.NewTextBlock(m.Content)
		switch m.Role {
		case "assistant":
			out = append(out, sdk.NewAssistantMessage(block))
		default:
			out = append(out, sdk.NewUserMessage(block))
		}
	}
	return out
}

func concatText(msg *sdk.Message) string {
	if msg == nil {
		return ""
	}
	var out string
	for _, block := range msg.Content {
		if text := block.Text; text != "" {
			out += text
		}
	}
	return out
}
