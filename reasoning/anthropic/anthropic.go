// Package anthropic adapts github.com/anthropics/anthropic-sdk-go onto the
// reasoning.Client contract, grounded on the teacher's
// features/model/anthropic/client.go tool-use handling.
package anthropic

import (
	"context"
	"encoding/json"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/resonantlabs/negotiator/reasoning"
	"github.com/resonantlabs/negotiator/toolerrors"
)

// MessagesClient is the subset of *sdk.Client the Client needs.
type MessagesClient interface {
	New(ctx context.Context, params sdk.MessageNewParams) (*sdk.Message, error)
}

// Client is a reasoning.Client backed by the Anthropic Messages API's
// native tool-use support.
type Client struct {
	client    MessagesClient
	model     sdk.Model
	maxTokens int64
}

// Options configures a Client.
type Options struct {
	Model     sdk.Model
	MaxTokens int64
}

// New constructs a Client from an existing Anthropic client.
func New(client MessagesClient, opts Options) *Client {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	if opts.Model == "" {
		opts.Model = sdk.ModelClaude3_5SonnetLatest
	}
	return &Client{client: client, model: opts.Model, maxTokens: opts.MaxTokens}
}

// NewFromAPIKey constructs a Client from a raw API key.
func NewFromAPIKey(apiKey string, opts Options) *Client {
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Messages, opts)
}

func (c *Client) Complete(ctx context.Context, messages []reasoning.Message, tools []reasoning.ToolSpec) (reasoning.Response, error) {
	params := sdk.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  toAnthropicMessages(messages),
		Tools:     toAnthropicTools(tools),
	}
	resp, err := c.client.New(ctx, params)
	if err != nil {
		return reasoning.Response{}, toolerrors.NewReasoningError("anthropic completion failed", toolerrors.Context{}, err)
	}
	return fromAnthropicMessage(resp), nil
}

func toAnthropicMessages(messages []reasoning.Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "assistant":
			out = append(out, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		case "tool":
			out = append(out, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		default:
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}
	return out
}

func toAnthropicTools(tools []reasoning.ToolSpec) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        t.Name,
				Description: sdk.String(t.Description),
				InputSchema: sdk.ToolInputSchemaParam{
					Properties: t.InputSchema["properties"],
				},
			},
		})
	}
	return out
}

func fromAnthropicMessage(msg *sdk.Message) reasoning.Response {
	if msg == nil {
		return reasoning.Response{}
	}
	resp := reasoning.Response{}
	for _, block := range msg.Content {
		if text := block.Text; text != "" {
			resp.Text += text
		}
		if block.Type == "tool_use" {
			var args map[string]any
			_ = json.Unmarshal(block.Input, &args)
			resp.ToolCalls = append(resp.ToolCalls, reasoning.ToolCall{
				ID:   block.ID,
				Name: block.Name,
				Args: args,
			})
		}
	}
	return resp
}
