// Package bedrock adapts github.com/aws/aws-sdk-go-v2/service/bedrockruntime's
// Converse API onto the reasoning.Client contract, grounded on the
// teacher's features/model/bedrock/client.go backend.
package bedrock

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go/document"

	"github.com/resonantlabs/negotiator/reasoning"
	"github.com/resonantlabs/negotiator/toolerrors"
)

// ConverseAPI is the subset of *bedrockruntime.Client the Client needs.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client is a reasoning.Client backed by Bedrock's Converse API.
type Client struct {
	api     ConverseAPI
	modelID string
}

// New constructs a Client for the given Bedrock model id (e.g.
// "anthropic.claude-3-5-sonnet-20241022-v2:0").
func New(api ConverseAPI, modelID string) *Client {
	return &Client{api: api, modelID: modelID}
}

func (c *Client) Complete(ctx context.Context, messages []reasoning.Message, tools []reasoning.ToolSpec) (reasoning.Response, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId:    &c.modelID,
		Messages:   toBedrockMessages(messages),
		ToolConfig: toBedrockToolConfig(tools),
	}
	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return reasoning.Response{}, toolerrors.NewReasoningError("bedrock converse failed", toolerrors.Context{}, err)
	}
	return fromBedrockOutput(out), nil
}

func toBedrockMessages(messages []reasoning.Message) []types.Message {
	out := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "assistant":
			out = append(out, types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
			})
		case "tool":
			out = append(out, types.Message{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberToolResult{
					Value: types.ToolResultBlock{
						ToolUseId: &m.ToolCallID,
						Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: m.Content}},
					},
				}},
			})
		default:
			out = append(out, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
			})
		}
	}
	return out
}

func toBedrockToolConfig(tools []reasoning.ToolSpec) *types.ToolConfiguration {
	if len(tools) == 0 {
		return nil
	}
	specs := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        &t.Name,
				Description: &t.Description,
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(t.InputSchema),
				},
			},
		})
	}
	return &types.ToolConfiguration{Tools: specs}
}

func fromBedrockOutput(out *bedrockruntime.ConverseOutput) reasoning.Response {
	resp := reasoning.Response{}
	if out == nil || out.Output == nil {
		return resp
	}
	msgOutput, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return resp
	}
	for _, block := range msgOutput.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			resp.Text += b.Value
		case *types.ContentBlockMemberToolUse:
			var args map[string]any
			if raw, err := b.Value.Input.MarshalSmithyDocument(); err == nil {
				_ = json.Unmarshal(raw, &args)
			}
			resp.ToolCalls = append(resp.ToolCalls, reasoning.ToolCall{
				ID:   derefStr(b.Value.ToolUseId),
				Name: derefStr(b.Value.Name),
				Args: args,
			})
		}
	}
	return resp
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
