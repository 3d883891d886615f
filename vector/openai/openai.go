// Package openai provides a vector.Encoder implementation backed by the
// OpenAI Embeddings API, translating engine encode requests into
// embeddings.New calls using github.com/openai/openai-go.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/resonantlabs/negotiator/toolerrors"
	"github.com/resonantlabs/negotiator/vector"
)

// EmbeddingsClient captures the subset of the OpenAI SDK client used by the
// adapter, letting callers pass either a real client or a mock in tests.
type EmbeddingsClient interface {
	New(ctx context.Context, body sdk.EmbeddingNewParams, opts ...option.RequestOption) (*sdk.CreateEmbeddingResponse, error)
}

// Options configures the OpenAI-backed Encoder.
type Options struct {
	// Model is the embeddings model identifier, e.g.
	// string(sdk.EmbeddingModelTextEmbedding3Small).
	Model string

	// Dim is the dimensionality of the chosen model's output. Required so
	// Encoder.Dim can be answered without a round trip.
	Dim int
}

// Encoder implements vector.Encoder on top of the OpenAI Embeddings API.
type Encoder struct {
	client EmbeddingsClient
	model  string
	dim    int
}

// New builds an Encoder from the given embeddings client and options.
func New(client EmbeddingsClient, opts Options) (*Encoder, error) {
	if client == nil {
		return nil, errors.New("openai embeddings client is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("embeddings model identifier is required")
	}
	if opts.Dim <= 0 {
		return nil, errors.New("embeddings dimension is required")
	}
	return &Encoder{client: client, model: opts.Model, dim: opts.Dim}, nil
}

// NewFromAPIKey constructs an Encoder using the default OpenAI HTTP client.
func NewFromAPIKey(apiKey string, opts Options) (*Encoder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Embeddings, opts)
}

// Dim returns the encoder's fixed output dimension.
func (e *Encoder) Dim() int { return e.dim }

// Encode projects text into a unit-norm Vector via a single-item embeddings
// request.
func (e *Encoder) Encode(ctx context.Context, text string) (vector.Vector, error) {
	vs, err := e.BatchEncode(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

// BatchEncode projects each text into a unit-norm Vector via a single
// embeddings request covering all inputs.
func (e *Encoder) BatchEncode(ctx context.Context, texts []string) ([]vector.Vector, error) {
	if len(texts) == 0 {
		return nil, toolerrors.NewEncodingError("cannot encode an empty batch", toolerrors.Context{}, nil)
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, toolerrors.NewEncodingError("cannot encode empty text", toolerrors.Context{}, nil)
		}
	}
	resp, err := e.client.New(ctx, sdk.EmbeddingNewParams{
		Input: sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: e.model,
	})
	if err != nil {
		return nil, toolerrors.NewEncodingError("openai embeddings request failed", toolerrors.Context{}, fmt.Errorf("embeddings.new: %w", err))
	}
	if len(resp.Data) != len(texts) {
		return nil, toolerrors.NewEncodingError("openai returned an unexpected number of embeddings", toolerrors.Context{}, nil)
	}
	out := make([]vector.Vector, len(texts))
	for i, d := range resp.Data {
		raw := make(vector.Vector, len(d.Embedding))
		for j, f := range d.Embedding {
			raw[j] = f
		}
		norm, err := vector.Normalize(raw)
		if err != nil {
			return nil, err
		}
		out[i] = norm
	}
	return out, nil
}
