// Package hashing implements a dependency-free deterministic Encoder using
// the hashing trick: tokens are hashed into a fixed-dimension accumulator,
// which is then unit-normalized. It requires no external model or
// credential, and is used by tests, local demos, and as the fallback when
// no embeddings credential is configured.
package hashing

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/resonantlabs/negotiator/toolerrors"
	"github.com/resonantlabs/negotiator/vector"
)

// Encoder implements vector.Encoder via the hashing trick.
type Encoder struct {
	dim int
}

// New constructs a hashing Encoder producing vectors of the given
// dimension. A non-positive dim falls back to 256.
func New(dim int) *Encoder {
	if dim <= 0 {
		dim = 256
	}
	return &Encoder{dim: dim}
}

// Dim returns the encoder's fixed dimension.
func (e *Encoder) Dim() int { return e.dim }

// Encode projects text into a unit-norm Vector by hashing each token into
// a bucket and accumulating signed counts, then normalizing.
func (e *Encoder) Encode(_ context.Context, text string) (vector.Vector, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, toolerrors.NewEncodingError("cannot encode empty text", toolerrors.Context{}, nil)
	}
	acc := make(vector.Vector, e.dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := int(sum % uint64(e.dim))
		sign := 1.0
		if (sum>>63)&1 == 1 {
			sign = -1.0
		}
		acc[bucket] += sign
	}
	return vector.Normalize(acc)
}

// BatchEncode encodes each text in order.
func (e *Encoder) BatchEncode(ctx context.Context, texts []string) ([]vector.Vector, error) {
	out := make([]vector.Vector, len(texts))
	for i, t := range texts {
		v, err := e.Encode(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
