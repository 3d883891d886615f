// Package vector defines the fixed-dimension real vector type shared by the
// Encoder and Resonance Detector, plus the Encoder interface and the
// profile-to-text projection helper used to prepare agent profiles for
// encoding.
package vector

import (
	"context"
	"math"
	"strings"

	"github.com/resonantlabs/negotiator/toolerrors"
)

// Vector is a fixed-dimension real vector. All vectors produced by an
// Encoder are unit-normalized; the zero value is not a valid vector.
type Vector []float64

// Dim returns the vector's dimension.
func (v Vector) Dim() int { return len(v) }

// Norm returns the Euclidean (L2) norm of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-norm copy of v. It reports a zero-norm error if
// v's norm is not usably above zero.
func Normalize(v Vector) (Vector, error) {
	n := v.Norm()
	if n <= 1e-12 {
		return nil, toolerrors.NewEncodingError("zero-norm vector cannot be normalized", toolerrors.Context{}, nil)
	}
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out, nil
}

// Dot returns the inner product of a and b. Both vectors must share the
// same dimension; callers are responsible for that invariant (the Encoder
// guarantees it for vectors it produces).
func Dot(a, b Vector) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// Encoder turns text into a unit-norm Vector of a fixed dimension constant
// per process. Implementations must be deterministic for a given model
// build and must fail on empty input rather than returning a zero vector.
type Encoder interface {
	// Encode projects text into a unit-norm Vector.
	Encode(ctx context.Context, text string) (Vector, error)

	// BatchEncode projects each of texts into a unit-norm Vector, in order.
	BatchEncode(ctx context.Context, texts []string) ([]Vector, error)

	// Dim returns the fixed dimension this Encoder produces.
	Dim() int
}

// ProfileText projects a structured agent profile document into the flat
// text string used for encoding. It mirrors the fields a profile
// conventionally carries: a short biography or self-introduction, a role,
// a skills list, and free-form "shades" (sub-facets) each carrying a
// description. Unknown fields are ignored; absent fields are skipped.
//
// The projection is intentionally lossy and stable. Besides producing
// encoding input, it is also the profile text the Offer Skill embeds in
// its prompt.
func ProfileText(profile map[string]any) string {
	var parts []string
	for _, field := range []string{"self_introduction", "bio", "role"} {
		if v, ok := profile[field]; ok {
			if s, ok := v.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
	}
	if skills, ok := profile["skills"].([]any); ok && len(skills) > 0 {
		var ss []string
		for _, s := range skills {
			if str, ok := s.(string); ok {
				ss = append(ss, str)
			}
		}
		if len(ss) > 0 {
			parts = append(parts, strings.Join(ss, ", "))
		}
	}
	if shades, ok := profile["shades"].([]any); ok {
		for _, sh := range shades {
			m, ok := sh.(map[string]any)
			if !ok {
				continue
			}
			desc, _ := m["description"].(string)
			if desc == "" {
				desc, _ = m["name"].(string)
			}
			if desc != "" {
				parts = append(parts, desc)
			}
		}
	}
	return strings.Join(parts, " ")
}
