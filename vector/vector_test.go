package vector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonantlabs/negotiator/vector"
)

func TestNormalize_UnitNorm(t *testing.T) {
	v, err := vector.Normalize(vector.Vector{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v.Norm(), 1e-9)
	assert.InDelta(t, 0.6, v[0], 1e-9)
	assert.InDelta(t, 0.8, v[1], 1e-9)
}

func TestNormalize_ZeroNormIsError(t *testing.T) {
	_, err := vector.Normalize(vector.Vector{0, 0, 0})
	assert.Error(t, err)
}

func TestDot(t *testing.T) {
	assert.InDelta(t, 11.0, vector.Dot(vector.Vector{1, 2}, vector.Vector{3, 4}), 1e-9)
}

func TestProfileText_CombinesKnownFields(t *testing.T) {
	profile := map[string]any{
		"bio":    "I build things",
		"role":   "engineer",
		"skills": []any{"go", "python"},
		"shades": []any{
			map[string]any{"description": "backend focus"},
			map[string]any{"name": "fallback name"},
		},
	}
	text := vector.ProfileText(profile)
	assert.Contains(t, text, "I build things")
	assert.Contains(t, text, "engineer")
	assert.Contains(t, text, "go, python")
	assert.Contains(t, text, "backend focus")
	assert.Contains(t, text, "fallback name")
}

func TestProfileText_EmptyProfileYieldsEmptyString(t *testing.T) {
	assert.Equal(t, "", vector.ProfileText(map[string]any{}))
}

func TestProfileText_SkipsNonStringSkills(t *testing.T) {
	text := vector.ProfileText(map[string]any{"skills": []any{"go", 1, "rust"}})
	assert.Equal(t, "go, rust", text)
}
