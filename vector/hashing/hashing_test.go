package hashing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonantlabs/negotiator/vector/hashing"
)

func TestEncode_IsDeterministic(t *testing.T) {
	enc := hashing.New(32)
	a, err := enc.Encode(context.Background(), "help me ship this project")
	require.NoError(t, err)
	b, err := enc.Encode(context.Background(), "help me ship this project")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncode_IsUnitNorm(t *testing.T) {
	enc := hashing.New(16)
	v, err := enc.Encode(context.Background(), "some text to encode")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v.Norm(), 1e-9)
}

func TestEncode_EmptyTextIsError(t *testing.T) {
	enc := hashing.New(16)
	_, err := enc.Encode(context.Background(), "   ")
	assert.Error(t, err)
}

func TestEncode_DifferentTextDiffers(t *testing.T) {
	enc := hashing.New(64)
	a, err := enc.Encode(context.Background(), "alpha")
	require.NoError(t, err)
	b, err := enc.Encode(context.Background(), "beta gamma delta")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestBatchEncode_PreservesOrder(t *testing.T) {
	enc := hashing.New(16)
	texts := []string{"one", "two", "three"}
	vecs, err := enc.BatchEncode(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, text := range texts {
		single, err := enc.Encode(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, vecs[i])
	}
}

func TestNew_NonPositiveDimFallsBackToDefault(t *testing.T) {
	enc := hashing.New(0)
	assert.Equal(t, 256, enc.Dim())
}
