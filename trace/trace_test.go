package trace_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonantlabs/negotiator/trace"
)

func TestStartFinish_AppendsEntry(t *testing.T) {
	chain := trace.New("nego-1")
	rec := chain.Start("encoding")
	time.Sleep(time.Millisecond)
	rec.Finish("demand text", "ok", map[string]any{"k": "v"})

	entries := chain.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "encoding", entries[0].StepName)
	assert.Equal(t, "demand text", entries[0].InputSummary)
	assert.Equal(t, "ok", entries[0].OutputSummary)
	assert.GreaterOrEqual(t, entries[0].DurationMS, int64(0))
}

func TestEntries_PreservesEmitOrder(t *testing.T) {
	chain := trace.New("nego-1")
	chain.Start("step1").Finish("", "", nil)
	chain.Start("step2").Finish("", "", nil)
	chain.Start("step3").Finish("", "", nil)

	entries := chain.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"step1", "step2", "step3"}, []string{entries[0].StepName, entries[1].StepName, entries[2].StepName})
}

func TestComplete_IsIdempotent(t *testing.T) {
	chain := trace.New("nego-1")
	_, done := chain.CompletedAt()
	assert.False(t, done)

	chain.Complete()
	first, done := chain.CompletedAt()
	require.True(t, done)

	chain.Complete() // must not move the timestamp on a second call
	second, _ := chain.CompletedAt()
	assert.Equal(t, first, second)
}

func TestEntries_ReturnsIndependentCopy(t *testing.T) {
	chain := trace.New("nego-1")
	chain.Start("step1").Finish("", "", nil)

	entries := chain.Entries()
	entries[0].StepName = "mutated"

	fresh := chain.Entries()
	assert.Equal(t, "step1", fresh[0].StepName)
}
