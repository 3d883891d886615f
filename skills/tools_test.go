package skills_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonantlabs/negotiator/skills"
)

func TestToolRegistry_BuiltinToolsValidate(t *testing.T) {
	reg, err := skills.NewToolRegistry()
	require.NoError(t, err)

	cases := []struct {
		name string
		args map[string]any
	}{
		{skills.ToolOutputPlan, map[string]any{"plan": "do the thing"}},
		{skills.ToolAskAgent, map[string]any{"agent_id": "a1", "question": "can you clarify?"}},
		{skills.ToolStartDiscovery, map[string]any{"agent_a": "a1", "agent_b": "a2", "reason": "coverage gap"}},
		{skills.ToolCreateSubDemand, map[string]any{"gap_description": "no vendor replied"}},
		{skills.ToolCreateMachine, map[string]any{"payload": map[string]any{"k": "v"}}},
	}
	for _, tc := range cases {
		assert.NoErrorf(t, reg.Validate(tc.name, tc.args), "tool %s should validate", tc.name)
	}
}

func TestToolRegistry_MissingRequiredFieldRejected(t *testing.T) {
	reg, err := skills.NewToolRegistry()
	require.NoError(t, err)

	err = reg.Validate(skills.ToolAskAgent, map[string]any{"agent_id": "a1"})
	assert.Error(t, err)
}

func TestToolRegistry_UnknownToolRejected(t *testing.T) {
	reg, err := skills.NewToolRegistry()
	require.NoError(t, err)

	err = reg.Validate("delete_everything", map[string]any{})
	assert.Error(t, err)
}

func TestToolRegistry_SpecsOrderIsStable(t *testing.T) {
	reg, err := skills.NewToolRegistry()
	require.NoError(t, err)

	specs := reg.Specs()
	require.Len(t, specs, 5)
	assert.Equal(t, skills.ToolOutputPlan, specs[0].Name)
	assert.Equal(t, skills.ToolAskAgent, specs[1].Name)
	assert.Equal(t, skills.ToolStartDiscovery, specs[2].Name)
	assert.Equal(t, skills.ToolCreateSubDemand, specs[3].Name)
	assert.Equal(t, skills.ToolCreateMachine, specs[4].Name)
}
