package skills

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/resonantlabs/negotiator/reasoning"
	"github.com/resonantlabs/negotiator/toolerrors"
)

// Tool names of the Coordinator's closed enum (spec §4.5). No other tool
// name is ever offered to or accepted from the model.
const (
	ToolOutputPlan      = "output_plan"
	ToolAskAgent        = "ask_agent"
	ToolStartDiscovery  = "start_discovery"
	ToolCreateSubDemand = "create_sub_demand"
	ToolCreateMachine   = "create_machine"
)

// builtinToolOrder is intentionally closed: the Coordinator loop must never
// let a model-named ad hoc tool through.
var builtinToolOrder = []string{ToolOutputPlan, ToolAskAgent, ToolStartDiscovery, ToolCreateSubDemand, ToolCreateMachine}

var builtinToolDefs = map[string]struct {
	description string
	schema      string
}{
	ToolOutputPlan: {
		description: "Emit the final synthesized plan for the negotiation and end the coordinator loop.",
		schema: `{
			"type": "object",
			"properties": {"plan": {"type": "string"}},
			"required": ["plan"]
		}`,
	},
	ToolAskAgent: {
		description: "Ask a specific activated agent a follow-up question.",
		schema: `{
			"type": "object",
			"properties": {
				"agent_id": {"type": "string"},
				"question": {"type": "string"}
			},
			"required": ["agent_id", "question"]
		}`,
	},
	ToolStartDiscovery: {
		description: "Investigate whether two agents can jointly cover a gap in the offers collected so far.",
		schema: `{
			"type": "object",
			"properties": {
				"agent_a": {"type": "string"},
				"agent_b": {"type": "string"},
				"reason": {"type": "string"}
			},
			"required": ["agent_a", "agent_b", "reason"]
		}`,
	},
	ToolCreateSubDemand: {
		description: "Spin off a nested negotiation scoped to cover an unmet gap.",
		schema: `{
			"type": "object",
			"properties": {
				"gap_description": {"type": "string"},
				"scope": {"type": "string"}
			},
			"required": ["gap_description"]
		}`,
	},
	ToolCreateMachine: {
		description: "Emit a machine-executable artifact derived from the negotiated plan.",
		schema: `{
			"type": "object",
			"properties": {"payload": {"type": "object"}},
			"required": ["payload"]
		}`,
	},
}

// ToolRegistry compiles and validates the Coordinator's tool schemas via
// jsonschema/v6, grounded on the teacher's runtime/agent/runtime/tool_calls.go
// dispatch style. The five built-in tools are always present; Register
// exists as a seam for tests and future tool additions, not for runtime
// extension of the closed enum the Coordinator Synthesis Loop enforces.
type ToolRegistry struct {
	schemas     map[string]*jsonschema.Schema
	descriptions map[string]string
	rawSchemas  map[string]map[string]any
}

// NewToolRegistry compiles the five built-in tool schemas.
func NewToolRegistry() (*ToolRegistry, error) {
	r := &ToolRegistry{
		schemas:      make(map[string]*jsonschema.Schema),
		descriptions: make(map[string]string),
		rawSchemas:   make(map[string]map[string]any),
	}
	for _, name := range builtinToolOrder {
		def := builtinToolDefs[name]
		if err := r.Register(name, def.description, def.schema); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register compiles and adds a tool schema under name.
func (r *ToolRegistry) Register(name, description, schemaJSON string) error {
	compiler := jsonschema.NewCompiler()
	raw, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(schemaJSON)))
	if err != nil {
		return toolerrors.NewConfigError(fmt.Sprintf("parse schema for tool %q", name), toolerrors.Context{Skill: name}, err)
	}
	resourceName := "tool://" + name
	if err := compiler.AddResource(resourceName, raw); err != nil {
		return toolerrors.NewConfigError(fmt.Sprintf("add schema for tool %q", name), toolerrors.Context{Skill: name}, err)
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return toolerrors.NewConfigError(fmt.Sprintf("compile schema for tool %q", name), toolerrors.Context{Skill: name}, err)
	}
	r.schemas[name] = schema
	r.descriptions[name] = description
	if m, ok := raw.(map[string]any); ok {
		r.rawSchemas[name] = m
	}
	return nil
}

// Validate checks args against the registered schema for name. An unknown
// tool name is always rejected, closing the enum the Coordinator loop
// relies on.
func (r *ToolRegistry) Validate(name string, args map[string]any) error {
	schema, ok := r.schemas[name]
	if !ok {
		return toolerrors.NewSkillError(fmt.Sprintf("unknown tool %q", name), toolerrors.Context{Skill: name}, nil)
	}
	if err := schema.Validate(args); err != nil {
		return toolerrors.NewSkillError(fmt.Sprintf("tool %q arguments invalid", name), toolerrors.Context{Skill: name}, err)
	}
	return nil
}

// Specs returns the reasoning.ToolSpec list for every registered tool, in
// the fixed builtinToolOrder followed by any custom registrations sorted
// by name, so the
// Reasoning Client always sees tools in a stable order.
func (r *ToolRegistry) Specs() []reasoning.ToolSpec {
	seen := make(map[string]bool, len(r.schemas))
	out := make([]reasoning.ToolSpec, 0, len(r.schemas))
	for _, name := range builtinToolOrder {
		if _, ok := r.schemas[name]; !ok {
			continue
		}
		seen[name] = true
		out = append(out, reasoning.ToolSpec{Name: name, Description: r.descriptions[name], InputSchema: r.rawSchemas[name]})
	}
	var custom []string
	for name := range r.rawSchemas {
		if !seen[name] {
			custom = append(custom, name)
		}
	}
	sort.Strings(custom)
	for _, name := range custom {
		out = append(out, reasoning.ToolSpec{Name: name, Description: r.descriptions[name], InputSchema: r.rawSchemas[name]})
	}
	return out
}
