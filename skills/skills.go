// Package skills implements the Skills layer of spec §4.7: the prompt
// assembly and output-parsing discipline shared by every LLM-backed step
// of a negotiation. Each concrete skill (DemandFormulationSkill,
// OfferGenerationSkill, CoordinatorSkill, SubNegotiationSkill,
// GapRecursionSkill) composes the helpers in this file around its own
// prompt and its own typed output, grounded on the teacher's
// runtime/agent/runtime/tool_calls.go dispatch discipline and
// original_source's towow/skills/*.py prompt shapes.
package skills

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/resonantlabs/negotiator/toolerrors"
)

// llmErrorPatterns are substrings that mark a model's reply as a refusal
// or failure rather than a usable answer (spec §4.7's "LLM-error-pattern
// rejection"). Matching is case-insensitive and prefix-agnostic: a model
// sometimes wraps the refusal in its own preamble.
var llmErrorPatterns = []string{
	"i cannot assist",
	"i can't assist",
	"i'm not able to",
	"i am not able to",
	"as an ai language model",
	"i apologize, but i cannot",
	"rate limit exceeded",
	"too many requests",
}

// LooksLikeRefusal reports whether text matches a known LLM refusal
// pattern, independent of whether it is valid JSON.
func LooksLikeRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, pattern := range llmErrorPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// ParseJSONLenient extracts a JSON object from raw, tolerating a
// surrounding ```json ... ``` or ``` ... ``` markdown fence and leading or
// trailing prose around the fenced block. It is the single place every
// skill funnels a model's raw text reply through before trusting it as
// structured output.
//
// When raw isn't valid JSON even after fence-stripping, it is not
// rejected: per spec §4.7 step 4 the whole body is treated as
// primaryField's value, with every other field left absent (callers read
// those through StringField/Float64Field/StringSliceField, which already
// default or error on absence exactly as they would for a field the model
// chose to omit from a well-formed reply).
func ParseJSONLenient(raw, primaryField string) (map[string]any, error) {
	if LooksLikeRefusal(raw) {
		return nil, toolerrors.NewSkillError("model reply looks like a refusal", toolerrors.Context{}, nil)
	}
	candidate := stripFence(raw)
	var out map[string]any
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return map[string]any{primaryField: strings.TrimSpace(raw)}, nil
	}
	return out, nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return extractBraces(s)
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(s[:nl])
		if firstLine == "json" || firstLine == "" {
			s = s[nl+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return extractBraces(strings.TrimSpace(s))
}

// extractBraces trims any prose before the first '{' and after the
// matching final '}', since models sometimes prepend a sentence before
// the JSON object despite instructions not to.
func extractBraces(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// ClampConfidence restricts v to [0,1], the range every skill's
// confidence-bearing output field must fall in before it reaches the
// Session aggregate.
func ClampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// StringField reads a required string field from a parsed JSON object,
// returning a SkillError naming the field if it is missing or not a
// string.
func StringField(obj map[string]any, field string) (string, error) {
	v, ok := obj[field]
	if !ok {
		return "", toolerrors.NewSkillError(fmt.Sprintf("missing required field %q", field), toolerrors.Context{}, nil)
	}
	s, ok := v.(string)
	if !ok {
		return "", toolerrors.NewSkillError(fmt.Sprintf("field %q is not a string", field), toolerrors.Context{}, nil)
	}
	return s, nil
}

// OptionalStringField reads an optional string field, defaulting to ""
// when absent or not a string rather than erroring like StringField.
func OptionalStringField(obj map[string]any, field string) string {
	v, ok := obj[field]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// Float64Field reads an optional numeric field, defaulting to def when
// absent. JSON numbers unmarshal as float64, so no conversion is needed
// beyond the type assertion.
func Float64Field(obj map[string]any, field string, def float64) float64 {
	v, ok := obj[field]
	if !ok {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		return def
	}
	return f
}

// StringSliceField reads an optional []string field encoded as a JSON
// array of strings, skipping any non-string elements rather than
// failing the whole skill over one malformed entry.
func StringSliceField(obj map[string]any, field string) []string {
	v, ok := obj[field]
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
