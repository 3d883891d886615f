package skills_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonantlabs/negotiator/skills"
)

func TestParseJSONLenient_PlainObject(t *testing.T) {
	obj, err := skills.ParseJSONLenient(`{"a": 1, "b": "two"}`, "primary")
	require.NoError(t, err)
	assert.Equal(t, float64(1), obj["a"])
	assert.Equal(t, "two", obj["b"])
}

func TestParseJSONLenient_FencedWithLanguageTag(t *testing.T) {
	raw := "```json\n{\"a\": 1}\n```"
	obj, err := skills.ParseJSONLenient(raw, "primary")
	require.NoError(t, err)
	assert.Equal(t, float64(1), obj["a"])
}

func TestParseJSONLenient_FencedNoLanguageTag(t *testing.T) {
	raw := "```\n{\"a\": 1}\n```"
	obj, err := skills.ParseJSONLenient(raw, "primary")
	require.NoError(t, err)
	assert.Equal(t, float64(1), obj["a"])
}

func TestParseJSONLenient_ProseBeforeAndAfterObject(t *testing.T) {
	raw := "Sure, here is the result:\n{\"a\": 1}\nLet me know if you need anything else."
	obj, err := skills.ParseJSONLenient(raw, "primary")
	require.NoError(t, err)
	assert.Equal(t, float64(1), obj["a"])
}

func TestParseJSONLenient_RefusalRejected(t *testing.T) {
	_, err := skills.ParseJSONLenient("I'm not able to help with that request.", "primary")
	assert.Error(t, err)
}

func TestParseJSONLenient_MalformedJSONFallsBackToPrimaryField(t *testing.T) {
	obj, err := skills.ParseJSONLenient("{not json", "formulated_text")
	require.NoError(t, err)
	assert.Equal(t, "{not json", obj["formulated_text"])
}

func TestParseJSONLenient_PlainTextFallsBackToPrimaryField(t *testing.T) {
	obj, err := skills.ParseJSONLenient("just help the user ship their project", "formulated_text")
	require.NoError(t, err)
	assert.Equal(t, "just help the user ship their project", obj["formulated_text"])
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, skills.ClampConfidence(-0.5))
	assert.Equal(t, 1.0, skills.ClampConfidence(1.5))
	assert.Equal(t, 0.42, skills.ClampConfidence(0.42))
}

func TestStringSliceField_SkipsNonStringElements(t *testing.T) {
	obj := map[string]any{"capabilities": []any{"a", 1, "b", nil}}
	assert.Equal(t, []string{"a", "b"}, skills.StringSliceField(obj, "capabilities"))
}

func TestStringField_MissingIsError(t *testing.T) {
	_, err := skills.StringField(map[string]any{}, "content")
	assert.Error(t, err)
}
