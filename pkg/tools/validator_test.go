package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addSchema() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]Property{
			"a": {Type: "number"},
			"b": {Type: "number"},
		},
		Required: []string{"a", "b"},
	}
}

func TestValidateRequiredFields(t *testing.T) {
	err := ValidateParameters(addSchema(), map[string]any{"a": float64(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"b"`)
	assert.Contains(t, err.Error(), "required")
}

func TestValidateTypeMismatch(t *testing.T) {
	err := ValidateParameters(addSchema(), map[string]any{"a": "x", "b": float64(2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"a"`)
	assert.Contains(t, err.Error(), "number")
}

func TestValidateRequiredBeforeType(t *testing.T) {
	// Both a missing required field and a type mismatch: the required check
	// fires first.
	err := ValidateParameters(addSchema(), map[string]any{"a": "not a number"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestValidateEnum(t *testing.T) {
	schema := &Schema{
		Type: "object",
		Properties: map[string]Property{
			"mode": {Type: "string", Enum: []any{"fast", "slow"}},
		},
		Required: []string{"mode"},
	}
	assert.NoError(t, ValidateParameters(schema, map[string]any{"mode": "fast"}))

	err := ValidateParameters(schema, map[string]any{"mode": "medium"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"mode"`)
}

func TestValidateEnumNumericEquivalence(t *testing.T) {
	// Enum values loaded from YAML carry Go ints; directive parameters carry
	// JSON float64s.
	schema := &Schema{
		Type:       "object",
		Properties: map[string]Property{"level": {Type: "integer", Enum: []any{1, 2, 3}}},
	}
	assert.NoError(t, ValidateParameters(schema, map[string]any{"level": float64(2)}))
	assert.Error(t, ValidateParameters(schema, map[string]any{"level": float64(4)}))
}

func TestValidateArrayByListness(t *testing.T) {
	schema := &Schema{
		Type:       "object",
		Properties: map[string]Property{"items": {Type: "array"}},
	}
	assert.NoError(t, ValidateParameters(schema, map[string]any{"items": []any{"a", "b"}}))

	err := ValidateParameters(schema, map[string]any{"items": map[string]any{"0": "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array")
}

func TestValidateIntegerRejectsFraction(t *testing.T) {
	schema := &Schema{
		Type:       "object",
		Properties: map[string]Property{"count": {Type: "integer"}},
	}
	assert.NoError(t, ValidateParameters(schema, map[string]any{"count": float64(3)}))
	assert.Error(t, ValidateParameters(schema, map[string]any{"count": 3.5}))
}

func TestValidateUnknownFieldsIgnored(t *testing.T) {
	assert.NoError(t, ValidateParameters(addSchema(), map[string]any{
		"a": float64(1), "b": float64(2), "extra": "whatever",
	}))
}

func TestValidateNilSchema(t *testing.T) {
	assert.NoError(t, ValidateParameters(nil, map[string]any{"anything": true}))
}
