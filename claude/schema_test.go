package claude

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdict struct {
	Approved bool     `json:"approved" jsonschema:"description=Whether the change is approved"`
	Reasons  []string `json:"reasons,omitempty"`
}

func TestSchemaFor(t *testing.T) {
	text, err := SchemaFor(&verdict{})
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &schema))
	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "approved")
	assert.Contains(t, props, "reasons")
	assert.Equal(t, "Whether the change is approved", props["approved"].(map[string]any)["description"])
	assert.Equal(t, []any{"approved"}, schema["required"])
}

func TestWithOutputSchema(t *testing.T) {
	cfg, err := WithOutputSchema(DefaultConfig(), &verdict{})
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.JSONSchema)
	assert.NoError(t, cfg.Validate())
	assert.Contains(t, buildArgs(cfg), cfg.JSONSchema)
}

func TestDecodeStructuredOutput(t *testing.T) {
	var v verdict
	err := DecodeStructuredOutput(map[string]any{"approved": true, "reasons": []any{"tests pass"}}, &v)
	require.NoError(t, err)
	assert.Equal(t, verdict{Approved: true, Reasons: []string{"tests pass"}}, v)

	assert.Error(t, DecodeStructuredOutput(nil, &v))
}
