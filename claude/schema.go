package claude

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects v's type into JSON Schema text for --json-schema.
// Struct fields follow their json tags; jsonschema tags add descriptions
// and constraints.
func SchemaFor(v any) (string, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.Reflect(v)

	data, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	return string(data), nil
}

// WithOutputSchema returns cfg with JSONSchema set to the schema of v. The
// structured output arrives in ResultMessage.StructuredOutput.
func WithOutputSchema(cfg Config, v any) (Config, error) {
	schema, err := SchemaFor(v)
	if err != nil {
		return cfg, err
	}
	cfg.JSONSchema = schema
	return cfg, nil
}

// DecodeStructuredOutput converts a result's structured output into out.
func DecodeStructuredOutput(output any, out any) error {
	if output == nil {
		return fmt.Errorf("result has no structured output")
	}
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("marshal structured output: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode structured output: %w", err)
	}
	return nil
}
