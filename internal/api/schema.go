package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// The poller and pagination loops act on these documents mechanically, so
// their shape is checked before the values are trusted. A violation is a
// malformed body and is reported like any other transport failure.

func jobStatusSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"status", "progress", "message"},
		"properties": map[string]any{
			"status":   map[string]any{"type": "string", "enum": []string{"queued", "running", "done", "error"}},
			"progress": map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
			"message":  map[string]any{"type": "string"},
		},
	}
}

func issuesPageSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"total", "page", "page_size", "total_pages", "issues"},
		"properties": map[string]any{
			"total":       map[string]any{"type": "integer", "minimum": 0},
			"page":        map[string]any{"type": "integer", "minimum": 1},
			"page_size":   map[string]any{"type": "integer", "minimum": 1},
			"total_pages": map[string]any{"type": "integer", "minimum": 0},
			"issues": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"entity_type", "pset", "property"},
				},
			},
		},
	}
}

func validateJobStatus(raw []byte) error {
	return validateAgainstSchema(jobStatusSchema(), raw)
}

func validateIssuesPage(raw []byte) error {
	return validateAgainstSchema(issuesPageSchema(), raw)
}

// validateAgainstSchema validates raw against schemaMap (draft 2020-12 subset).
func validateAgainstSchema(schemaMap map[string]any, raw []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("malformed body: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("malformed body: %w", err)
	}
	return nil
}

// unmarshalStrictEnough decodes raw after schema validation has passed.
func unmarshalStrictEnough(raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
