package registry

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// registrationSchema guards dynamic registrations arriving from outside
// the process (gateway, CLI). Catalog files are validated structurally
// by ToolConfig.Validate; this schema additionally rejects unexpected
// fields and wrong shapes before they reach the cache.
const registrationSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["name", "command"],
	"properties": {
		"name":         {"type": "string", "minLength": 1, "pattern": "^[^\\s]+$"},
		"display_name": {"type": "string"},
		"command":      {"type": "string", "minLength": 1},
		"args":         {"type": "array", "items": {"type": "string"}},
		"capabilities": {"type": "array", "items": {"type": "string"}},
		"enabled":      {"type": "boolean"},
		"config": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"prompt_patterns": {"type": "array", "items": {"type": "string"}},
				"init_timeout":    {"type": "integer", "minimum": 0},
				"command_timeout": {"type": "integer", "minimum": 0}
			}
		}
	}
}`

var (
	schemaOnce sync.Once
	schemaInst *gojsonschema.Schema
	schemaErr  error
)

func registrationSchemaInstance() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemaInst, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(registrationSchema))
	})
	return schemaInst, schemaErr
}

// ValidateRegistration checks a raw registration payload against the
// tool schema.
func ValidateRegistration(payload map[string]interface{}) error {
	schema, err := registrationSchemaInstance()
	if err != nil {
		return fmt.Errorf("registration schema is invalid: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return fmt.Errorf("failed to validate registration: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid tool registration: %v", msgs)
	}
	return nil
}
