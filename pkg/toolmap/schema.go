package toolmap

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Parameter declares one schema-validated execution parameter for a tool.
// Tools that declare parameters have the "params" sub-map of each execution
// context validated before dispatch.
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

var validParameterTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"boolean": true,
	"object":  true,
	"array":   true,
	"integer": true,
}

// buildParameterSchema compiles a JSON Schema from declared parameters.
func buildParameterSchema(params []Parameter) (*gojsonschema.Schema, error) {
	properties := make(map[string]interface{}, len(params))
	required := []string{}

	for _, param := range params {
		if param.Name == "" {
			return nil, fmt.Errorf("parameter name cannot be empty")
		}
		if !validParameterTypes[param.Type] {
			return nil, fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}

		paramSchema := map[string]interface{}{
			"type": param.Type,
		}
		if param.Description != "" {
			paramSchema["description"] = param.Description
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

// validateParams checks the execution context's "params" sub-map against a
// compiled schema. A missing sub-map validates as an empty object.
func validateParams(schema *gojsonschema.Schema, execCtx Context) error {
	params, _ := execCtx["params"].(map[string]interface{})
	if params == nil {
		params = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}
		return fmt.Errorf("validation errors: %v", msgs)
	}
	return nil
}
