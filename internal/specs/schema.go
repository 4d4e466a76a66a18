package specs

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/oakmoor/jobsheet-audit/constants"
)

// BuildSpecPackSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. Pack files are validated against it before registration so a
// malformed pack fails loudly at startup instead of surfacing mid-run.
func BuildSpecPackSchema() map[string]any {
	severities := []string{
		string(constants.SeverityCritical),
		string(constants.SeverityMajor),
		string(constants.SeverityMinor),
		string(constants.SeverityInfo),
	}

	fieldProps := map[string]any{
		"field":           map[string]any{"type": "string", "minLength": 1},
		"label":           map[string]any{"type": "string"},
		"type":            map[string]any{"type": "string", "enum": constants.FieldTypes},
		"required":        map[string]any{"type": "boolean"},
		"extractionHints": stringListProp(),
		"aliases":         stringListProp(),
		"defaultValue":    map[string]any{}, // string, number, bool, or null
		"pageHint":        map[string]any{"type": "integer", "minimum": 1},
	}

	ruleProps := map[string]any{
		"ruleId":   map[string]any{"type": "string", "minLength": 1},
		"field":    map[string]any{"type": "string", "minLength": 1},
		"type":     map[string]any{"type": "string", "enum": constants.RuleTypes},
		"severity": map[string]any{"type": "string", "enum": severities},
		"pattern":  map[string]any{"type": "string"},
		"range": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"min": map[string]any{"type": "number"},
				"max": map[string]any{"type": "number"},
			},
		},
		"customValidator": map[string]any{"type": "string"},
		"enabled":         map[string]any{"type": "boolean"},
		"tags":            stringListProp(),
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"id":      map[string]any{"type": "string", "minLength": 1},
			"version": map[string]any{"type": "string", "minLength": 1},
			"name":    map[string]any{"type": "string"},
			"extends": map[string]any{"type": "string"},
			"fields": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties":           fieldProps,
					"required":             []string{"field", "type"},
				},
			},
			"validationRules": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties":           ruleProps,
					"required":             []string{"ruleId", "field", "type", "severity"},
				},
			},
		},
		"required": []string{"id", "version"},
	}
}

func stringListProp() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}

// ValidatePackJSON validates raw pack bytes against the pack schema.
func ValidatePackJSON(data []byte) error {
	b, err := json.Marshal(BuildSpecPackSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("specpack.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("specpack.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal pack: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("pack does not match schema: %w", err)
	}
	return nil
}
