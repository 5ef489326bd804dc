package registry

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Property declares the expected primitive type of one input field.
type Property struct {
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Schema is the declared input contract of a registry entry.
type Schema struct {
	Required   []string            `yaml:"required,omitempty" json:"required,omitempty"`
	Properties map[string]Property `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// Validate checks input against the schema and returns every violation —
// missing required fields and primitive type mismatches — never just the
// first one. An empty slice means the input is acceptable.
func (s *Schema) Validate(input map[string]any) []string {
	var violations []string

	for _, name := range s.Required {
		if _, ok := input[name]; !ok {
			violations = append(violations, fmt.Sprintf("missing required field %q", name))
		}
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop := s.Properties[name]
		value, ok := input[name]
		if !ok || prop.Type == "" {
			continue
		}
		if !typeMatches(prop.Type, value) {
			violations = append(violations,
				fmt.Sprintf("field %q must be of type %s, got %s", name, prop.Type, typeName(value)))
		}
	}

	return violations
}

func typeMatches(declared string, v any) bool {
	switch declared {
	case "number", "integer":
		switch n := v.(type) {
		case float64, float32, int, int64:
			return true
		case json.Number:
			_ = n
			return true
		default:
			return false
		}
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	default:
		// Unknown declared types are not enforced.
		return true
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64, float32, int, int64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
