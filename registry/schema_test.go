package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidate(t *testing.T) {
	schema := &Schema{
		Required: []string{"rate", "label"},
		Properties: map[string]Property{
			"rate":    {Type: "number"},
			"label":   {Type: "string"},
			"flags":   {Type: "array"},
			"options": {Type: "object"},
			"dry_run": {Type: "boolean"},
		},
	}

	t.Run("ValidInput", func(t *testing.T) {
		violations := schema.Validate(map[string]any{
			"rate":    1.5,
			"label":   "run-a",
			"flags":   []any{"x"},
			"options": map[string]any{"k": 1},
			"dry_run": true,
		})
		assert.Empty(t, violations)
	})

	t.Run("OptionalFieldsMayBeAbsent", func(t *testing.T) {
		violations := schema.Validate(map[string]any{"rate": 2.0, "label": "b"})
		assert.Empty(t, violations)
	})

	t.Run("AllViolationsReported", func(t *testing.T) {
		violations := schema.Validate(map[string]any{
			"rate":    "fast",
			"flags":   42,
			"dry_run": "yes",
		})

		// One missing required field plus three type mismatches, all in one
		// pass rather than stopping at the first.
		require.Len(t, violations, 4)
		assert.Contains(t, violations, `missing required field "label"`)
		assert.Contains(t, violations, `field "rate" must be of type number, got string`)
		assert.Contains(t, violations, `field "flags" must be of type array, got number`)
		assert.Contains(t, violations, `field "dry_run" must be of type boolean, got string`)
	})

	t.Run("IntegerAcceptsAnyNumber", func(t *testing.T) {
		s := &Schema{Properties: map[string]Property{"n": {Type: "integer"}}}
		assert.Empty(t, s.Validate(map[string]any{"n": 3.0}))
		assert.Empty(t, s.Validate(map[string]any{"n": 3}))
		assert.NotEmpty(t, s.Validate(map[string]any{"n": "3"}))
	})

	t.Run("UnknownDeclaredTypeUnenforced", func(t *testing.T) {
		s := &Schema{Properties: map[string]Property{"x": {Type: "duration"}}}
		assert.Empty(t, s.Validate(map[string]any{"x": "anything"}))
	})

	t.Run("EmptySchemaAcceptsAnything", func(t *testing.T) {
		s := &Schema{}
		assert.Empty(t, s.Validate(nil))
		assert.Empty(t, s.Validate(map[string]any{"whatever": 1}))
	})

	t.Run("NilInputFailsRequired", func(t *testing.T) {
		violations := schema.Validate(nil)
		assert.Len(t, violations, 2)
	})
}
