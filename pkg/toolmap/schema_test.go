package toolmap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildParameterSchema_InvalidDefinitions(t *testing.T) {
	tests := []struct {
		name   string
		params []Parameter
	}{
		{
			name:   "empty name",
			params: []Parameter{{Type: "string"}},
		},
		{
			name:   "unknown type",
			params: []Parameter{{Name: "x", Type: "decimal"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildParameterSchema(tt.params)
			assert.Error(t, err)
		})
	}
}

func TestAddTool_InvalidParametersRejected(t *testing.T) {
	r := newTestRegistry(t, 5)

	ok := r.AddTool("calc", &stubTool{}, ToolOptions{
		Parameters: []Parameter{{Name: "x", Type: "decimal"}},
	})

	assert.False(t, ok)
	assert.Zero(t, r.Count())
}

func TestExecuteTool_ParameterValidation(t *testing.T) {
	r := newTestRegistry(t, 5)

	require.True(t, r.AddTool("calc", &stubTool{}, ToolOptions{
		Parameters: []Parameter{
			{Name: "expression", Type: "string", Description: "What to evaluate", Required: true},
			{Name: "precision", Type: "integer", Description: "Digits"},
		},
	}))

	t.Run("valid params", func(t *testing.T) {
		result := r.ExecuteTool(context.Background(), "calc", Context{
			"params": map[string]interface{}{"expression": "2+2", "precision": 3},
		})
		assert.True(t, result.Success())
	})

	t.Run("missing required param", func(t *testing.T) {
		result := r.ExecuteTool(context.Background(), "calc", Context{
			"params": map[string]interface{}{"precision": 3},
		})
		assert.False(t, result.Success())
		assert.Contains(t, result.ErrorMessage(), "parameter validation failed")
	})

	t.Run("wrong type", func(t *testing.T) {
		result := r.ExecuteTool(context.Background(), "calc", Context{
			"params": map[string]interface{}{"expression": 12},
		})
		assert.False(t, result.Success())
	})

	t.Run("unexpected param", func(t *testing.T) {
		result := r.ExecuteTool(context.Background(), "calc", Context{
			"params": map[string]interface{}{"expression": "2+2", "mode": "fast"},
		})
		assert.False(t, result.Success())
	})

	// Validation rejections never touch entry state.
	entry := r.GetTool("calc")
	assert.Equal(t, 1, entry.ExecutionCount())
	assert.Zero(t, entry.ErrorCount())
	assert.Equal(t, StatusReady, entry.Status())
}

func TestExecuteTool_NoDeclaredParametersSkipsValidation(t *testing.T) {
	r := newTestRegistry(t, 5)
	require.True(t, r.AddTool("free", &stubTool{}, ToolOptions{}))

	result := r.ExecuteTool(context.Background(), "free", Context{
		"params": map[string]interface{}{"anything": "goes"},
	})
	assert.True(t, result.Success())
}
