package skills

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildToolRegistry(t *testing.T) {
	reg := BuildToolRegistry(&Context{})
	assert.ElementsMatch(t,
		[]string{"get_weather", "get_time", "store_memory", "recall_memory", "run_command", "read_webpage"},
		reg.Names())

	// Tools degrade to errors when their capability is missing.
	_, err := reg.Execute(context.Background(), "store_memory", map[string]any{"fact": "x"})
	assert.Error(t, err)

	result, err := reg.Execute(context.Background(), "get_time", map[string]any{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Output)
}

func TestToolRegistryDefinitionsAdvertised(t *testing.T) {
	reg := BuildToolRegistry(&Context{})
	defs := reg.Definitions()
	require.Len(t, defs, 6)
	assert.Equal(t, "get_weather", defs[0].Name)
	assert.NotEmpty(t, defs[0].Description)
}
