package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "echoes its input",
		Schema: Schema{
			Required: []string{"text"},
			Properties: map[string]Property{
				"text": {Type: "string", Description: "text to echo"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			text, _ := args["text"].(string)
			return text, nil
		},
	}
}

func TestRegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))

	result, err := r.Execute(context.Background(), "echo", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Output)
	assert.True(t, result.Success())
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register(&Tool{Name: "", Execute: nil}), ErrToolNameEmpty)
	assert.ErrorIs(t, r.Register(&Tool{Name: "x"}), ErrToolExecuteNil)
}

func TestReRegisterOverwrites(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))

	replacement := echoTool("echo")
	replacement.Execute = func(ctx context.Context, args map[string]any) (string, error) {
		return "replaced", nil
	}
	require.NoError(t, r.Register(replacement))
	assert.Equal(t, 1, r.Count())

	result, err := r.Execute(context.Background(), "echo", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "replaced", result.Output)
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestExecuteMissingRequiredArg(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))

	result, err := r.Execute(context.Background(), "echo", map[string]any{})
	assert.ErrorIs(t, err, ErrMissingRequiredArg)
	require.NotNil(t, result)
	assert.False(t, result.Success())
}

func TestExecuteToolError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	require.NoError(t, r.Register(&Tool{
		Name: "failing",
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return "", boom
		},
	}))

	result, err := r.Execute(context.Background(), "failing", nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, result.Success())
}

func TestExecutePanicIsCaught(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Tool{
		Name: "panicky",
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			panic("executor blew up")
		},
	}))

	result, err := r.Execute(context.Background(), "panicky", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executor blew up")
	assert.False(t, result.Success())
}

func TestDefinitionsInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("b_second")))
	require.NoError(t, r.Register(echoTool("a_first")))

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "b_second", defs[0].Name)
	assert.Equal(t, "a_first", defs[1].Name)
	assert.Equal(t, "object", defs[0].InputSchema["type"])
	assert.Equal(t, []string{"text"}, defs[0].InputSchema["required"])
}

func TestNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("zeta")))
	require.NoError(t, r.Register(echoTool("alpha")))
	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
	assert.True(t, r.Has("zeta"))
	assert.False(t, r.Has("missing"))
}
