// Package tools provides the tool registry advertised to the language
// model during the tool-calling loop. Skills expose their executors
// here as tools; the orchestrator executes model-requested calls
// through the registry.
package tools

import (
	"context"

	"openmoose/internal/types"
)

// Property describes one parameter in a tool's JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// Schema defines a tool's argument schema for model tool calling.
type Schema struct {
	Required   []string            `json:"required"`
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc runs a tool with parsed arguments.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool is a callable capability advertised to the model.
type Tool struct {
	Name        string
	Description string
	Schema      Schema
	Execute     ExecuteFunc
}

// Validate checks the tool definition.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Definition converts the tool to the wire shape sent to the model.
func (t *Tool) Definition() types.ToolDefinition {
	schema := map[string]any{
		"type":       "object",
		"properties": t.Schema.Properties,
	}
	if len(t.Schema.Required) > 0 {
		schema["required"] = t.Schema.Required
	}
	return types.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}

// Result wraps the outcome of one tool execution.
type Result struct {
	ToolName   string
	Output     string
	Err        error
	DurationMs int64
}

// Success reports whether the tool executed without error.
func (r *Result) Success() bool {
	return r.Err == nil
}
