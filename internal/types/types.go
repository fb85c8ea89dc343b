// Package types holds the shared data model of the message pipeline:
// conversation turns, tool calls, and pipeline outcomes. It has no
// dependencies so every layer can import it without cycles.
package types

import (
	"strings"
	"unicode/utf8"
)

// Role constants for conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is a single turn in conversation history. The
// orchestrator appends to its working copy for the duration of one run;
// persistence across runs belongs to the caller.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolDefinition describes a tool advertised to the language model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"` // JSON Schema for parameters
}

// ToolCall is a tool invocation requested by the model. Arguments arrive
// as raw model-generated JSON text and are not guaranteed well-formed;
// parsing and recovery happen at the orchestrator boundary.
type ToolCall struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ArgumentsJSON string `json:"arguments"`
}

// RawArgsKey is the sentinel key under which unparseable tool arguments
// are preserved instead of being discarded.
const RawArgsKey = "_raw"

// Provenance tags which pipeline stage produced the final response.
type Provenance string

const (
	ProvenanceRouter     Provenance = "router-handled"
	ProvenanceDecomposed Provenance = "decomposed"
	ProvenanceModel      Provenance = "model-generated"
)

// PipelineOutcome is the final result of one orchestrator run.
type PipelineOutcome struct {
	Text       string
	Provenance Provenance
	// SkillName names the route that handled the message, when the
	// provenance is router-handled or decomposed.
	SkillName string
}

// TruncateError caps user-facing failure text so verbose internals never
// reach the end user. Full text still goes to the logs.
func TruncateError(msg string, limit int) string {
	if limit <= 0 {
		limit = 120
	}
	msg = strings.TrimSpace(msg)
	if len(msg) <= limit {
		return msg
	}
	// Back up to a rune boundary so the cut never emits invalid UTF-8.
	cut := limit
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "..."
}
