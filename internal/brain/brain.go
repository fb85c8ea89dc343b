// Package brain talks to the language model gateway. The default
// backend is any OpenAI-compatible /chat/completions endpoint; the
// local moose gateway listens on port 18789.
package brain

import (
	"context"

	"openmoose/internal/types"
)

// Message is a single message in a model conversation. Unlike
// types.ConversationTurn it carries tool plumbing: an assistant message
// may request tool calls, and a tool message answers one by ID.
type Message struct {
	Role       string           `json:"role"` // "system", "user", "assistant", "tool"
	Content    string           `json:"content"`
	ToolCalls  []types.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

// Request is a chat completion request.
type Request struct {
	System   string
	Messages []Message
	Tools    []types.ToolDefinition
}

// Response is a complete (non-streamed) model reply.
type Response struct {
	Content   string
	ToolCalls []types.ToolCall
}

// StreamChunk is one unit of a streamed reply. Content deltas arrive
// as they are generated; tool calls are accumulated across deltas and
// delivered whole on the final chunk, which has Done set.
type StreamChunk struct {
	Content   string
	ToolCalls []types.ToolCall
	Done      bool
}

// Brain is the language model used by the orchestrator.
type Brain interface {
	// Chat performs a blocking completion.
	Chat(ctx context.Context, req Request) (*Response, error)

	// ChatStream performs a streaming completion. The content channel
	// is closed when the stream ends; at most one error is sent on the
	// error channel. Both channels are owned by the callee.
	ChatStream(ctx context.Context, req Request) (<-chan StreamChunk, <-chan error)
}
