// Package orchestrator runs the three-stage escalation pipeline that
// turns one user message into a response: direct skill routing first,
// then model-driven decomposition into sub-actions, then an iterative
// tool-calling conversation with the model. Output streams to the
// caller through the sanitizer as it is produced.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"openmoose/internal/brain"
	"openmoose/internal/logging"
	"openmoose/internal/memory"
	"openmoose/internal/router"
	"openmoose/internal/sanitizer"
	"openmoose/internal/tools"
	"openmoose/internal/types"
)

// Defaults for Options fields left zero.
const (
	DefaultMaxToolIterations  = 10
	DefaultDecomposeMinLength = 20
	DefaultMaxSubActions      = 5
)

// Options tunes the pipeline. Zero values take the defaults above;
// CaptureTriggers left nil disables auto-capture only when no memory
// store is wired.
type Options struct {
	MaxToolIterations  int
	DecomposeMinLength int
	MaxSubActions      int
	CaptureTriggers    []string
}

// Callbacks receive streaming output and tool activity during a run.
// OnDelta is required for streamed text to reach the caller; the tool
// hooks are optional.
type Callbacks struct {
	OnDelta      func(text string)
	OnToolCall   func(name string, args map[string]any)
	OnToolResult func(name string, success bool, errText string)
}

func (cb Callbacks) emitDelta(text string) {
	if cb.OnDelta != nil && text != "" {
		cb.OnDelta(text)
	}
}

// Orchestrator coordinates the router, the model, the tool registry and
// long-term memory for the duration of one message.
type Orchestrator struct {
	router   *router.Router
	brain    brain.Brain
	registry *tools.Registry
	memory   memory.Store
	skillCtx any
	opts     Options
}

// New wires an Orchestrator. registry, memory and skillCtx may be nil;
// the corresponding stages degrade gracefully.
func New(rt *router.Router, b brain.Brain, registry *tools.Registry, mem memory.Store, skillCtx any, opts Options) *Orchestrator {
	if opts.MaxToolIterations <= 0 {
		opts.MaxToolIterations = DefaultMaxToolIterations
	}
	if opts.DecomposeMinLength <= 0 {
		opts.DecomposeMinLength = DefaultDecomposeMinLength
	}
	if opts.MaxSubActions <= 0 {
		opts.MaxSubActions = DefaultMaxSubActions
	}
	return &Orchestrator{
		router:   rt,
		brain:    b,
		registry: registry,
		memory:   mem,
		skillCtx: skillCtx,
		opts:     opts,
	}
}

// Run executes the pipeline for one message. Routing misses and
// executor failures are absorbed; only a model failure is returned as
// an error. history is read, never mutated.
func (o *Orchestrator) Run(ctx context.Context, message string, cb Callbacks, history []types.ConversationTurn) (*types.PipelineOutcome, error) {
	outcome, err := o.run(ctx, message, cb, history)
	if outcome != nil {
		o.autoCapture(ctx, message)
	}
	return outcome, err
}

func (o *Orchestrator) run(ctx context.Context, message string, cb Callbacks, history []types.ConversationTurn) (*types.PipelineOutcome, error) {
	// Stage 1: direct route.
	direct := o.router.TryExecute(ctx, message, message, "", o.skillCtx)
	if direct.Handled && direct.Success {
		logging.Orchestrator("stage 1 handled by %s (confidence %.3f)", direct.SkillName, direct.Confidence)
		text := o.summarize(ctx, message, direct.Result, cb)
		return &types.PipelineOutcome{
			Text:       text,
			Provenance: types.ProvenanceRouter,
			SkillName:  direct.SkillName,
		}, nil
	}

	// Stage 2: decomposition.
	if shouldDecompose(message, o.opts.DecomposeMinLength) {
		outcome, err := o.runDecomposed(ctx, message, cb)
		if err != nil {
			return nil, err
		}
		if outcome != nil {
			return outcome, nil
		}
	}

	// Stage 3: tool-calling loop.
	return o.runToolLoop(ctx, message, cb, history)
}

// subResult is one routed sub-action's outcome, kept for the stage-2
// summary.
type subResult struct {
	action string
	skill  string
	result string
	ok     bool
}

// runDecomposed splits the message and routes each sub-action in order,
// feeding earlier results to later sub-actions as context. A sub-action
// that misses or fails stops the loop; results collected so far still
// produce a partial summary. Returns (nil, nil) when no sub-action was
// handled, which sends the pipeline to stage 3.
func (o *Orchestrator) runDecomposed(ctx context.Context, message string, cb Callbacks) (*types.PipelineOutcome, error) {
	actions, err := o.decompose(ctx, message, o.opts.MaxSubActions)
	if err != nil {
		return nil, fmt.Errorf("decomposition failed: %w", err)
	}
	if len(actions) < 2 {
		logging.OrchestratorDebug("decomposition yielded %d sub-actions, skipping stage 2", len(actions))
		return nil, nil
	}
	logging.Orchestrator("decomposed into %d sub-actions", len(actions))

	var (
		results       []subResult
		contextString string
		handled       int
		stoppedAt     = -1
	)
	for i, action := range actions {
		res := o.router.TryExecute(ctx, action, action, contextString, o.skillCtx)
		if !res.Handled {
			logging.Orchestrator("sub-action %d not routable: %q", i+1, action)
			stoppedAt = i
			break
		}
		handled++
		results = append(results, subResult{
			action: action,
			skill:  res.SkillName,
			result: res.Result,
			ok:     res.Success,
		})
		if !res.Success {
			logging.Orchestrator("sub-action %d failed in %s: %s", i+1, res.SkillName, types.TruncateError(res.Result, 120))
			stoppedAt = i
			break
		}
		contextString += fmt.Sprintf("Result of %q: %s\n", action, res.Result)
	}

	if handled == 0 {
		return nil, nil
	}

	text := o.summarize(ctx, message, formatSubResults(actions, results, stoppedAt), cb)
	return &types.PipelineOutcome{
		Text:       text,
		Provenance: types.ProvenanceDecomposed,
		SkillName:  joinSkillNames(results),
	}, nil
}

// formatSubResults renders collected results, naming the sub-actions
// that were not completed so the summary can surface partial success.
func formatSubResults(actions []string, results []subResult, stoppedAt int) string {
	var b strings.Builder
	for _, r := range results {
		if r.ok {
			fmt.Fprintf(&b, "- %q: %s\n", r.action, r.result)
		} else {
			fmt.Fprintf(&b, "- %q failed: %s\n", r.action, types.TruncateError(r.result, 120))
		}
	}
	if stoppedAt >= 0 {
		b.WriteString("Not completed:")
		for i := stoppedAt; i < len(actions); i++ {
			if len(results) > i && results[i].ok {
				continue
			}
			fmt.Fprintf(&b, " %q", actions[i])
		}
		b.WriteString("\n")
	}
	return b.String()
}

func joinSkillNames(results []subResult) string {
	var names []string
	seen := make(map[string]bool)
	for _, r := range results {
		if r.skill != "" && !seen[r.skill] {
			seen[r.skill] = true
			names = append(names, r.skill)
		}
	}
	return strings.Join(names, ",")
}

const summarizeSystemPrompt = `You turn raw skill and tool output into a short,
natural reply to the user's request. Do not mention tools, skills or internal
steps. If some parts were not completed, say so briefly.`

// summarize streams a lightweight model call that phrases resultText as
// a reply to the user, through the sanitizer to OnDelta. A model
// failure here is recoverable: the raw result is already in hand, so it
// is cleaned and returned instead.
func (o *Orchestrator) summarize(ctx context.Context, message, resultText string, cb Callbacks) string {
	req := brain.Request{
		System: summarizeSystemPrompt,
		Messages: []brain.Message{
			{Role: "user", Content: fmt.Sprintf("Request: %s\n\nOutcome:\n%s", message, resultText)},
		},
	}

	san := sanitizer.New()
	var out strings.Builder

	chunks, errs := o.brain.ChatStream(ctx, req)
	for chunk := range chunks {
		if chunk.Content == "" {
			continue
		}
		clean := san.Process(chunk.Content)
		if clean != "" {
			cb.emitDelta(clean)
			out.WriteString(clean)
		}
	}
	if err := <-errs; err != nil {
		logging.Get(logging.CategoryOrchestrator).Warn("summarization failed, returning raw result: %v", err)
		fallback := sanitizer.CleanText(resultText)
		cb.emitDelta(fallback)
		return fallback
	}

	if tail := san.Flush(); tail != "" {
		cb.emitDelta(tail)
		out.WriteString(tail)
	}
	return strings.TrimSpace(out.String())
}

const toolLoopSystemPrompt = `You are moose, a helpful assistant. Use the
available tools when they help answer the request; otherwise answer directly.`

// runToolLoop is stage 3: a bounded conversation where the model may
// request tool calls each turn. Tool results feed back as the next user
// turn. The loop ends when a turn requests no tools or the iteration
// cap is hit; text accumulated so far is returned either way.
func (o *Orchestrator) runToolLoop(ctx context.Context, message string, cb Callbacks, history []types.ConversationTurn) (*types.PipelineOutcome, error) {
	msgs := make([]brain.Message, 0, len(history)+1)
	for _, turn := range history {
		msgs = append(msgs, brain.Message{Role: turn.Role, Content: turn.Content})
	}
	msgs = append(msgs, brain.Message{Role: types.RoleUser, Content: message})

	var defs []types.ToolDefinition
	if o.registry != nil {
		defs = o.registry.Definitions()
	}

	var final strings.Builder
	for iteration := 1; iteration <= o.opts.MaxToolIterations; iteration++ {
		turnText, toolCalls, err := o.streamTurn(ctx, brain.Request{
			System:   toolLoopSystemPrompt,
			Messages: msgs,
			Tools:    defs,
		}, cb)
		if err != nil {
			return nil, err
		}

		if turnText != "" {
			if final.Len() > 0 {
				final.WriteString("\n")
			}
			final.WriteString(turnText)
		}

		if len(toolCalls) == 0 {
			logging.OrchestratorDebug("tool loop done after %d iteration(s)", iteration)
			break
		}
		if iteration == o.opts.MaxToolIterations {
			logging.Orchestrator("tool loop hit the %d-iteration cap", o.opts.MaxToolIterations)
			break
		}

		msgs = append(msgs, brain.Message{
			Role:      types.RoleAssistant,
			Content:   turnText,
			ToolCalls: toolCalls,
		})
		msgs = append(msgs, brain.Message{
			Role:    types.RoleUser,
			Content: "tool results: " + o.executeToolCalls(ctx, toolCalls, cb),
		})
	}

	return &types.PipelineOutcome{
		Text:       strings.TrimSpace(final.String()),
		Provenance: types.ProvenanceModel,
	}, nil
}

// streamTurn consumes one streamed model turn, sanitizing content
// fragments to OnDelta as they arrive.
func (o *Orchestrator) streamTurn(ctx context.Context, req brain.Request, cb Callbacks) (string, []types.ToolCall, error) {
	san := sanitizer.New()
	var (
		text      strings.Builder
		toolCalls []types.ToolCall
	)

	chunks, errs := o.brain.ChatStream(ctx, req)
	for chunk := range chunks {
		if chunk.Content != "" {
			clean := san.Process(chunk.Content)
			if clean != "" {
				cb.emitDelta(clean)
				text.WriteString(clean)
			}
		}
		if chunk.Done && len(chunk.ToolCalls) > 0 {
			toolCalls = chunk.ToolCalls
		}
	}
	if err := <-errs; err != nil {
		return "", nil, fmt.Errorf("model stream failed: %w", err)
	}

	if tail := san.Flush(); tail != "" {
		cb.emitDelta(tail)
		text.WriteString(tail)
	}
	return strings.TrimSpace(text.String()), toolCalls, nil
}

// toolOutcome is one tool call's result as fed back to the model.
type toolOutcome struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// executeToolCalls runs each requested call through the registry.
// Unparseable arguments synthesize a failure without executing; an
// executor failure becomes a truncated error entry. One bad call never
// aborts the others in the same turn.
func (o *Orchestrator) executeToolCalls(ctx context.Context, calls []types.ToolCall, cb Callbacks) string {
	outcomes := make([]toolOutcome, 0, len(calls))
	for _, call := range calls {
		args, parseErr := ParseToolArguments(call.ArgumentsJSON)
		if parseErr != nil {
			errText := types.TruncateError(parseErr.Error(), 120)
			outcomes = append(outcomes, toolOutcome{Tool: call.Name, Success: false, Error: errText})
			if cb.OnToolResult != nil {
				cb.OnToolResult(call.Name, false, errText)
			}
			continue
		}

		if o.registry == nil {
			outcomes = append(outcomes, toolOutcome{Tool: call.Name, Success: false, Error: "no tools available"})
			if cb.OnToolResult != nil {
				cb.OnToolResult(call.Name, false, "no tools available")
			}
			continue
		}

		// The hook fires once per call that actually executes; calls
		// skipped above never reach it.
		if cb.OnToolCall != nil {
			cb.OnToolCall(call.Name, args)
		}

		res, err := o.registry.Execute(ctx, call.Name, args)
		if err != nil {
			logging.Get(logging.CategoryOrchestrator).Warn("tool %s failed: %v", call.Name, err)
			errText := types.TruncateError(err.Error(), 120)
			outcomes = append(outcomes, toolOutcome{Tool: call.Name, Success: false, Error: errText})
			if cb.OnToolResult != nil {
				cb.OnToolResult(call.Name, false, errText)
			}
			continue
		}

		outcomes = append(outcomes, toolOutcome{Tool: call.Name, Success: true, Output: res.Output})
		if cb.OnToolResult != nil {
			cb.OnToolResult(call.Name, true, "")
		}
	}

	encoded, err := json.Marshal(outcomes)
	if err != nil {
		return fmt.Sprintf("%d tool call(s) completed", len(calls))
	}
	return string(encoded)
}

// autoCapture stores the original message to long-term memory when it
// contains a configured trigger phrase. Runs after any stage produced a
// response; storage failures are logged, never surfaced.
func (o *Orchestrator) autoCapture(ctx context.Context, message string) {
	if o.memory == nil || len(o.opts.CaptureTriggers) == 0 {
		return
	}
	lower := strings.ToLower(message)
	for _, trigger := range o.opts.CaptureTriggers {
		if trigger == "" || !strings.Contains(lower, strings.ToLower(trigger)) {
			continue
		}
		if err := o.memory.Store(ctx, message); err != nil {
			logging.Get(logging.CategoryMemory).Warn("auto-capture failed: %v", err)
			return
		}
		logging.Memory("auto-captured message (trigger %q)", trigger)
		return
	}
}
