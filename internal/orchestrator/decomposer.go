package orchestrator

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"openmoose/internal/brain"
	"openmoose/internal/logging"
)

// conjunctionRe gates the decomposition stage: a message only plausibly
// carries multiple intents when it joins clauses with one of these words.
var conjunctionRe = regexp.MustCompile(`(?i)\b(?:and|then|also|plus|additionally)\b`)

// shouldDecompose is the cheap pre-filter that saves a model call for
// short or single-intent messages.
func shouldDecompose(message string, minLength int) bool {
	if len(message) < minLength {
		return false
	}
	return conjunctionRe.MatchString(message)
}

const decomposeSystemPrompt = `You split a user request into atomic sub-actions.
Respond with a JSON array of strings, one per sub-action, in the order they
should be performed. Each sub-action must be a complete, self-contained
instruction. Respond with ONLY the JSON array, no prose.`

// decompose asks the model to split message into ordered sub-actions.
// The count is capped at maxSubActions. Only a model failure returns an
// error; an unparseable reply degrades to a line-split of the reply text.
func (o *Orchestrator) decompose(ctx context.Context, message string, maxSubActions int) ([]string, error) {
	resp, err := o.brain.Chat(ctx, brain.Request{
		System: decomposeSystemPrompt,
		Messages: []brain.Message{
			{Role: "user", Content: message},
		},
	})
	if err != nil {
		return nil, err
	}

	actions := parseSubActions(resp.Content)
	if len(actions) > maxSubActions {
		logging.Orchestrator("decomposition produced %d sub-actions, capping at %d", len(actions), maxSubActions)
		actions = actions[:maxSubActions]
	}
	return actions, nil
}

// parseSubActions extracts a string list from the model reply. It tries
// the embedded JSON array first and falls back to line splitting.
func parseSubActions(reply string) []string {
	reply = strings.TrimSpace(reply)

	if arr := extractJSONArray(reply); arr != "" {
		var actions []string
		if err := json.Unmarshal([]byte(arr), &actions); err == nil {
			return trimActions(actions)
		}
	}

	var actions []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789.) ")
		line = strings.Trim(line, `"`)
		if line != "" && line != "[" && line != "]" {
			actions = append(actions, line)
		}
	}
	return trimActions(actions)
}

// extractJSONArray returns the first balanced [...] span, or "".
func extractJSONArray(text string) string {
	start := strings.Index(text, "[")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func trimActions(actions []string) []string {
	out := actions[:0]
	for _, a := range actions {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}
