package orchestrator

import (
	"encoding/json"
	"fmt"

	"openmoose/internal/logging"
	"openmoose/internal/types"
)

// ParseToolArguments turns raw model-generated argument text into a map.
// Models occasionally emit several concatenated JSON objects in one
// arguments field; when a direct parse fails, a string-literal-aware
// depth scanner splits the candidates and the first one wins. On total
// failure the raw text is preserved under the _raw sentinel and the
// returned error tells the caller to skip execution.
func ParseToolArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args, nil
	}

	candidates := findJSONCandidates(raw)
	if len(candidates) > 1 {
		logging.Orchestrator("recovered %d concatenated argument objects, using the first", len(candidates))
	}
	for _, candidate := range candidates {
		if err := json.Unmarshal([]byte(candidate), &args); err == nil {
			return args, nil
		}
	}

	logging.Get(logging.CategoryOrchestrator).Warn("unparseable tool arguments: %q", types.TruncateError(raw, 200))
	return map[string]any{types.RawArgsKey: raw}, fmt.Errorf("tool arguments are not valid JSON")
}

// findJSONCandidates scans text for balanced top-level {...} spans.
// Braces inside quoted strings do not count toward depth, and backslash
// escapes inside strings are honored.
func findJSONCandidates(text string) []string {
	var (
		candidates []string
		depth      int
		start      = -1
		inString   bool
		escaped    bool
	)

	for i := 0; i < len(text); i++ {
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
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue // stray closer outside any object
			}
			depth--
			if depth == 0 && start >= 0 {
				candidates = append(candidates, text[start:i+1])
				start = -1
			}
		}
	}

	return candidates
}
