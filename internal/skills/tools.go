package skills

import (
	"context"
	"fmt"
	"strings"
	"time"

	"openmoose/internal/tools"
)

// BuildToolRegistry exposes the capability bundle as model-callable
// tools for the orchestrator's tool-calling loop.
func BuildToolRegistry(sc *Context) *tools.Registry {
	reg := tools.NewRegistry()

	reg.MustRegister(&tools.Tool{
		Name:        "get_weather",
		Description: "Get the current weather for a city.",
		Schema: tools.Schema{
			Required: []string{"city"},
			Properties: map[string]tools.Property{
				"city": {Type: "string", Description: "City name, e.g. Stockholm"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			city, _ := args["city"].(string)
			return fetchWeather(ctx, sc.httpClient(), city)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "get_time",
		Description: "Get the current date and time.",
		Schema:      tools.Schema{Properties: map[string]tools.Property{}},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return time.Now().Format("15:04 on Monday, January 2, 2006"), nil
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "store_memory",
		Description: "Store a fact about the user in long-term memory.",
		Schema: tools.Schema{
			Required: []string{"fact"},
			Properties: map[string]tools.Property{
				"fact": {Type: "string", Description: "The fact to remember"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			if sc.Memory == nil {
				return "", fmt.Errorf("memory store is not available")
			}
			fact, _ := args["fact"].(string)
			if fact == "" {
				return "", fmt.Errorf("fact must not be empty")
			}
			if err := sc.Memory.Store(ctx, fact); err != nil {
				return "", err
			}
			return "stored", nil
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "recall_memory",
		Description: "Recall facts about the user from long-term memory.",
		Schema: tools.Schema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {Type: "string", Description: "What to look for"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			if sc.Memory == nil {
				return "", fmt.Errorf("memory store is not available")
			}
			query, _ := args["query"].(string)
			facts, err := sc.Memory.Recall(ctx, query, 5)
			if err != nil {
				return "", err
			}
			if len(facts) == 0 {
				return "no stored facts matched", nil
			}
			return strings.Join(facts, "\n"), nil
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "run_command",
		Description: "Run a shell command in the sandbox and return its output.",
		Schema: tools.Schema{
			Required: []string{"command"},
			Properties: map[string]tools.Property{
				"command": {Type: "string", Description: "Shell command to execute"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			if sc.Sandbox == nil {
				return "", fmt.Errorf("sandbox is not available")
			}
			command, _ := args["command"].(string)
			return sc.Sandbox.Run(ctx, command)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "read_webpage",
		Description: "Open a web page in the browser and return its visible text.",
		Schema: tools.Schema{
			Required: []string{"url"},
			Properties: map[string]tools.Property{
				"url": {Type: "string", Description: "Absolute http(s) URL"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			if sc.Browser == nil {
				return "", fmt.Errorf("browser is not available")
			}
			pageURL, _ := args["url"].(string)
			return sc.Browser.PageText(ctx, pageURL)
		},
	})

	return reg
}
