package skills

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"openmoose/internal/logging"
	"openmoose/internal/router"
)

// wttrBaseURL is the weather endpoint; tests point it at a local server.
var wttrBaseURL = "https://wttr.in"

// cityRe captures a capitalized place name after "in", "for" or "at".
var cityRe = regexp.MustCompile(`\b(?:[Ii]n|[Ff]or|[Aa]t)\s+([\p{Lu}][\p{L}'-]*(?:\s+[\p{Lu}][\p{L}'-]*)*)`)

// urlRe captures the first http(s) URL in a message.
var urlRe = regexp.MustCompile(`https?://[^\s]+`)

// rememberPrefixRe strips the trigger phrasing from a remember request.
var rememberPrefixRe = regexp.MustCompile(`(?i)^(?:please\s+)?remember\s+(?:that\s+)?`)

// commandPrefixRe strips the trigger phrasing from a run request.
var commandPrefixRe = regexp.MustCompile(`(?i)^(?:please\s+)?(?:run|execute)\s+(?:the\s+command\s+)?`)

// sayPrefixRe strips the trigger phrasing from a speech request.
var sayPrefixRe = regexp.MustCompile(`(?i)^(?:please\s+)?(?:say|speak|read\s+(?:this\s+)?(?:aloud|out\s+loud))[:,]?\s*`)

// Builtin returns the built-in skill routes in their canonical
// registration order.
func Builtin() []*router.SkillRoute {
	return []*router.SkillRoute{
		weatherSkill(),
		timeSkill(),
		rememberSkill(),
		recallSkill(),
		runSkill(),
		browseSkill(),
		saySkill(),
	}
}

// ExtractCity pulls a place name from the user's literal phrasing.
func ExtractCity(message string) string {
	m := cityRe.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	city := m[1]
	// "in Stockholm and in Malmö" captures through the conjunction
	// when the second city is also capitalized; cut at the first one.
	for _, stop := range []string{" And ", " Then ", " Also ", " Plus "} {
		if i := strings.Index(city, stop); i >= 0 {
			city = city[:i]
		}
	}
	return strings.TrimSpace(city)
}

func weatherSkill() *router.SkillRoute {
	return &router.SkillRoute{
		Name:        "weather",
		Description: "Current weather conditions for a city",
		Examples: []string{
			"what's the weather in Paris",
			"what is the weather like today",
			"how cold is it outside",
			"will it rain tomorrow",
			"weather forecast for Berlin",
		},
		ExtractArgs: func(message string) map[string]string {
			return map[string]string{"city": ExtractCity(message)}
		},
		Execute: func(ctx context.Context, args map[string]string, contextString string, execCtx any) (string, error) {
			sc := asSkillContext(execCtx)
			return fetchWeather(ctx, sc.httpClient(), args["city"])
		},
	}
}

// fetchWeather asks wttr.in for a one-line report.
func fetchWeather(ctx context.Context, client *http.Client, city string) (string, error) {
	endpoint := wttrBaseURL + "/" + url.PathEscape(city) + "?format=3"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "curl/8") // wttr.in returns HTML otherwise

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather lookup failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather service returned status %d", resp.StatusCode)
	}
	return strings.TrimSpace(string(body)), nil
}

func timeSkill() *router.SkillRoute {
	return &router.SkillRoute{
		Name:        "time",
		Description: "Current date and time",
		Examples: []string{
			"what time is it",
			"what's the current time",
			"what is today's date",
			"which day is it today",
		},
		Execute: func(ctx context.Context, args map[string]string, contextString string, execCtx any) (string, error) {
			now := time.Now()
			return now.Format("It is 15:04 on Monday, January 2, 2006"), nil
		},
	}
}

func rememberSkill() *router.SkillRoute {
	return &router.SkillRoute{
		Name:        "remember",
		Description: "Store a fact in long-term memory",
		Examples: []string{
			"remember that my birthday is in June",
			"remember my favorite color is blue",
			"please remember this for later",
			"keep in mind that I work from home on Fridays",
		},
		ExtractArgs: func(message string) map[string]string {
			fact := rememberPrefixRe.ReplaceAllString(strings.TrimSpace(message), "")
			return map[string]string{"fact": fact}
		},
		Execute: func(ctx context.Context, args map[string]string, contextString string, execCtx any) (string, error) {
			sc := asSkillContext(execCtx)
			if sc.Memory == nil {
				return "", fmt.Errorf("memory store is not available")
			}
			fact := args["fact"]
			if fact == "" {
				return "", fmt.Errorf("nothing to remember")
			}
			if err := sc.Memory.Store(ctx, fact); err != nil {
				return "", err
			}
			return fmt.Sprintf("Noted: %s", fact), nil
		},
	}
}

func recallSkill() *router.SkillRoute {
	return &router.SkillRoute{
		Name:        "recall",
		Description: "Recall facts from long-term memory",
		Examples: []string{
			"what do you remember about me",
			"what is my favorite color",
			"do you recall what I told you",
			"what did I say about my birthday",
		},
		Execute: func(ctx context.Context, args map[string]string, contextString string, execCtx any) (string, error) {
			sc := asSkillContext(execCtx)
			if sc.Memory == nil {
				return "", fmt.Errorf("memory store is not available")
			}
			facts, err := sc.Memory.Recall(ctx, args["query"], 5)
			if err != nil {
				return "", err
			}
			if len(facts) == 0 {
				return "I don't have anything stored about that yet.", nil
			}
			return "Here is what I remember:\n- " + strings.Join(facts, "\n- "), nil
		},
		ExtractArgs: func(message string) map[string]string {
			return map[string]string{"query": message}
		},
	}
}

func runSkill() *router.SkillRoute {
	return &router.SkillRoute{
		Name:        "run",
		Description: "Run a command in the sandbox",
		Examples: []string{
			"run ls in my home directory",
			"execute the command df -h",
			"run uptime for me",
		},
		RequiresElevatedTrust: true,
		ExtractArgs: func(message string) map[string]string {
			cmd := commandPrefixRe.ReplaceAllString(strings.TrimSpace(message), "")
			return map[string]string{"command": cmd}
		},
		Execute: func(ctx context.Context, args map[string]string, contextString string, execCtx any) (string, error) {
			sc := asSkillContext(execCtx)
			if sc.Sandbox == nil {
				return "", fmt.Errorf("sandbox is not available")
			}
			command := args["command"]
			if command == "" {
				return "", fmt.Errorf("no command to run")
			}
			logging.Skills("sandbox run: %q", command)
			return sc.Sandbox.Run(ctx, command)
		},
	}
}

func browseSkill() *router.SkillRoute {
	return &router.SkillRoute{
		Name:        "browse",
		Description: "Open a web page and read its text",
		Examples: []string{
			"open https://example.com and tell me what it says",
			"browse to the golang homepage",
			"read this page for me https://go.dev",
		},
		ExtractArgs: func(message string) map[string]string {
			return map[string]string{"url": urlRe.FindString(message)}
		},
		Execute: func(ctx context.Context, args map[string]string, contextString string, execCtx any) (string, error) {
			sc := asSkillContext(execCtx)
			if sc.Browser == nil {
				return "", fmt.Errorf("browser is not available")
			}
			pageURL := args["url"]
			if pageURL == "" {
				return "", fmt.Errorf("no URL found in the request")
			}
			return sc.Browser.PageText(ctx, pageURL)
		},
	}
}

func saySkill() *router.SkillRoute {
	return &router.SkillRoute{
		Name:        "say",
		Description: "Speak a phrase aloud",
		Examples: []string{
			"say hello world out loud",
			"speak the phrase good morning",
			"read this aloud: dinner is ready",
		},
		ExtractArgs: func(message string) map[string]string {
			text := sayPrefixRe.ReplaceAllString(strings.TrimSpace(message), "")
			return map[string]string{"text": text}
		},
		Execute: func(ctx context.Context, args map[string]string, contextString string, execCtx any) (string, error) {
			sc := asSkillContext(execCtx)
			if sc.Speech == nil {
				return "", fmt.Errorf("speech synthesis is not available")
			}
			if err := sc.Speech.Say(ctx, args["text"]); err != nil {
				return "", err
			}
			return fmt.Sprintf("Said: %s", args["text"]), nil
		},
	}
}
