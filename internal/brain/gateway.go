package brain

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"openmoose/internal/logging"
	"openmoose/internal/types"
)

// GatewayConfig configures the gateway client.
type GatewayConfig struct {
	BaseURL string // e.g. "http://localhost:18789/v1"
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GatewayClient implements Brain against an OpenAI-compatible endpoint.
type GatewayClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// minRequestSpacing throttles back-to-back requests so a local gateway
// backed by a rate-limited upstream isn't hammered.
const minRequestSpacing = 600 * time.Millisecond

// NewGatewayClient creates a gateway client.
func NewGatewayClient(cfg GatewayConfig) *GatewayClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:18789/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "local"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &GatewayClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model returns the configured model name.
func (c *GatewayClient) Model() string {
	return c.model
}

// Chat performs a blocking completion with 429 retry and backoff.
func (c *GatewayClient) Chat(ctx context.Context, req Request) (*Response, error) {
	c.throttle()

	body, err := json.Marshal(c.buildWireRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	const maxRetries = 3
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s
			select {
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		httpReq, err := c.newHTTPRequest(ctx, body)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("gateway request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			logging.Brain("gateway returned 429, attempt %d/%d", attempt+1, maxRetries+1)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(respBody))
		}

		var wire wireResponse
		if err := json.Unmarshal(respBody, &wire); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if wire.Error != nil {
			return nil, fmt.Errorf("gateway error: %s", wire.Error.Message)
		}
		if len(wire.Choices) == 0 {
			return nil, fmt.Errorf("no completion returned")
		}

		msg := wire.Choices[0].Message
		out := &Response{Content: strings.TrimSpace(msg.Content)}
		for _, tc := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, types.ToolCall{
				ID:            tc.ID,
				Name:          tc.Function.Name,
				ArgumentsJSON: tc.Function.Arguments,
			})
		}
		return out, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// ChatStream performs a streaming completion. Content deltas are sent
// as they arrive; tool call fragments are accumulated by index and
// delivered on the final Done chunk.
func (c *GatewayClient) ChatStream(ctx context.Context, req Request) (<-chan StreamChunk, <-chan error) {
	chunks := make(chan StreamChunk, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		c.throttle()

		body, err := json.Marshal(c.buildWireRequest(req, true))
		if err != nil {
			errs <- fmt.Errorf("failed to marshal request: %w", err)
			return
		}

		httpReq, err := c.newHTTPRequest(ctx, body)
		if err != nil {
			errs <- err
			return
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			errs <- fmt.Errorf("gateway request failed: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			errs <- fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(respBody))
			return
		}

		// The scanner runs in its own goroutine so ctx.Done() can
		// force-close the response body and unblock Scan().
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		scanDone := make(chan struct{})
		scanErr := make(chan error, 1)
		acc := newToolCallAccumulator()

		go func() {
			defer close(scanDone)
			for scanner.Scan() {
				line := scanner.Text()
				if !strings.HasPrefix(line, "data: ") {
					continue
				}
				data := strings.TrimPrefix(line, "data: ")
				if data == "[DONE]" {
					return
				}

				var wire wireResponse
				if err := json.Unmarshal([]byte(data), &wire); err != nil {
					continue // skip malformed chunks
				}
				if len(wire.Choices) == 0 || wire.Choices[0].Delta == nil {
					continue
				}

				delta := wire.Choices[0].Delta
				acc.add(delta.ToolCalls)

				if delta.Content != "" {
					select {
					case chunks <- StreamChunk{Content: delta.Content}:
					case <-ctx.Done():
						return
					}
				}
			}
			if err := scanner.Err(); err != nil {
				scanErr <- err
			}
		}()

		select {
		case <-scanDone:
			select {
			case err := <-scanErr:
				errs <- fmt.Errorf("stream error: %w", err)
			default:
				final := StreamChunk{Done: true, ToolCalls: acc.finish()}
				select {
				case chunks <- final:
				case <-ctx.Done():
					errs <- ctx.Err()
				}
			}
		case <-ctx.Done():
			// Force close the body so scanner.Scan() unblocks. Safe
			// here: this goroutine owns resp.Body and the deferred
			// Close becomes a no-op.
			resp.Body.Close()
			<-scanDone
			errs <- ctx.Err()
		}
	}()

	return chunks, errs
}

// throttle enforces minimum spacing between requests.
func (c *GatewayClient) throttle() {
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < minRequestSpacing {
		time.Sleep(minRequestSpacing - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

func (c *GatewayClient) newHTTPRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *GatewayClient) buildWireRequest(req Request, stream bool) wireRequest {
	messages := make([]wireMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, wireMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		wm := wireMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunctionCall{
					Name:      tc.Name,
					Arguments: tc.ArgumentsJSON,
				},
			})
		}
		messages = append(messages, wm)
	}

	out := wireRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   4096,
		Temperature: 0.1,
		Stream:      stream,
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, wireTool{
			Type: "function",
			Function: wireFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}

// toolCallAccumulator assembles streamed tool call fragments. OpenAI
// streams tool calls as deltas keyed by index: the first delta for an
// index carries ID and name, later ones append argument text.
type toolCallAccumulator struct {
	byIndex map[int]*types.ToolCall
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{byIndex: make(map[int]*types.ToolCall)}
}

func (a *toolCallAccumulator) add(deltas []wireToolCallDelta) {
	for _, d := range deltas {
		tc, ok := a.byIndex[d.Index]
		if !ok {
			tc = &types.ToolCall{}
			a.byIndex[d.Index] = tc
		}
		if d.ID != "" {
			tc.ID = d.ID
		}
		if d.Function.Name != "" {
			tc.Name += d.Function.Name
		}
		tc.ArgumentsJSON += d.Function.Arguments
	}
}

func (a *toolCallAccumulator) finish() []types.ToolCall {
	if len(a.byIndex) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(a.byIndex))
	for i := range a.byIndex {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	out := make([]types.ToolCall, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, *a.byIndex[i])
	}
	return out
}
