// Package skills contains the built-in skill routes and the capability
// bundle their executors run against. Skills are registered on the
// router at startup; additional skills can be loaded from YAML
// manifests in the skills directory.
package skills

import (
	"context"
	"net/http"
	"time"

	"openmoose/internal/logging"
	"openmoose/internal/memory"
)

// Sandbox executes commands in an isolated environment.
type Sandbox interface {
	// Run executes a shell command and returns its combined output.
	Run(ctx context.Context, command string) (string, error)
}

// PageReader fetches the readable text of a web page.
type PageReader interface {
	PageText(ctx context.Context, url string) (string, error)
}

// Speaker synthesizes speech.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// Messenger delivers a message over an external platform bridge.
type Messenger interface {
	Send(ctx context.Context, channel, text string) error
}

// Context is the capability bundle passed opaquely through the router
// to skill executors. Nil fields mean the capability is unavailable;
// skills that need one report a failure rather than crash.
type Context struct {
	Memory    memory.Store
	Sandbox   Sandbox
	Browser   PageReader
	Speech    Speaker
	Messenger Messenger

	// HTTP is used by skills that call public APIs directly. Defaults
	// to a client with a short timeout.
	HTTP *http.Client
}

// httpClient returns the configured HTTP client or a default.
func (c *Context) httpClient() *http.Client {
	if c != nil && c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// asSkillContext recovers the typed bundle from the router's opaque
// execution context.
func asSkillContext(execCtx any) *Context {
	if sc, ok := execCtx.(*Context); ok {
		return sc
	}
	return &Context{}
}

// LogSpeaker is the default Speaker on hosts without a speech backend:
// the phrase goes to the skills log instead of a voice.
type LogSpeaker struct{}

func (LogSpeaker) Say(ctx context.Context, text string) error {
	logging.Skills("say (no speech backend): %s", text)
	return nil
}

// LogMessenger is the default Messenger when no platform bridge is
// configured.
type LogMessenger struct{}

func (LogMessenger) Send(ctx context.Context, channel, text string) error {
	logging.Skills("send to %s (no messenger bridge): %s", channel, text)
	return nil
}
