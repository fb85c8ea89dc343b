// Package config loads and persists moose configuration.
// The canonical location is ~/.moose/config.json. Saving uses
// read-modify-write on the raw JSON so fields written by other
// components (or the user) are never destroyed.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultGatewayPort is the port the local model gateway listens on.
const DefaultGatewayPort = 18789

// Config holds all moose configuration.
type Config struct {
	// Core settings
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`

	// Gateway (language model provider)
	Gateway GatewayConfig `json:"gateway"`

	// Embedding engine
	Embedding EmbeddingConfig `json:"embedding"`

	// Intent router thresholds
	Router RouterConfig `json:"router"`

	// Orchestrator limits and triggers
	Orchestrator OrchestratorConfig `json:"orchestrator"`

	// Long-term memory
	Memory MemoryConfig `json:"memory"`

	// Logging
	Logging LoggingConfig `json:"logging"`
}

// GatewayConfig configures the language-model gateway client.
type GatewayConfig struct {
	BaseURL string `json:"base_url"` // OpenAI-compatible endpoint
	APIKey  string `json:"api_key,omitempty"`
	Model   string `json:"model"`
	Port    int    `json:"port"`
	Timeout string `json:"timeout"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider       string `json:"provider"` // "ollama" or "genai"
	OllamaEndpoint string `json:"ollama_endpoint"`
	OllamaModel    string `json:"ollama_model"`
	GenAIAPIKey    string `json:"genai_api_key,omitempty"`
	GenAIModel     string `json:"genai_model"`
}

// RouterConfig configures the intent router thresholds.
// A route is considered at all only at or above RouteThreshold; it is
// executed only at or above ExecuteThreshold. The band between the two
// is logged as a near-miss and discarded.
type RouterConfig struct {
	RouteThreshold   float64 `json:"route_threshold"`
	ExecuteThreshold float64 `json:"execute_threshold"`
	SkillsDir        string  `json:"skills_dir,omitempty"` // YAML skill manifests
}

// OrchestratorConfig configures orchestrator limits.
type OrchestratorConfig struct {
	MaxToolIterations int `json:"max_tool_iterations"`
	// DecomposeMinLength gates the decomposition stage: shorter messages
	// never pay for an LLM call.
	DecomposeMinLength int `json:"decompose_min_length"`
	// MaxSubActions caps how many decomposed sub-actions are routed.
	MaxSubActions int `json:"max_sub_actions"`
	// CaptureTriggers are phrases that cause the original message to be
	// stored to long-term memory regardless of which stage replied.
	CaptureTriggers []string `json:"capture_triggers,omitempty"`
}

// MemoryConfig configures the long-term memory store.
type MemoryConfig struct {
	DatabasePath string `json:"database_path"`
	RecallLimit  int    `json:"recall_limit"`
}

// LoggingConfig controls the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories,omitempty"`
	Level      string          `json:"level,omitempty"`
}

// DefaultCaptureTriggers are the phrases that trigger memory auto-capture.
var DefaultCaptureTriggers = []string{"remember", "my name is", "i like", "favorite"}

// MooseHome returns the moose home directory (~/.moose).
func MooseHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".moose"
	}
	return filepath.Join(home, ".moose")
}

// DefaultConfigPath returns ~/.moose/config.json.
func DefaultConfigPath() string {
	return filepath.Join(MooseHome(), "config.json")
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "moose",
		Version: "0.1.0",
		Gateway: GatewayConfig{
			BaseURL: fmt.Sprintf("http://localhost:%d/v1", DefaultGatewayPort),
			Model:   "local",
			Port:    DefaultGatewayPort,
			Timeout: "120s",
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},
		Router: RouterConfig{
			RouteThreshold:   0.55,
			ExecuteThreshold: 0.68,
			SkillsDir:        filepath.Join(MooseHome(), "skills"),
		},
		Orchestrator: OrchestratorConfig{
			MaxToolIterations:  10,
			DecomposeMinLength: 20,
			MaxSubActions:      5,
			CaptureTriggers:    append([]string(nil), DefaultCaptureTriggers...),
		},
		Memory: MemoryConfig{
			DatabasePath: filepath.Join(MooseHome(), "memory.db"),
			RecallLimit:  5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given path, falling back to defaults
// if the file doesn't exist. Environment variables override on top.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save persists the config to path using read-modify-write: fields in
// the existing file that this struct doesn't know about are preserved.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	existing := map[string]json.RawMessage{}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("config.json is not a JSON object: %w", err)
		}
	}

	ours, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	var ourFields map[string]json.RawMessage
	if err := json.Unmarshal(ours, &ourFields); err != nil {
		return fmt.Errorf("failed to remarshal config: %w", err)
	}
	for k, v := range ourFields {
		existing[k] = v
	}

	merged, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal merged config: %w", err)
	}
	return os.WriteFile(path, merged, 0644)
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("GATEWAY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Gateway.Port = p
			c.Gateway.BaseURL = fmt.Sprintf("http://localhost:%d/v1", p)
		}
	}
	if url := os.Getenv("MOOSE_GATEWAY_URL"); url != "" {
		c.Gateway.BaseURL = url
	}
	if key := os.Getenv("MOOSE_API_KEY"); key != "" {
		c.Gateway.APIKey = key
	}
	if model := os.Getenv("MOOSE_MODEL"); model != "" {
		c.Gateway.Model = model
	}
	if ep := os.Getenv("OLLAMA_HOST"); ep != "" {
		c.Embedding.OllamaEndpoint = ep
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		if c.Embedding.Provider == "" {
			c.Embedding.Provider = "genai"
		}
	}
	if dir := os.Getenv("MOOSE_SKILLS_DIR"); dir != "" {
		c.Router.SkillsDir = dir
	}
}

// GetGatewayTimeout parses the gateway timeout, defaulting to 120s.
func (c *Config) GetGatewayTimeout() time.Duration {
	d, err := time.ParseDuration(c.Gateway.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Router.RouteThreshold < 0 || c.Router.RouteThreshold > 1 {
		return fmt.Errorf("router.route_threshold must be in [0,1], got %v", c.Router.RouteThreshold)
	}
	if c.Router.ExecuteThreshold < 0 || c.Router.ExecuteThreshold > 1 {
		return fmt.Errorf("router.execute_threshold must be in [0,1], got %v", c.Router.ExecuteThreshold)
	}
	if c.Router.ExecuteThreshold < c.Router.RouteThreshold {
		return fmt.Errorf("router.execute_threshold (%v) must be >= route_threshold (%v)",
			c.Router.ExecuteThreshold, c.Router.RouteThreshold)
	}
	if c.Orchestrator.MaxToolIterations <= 0 {
		return fmt.Errorf("orchestrator.max_tool_iterations must be positive")
	}
	return nil
}
