package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 0.55, cfg.Router.RouteThreshold)
	assert.Equal(t, 0.68, cfg.Router.ExecuteThreshold)
	assert.Equal(t, 10, cfg.Orchestrator.MaxToolIterations)
	assert.Equal(t, 20, cfg.Orchestrator.DecomposeMinLength)
	assert.Equal(t, 5, cfg.Orchestrator.MaxSubActions)
	assert.Equal(t, DefaultGatewayPort, cfg.Gateway.Port)
	assert.Equal(t, "http://localhost:18789/v1", cfg.Gateway.BaseURL)
	assert.Contains(t, cfg.Orchestrator.CaptureTriggers, "remember")
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.json"))
	require.NoError(t, err)
	assert.Equal(t, 0.55, cfg.Router.RouteThreshold)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"router":{"route_threshold":0.4,"execute_threshold":0.7}}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.4, cfg.Router.RouteThreshold)
	assert.Equal(t, 0.7, cfg.Router.ExecuteThreshold)
	// Untouched sections keep defaults.
	assert.Equal(t, 10, cfg.Orchestrator.MaxToolIterations)
}

func TestSavePreservesUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"custom_section":{"keep":"me"},"gateway":{"port":9999}}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Gateway.Port)

	cfg.Gateway.Model = "updated"
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "custom_section")
	assert.JSONEq(t, `{"keep":"me"}`, string(raw["custom_section"]))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "updated", reloaded.Gateway.Model)
}

func TestSaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "config.json")
	cfg := DefaultConfig()
	require.NoError(t, cfg.Save(path))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("GATEWAY_PORT rewrites base URL", func(t *testing.T) {
		t.Setenv("GATEWAY_PORT", "9090")
		cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Gateway.Port)
		assert.Equal(t, "http://localhost:9090/v1", cfg.Gateway.BaseURL)
	})

	t.Run("invalid GATEWAY_PORT is ignored", func(t *testing.T) {
		t.Setenv("GATEWAY_PORT", "not-a-port")
		cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
		require.NoError(t, err)
		assert.Equal(t, DefaultGatewayPort, cfg.Gateway.Port)
	})

	t.Run("MOOSE_GATEWAY_URL wins over port", func(t *testing.T) {
		t.Setenv("GATEWAY_PORT", "9090")
		t.Setenv("MOOSE_GATEWAY_URL", "https://example.com/v1")
		cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/v1", cfg.Gateway.BaseURL)
	})

	t.Run("MOOSE_API_KEY and MOOSE_MODEL", func(t *testing.T) {
		t.Setenv("MOOSE_API_KEY", "sk-test")
		t.Setenv("MOOSE_MODEL", "gpt-test")
		cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
		require.NoError(t, err)
		assert.Equal(t, "sk-test", cfg.Gateway.APIKey)
		assert.Equal(t, "gpt-test", cfg.Gateway.Model)
	})

	t.Run("GEMINI_API_KEY promotes provider only when unset", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gm-key")
		cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
		require.NoError(t, err)
		assert.Equal(t, "gm-key", cfg.Embedding.GenAIAPIKey)
		// Provider was already "ollama" by default, so it stays.
		assert.Equal(t, "ollama", cfg.Embedding.Provider)
	})
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Router.ExecuteThreshold = 0.4 // below route threshold
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Router.RouteThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Orchestrator.MaxToolIterations = 0
	assert.Error(t, cfg.Validate())
}

func TestGetGatewayTimeout(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 120*time.Second, cfg.GetGatewayTimeout())

	cfg.Gateway.Timeout = "30s"
	assert.Equal(t, 30*time.Second, cfg.GetGatewayTimeout())

	cfg.Gateway.Timeout = "garbage"
	assert.Equal(t, 120*time.Second, cfg.GetGatewayTimeout())
}
