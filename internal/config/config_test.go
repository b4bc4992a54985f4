package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.Len(t, cfg.LLM.Providers, 3)
	assert.Equal(t, "ollama", cfg.LLM.Providers[0].Name)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.LLM.Providers[0].Endpoint)
	assert.True(t, cfg.Router.AutoFallback)
	assert.Equal(t, 2, cfg.Classifier.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.Classifier.CacheTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath_CreatesDefault(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ".conductor", "config.yaml")

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)

	_, err = os.Stat(configPath)
	require.NoError(t, err, "config file was not created")

	assert.Len(t, cfg.LLM.Providers, 3)
	assert.Equal(t, 0.7, cfg.Classifier.ConfidenceThreshold)
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.ToolTimeout)

	cfg2, err := LoadFromPath(configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.LLM.Providers, cfg2.LLM.Providers, "config values changed on reload")
}

func TestLoadFromPath_PartialFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  providers:
    - name: groq
      type: openai
      endpoint: https://api.groq.com/openai/v1
      pricing:
        - model: llama-3.3-70b-versatile
          cost_per_1k: 0.0006
router:
  active_model: groq/llama-3.3-70b-versatile
  auto_fallback: true
classifier:
  cache_ttl: 10m
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)

	require.Len(t, cfg.LLM.Providers, 1)
	p := cfg.LLM.Providers[0]
	assert.Equal(t, "groq", p.Name)
	require.Len(t, p.Pricing, 1)
	assert.Equal(t, 0.0006, p.Pricing[0].CostPer1K)

	assert.Equal(t, "groq/llama-3.3-70b-versatile", cfg.Router.ActiveModel)
	assert.Equal(t, 10*time.Minute, cfg.Classifier.CacheTTL)
	assert.Equal(t, 1000, cfg.Classifier.CacheCapacity, "missing values fall back to defaults")
	assert.Equal(t, 2, cfg.Classifier.MaxAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath_EnvOverride(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	_, err := LoadFromPath(configPath)
	require.NoError(t, err)

	t.Setenv("CONDUCTOR_ROUTER_ACTIVE_MODEL", "openai/gpt-4o-mini")
	t.Setenv("CONDUCTOR_LOGGING_LEVEL", "warn")

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.Router.ActiveModel)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestSaveToPath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Router.ActiveModel = "anthropic/claude-3-5-haiku-latest"
	cfg.Router.PreferLocal = false
	require.NoError(t, cfg.SaveToPath(configPath))

	loaded, err := LoadFromPath(configPath)
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-3-5-haiku-latest", loaded.Router.ActiveModel)
	assert.False(t, loaded.Router.PreferLocal)
}

func TestProvider(t *testing.T) {
	cfg := Default()

	p, ok := cfg.Provider("anthropic")
	require.True(t, ok)
	assert.Equal(t, "anthropic", p.Type)

	_, ok = cfg.Provider("missing")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty provider name", func(c *Config) { c.LLM.Providers[0].Name = "" }, "name cannot be empty"},
		{"slash in name", func(c *Config) { c.LLM.Providers[0].Name = "a/b" }, "must not contain"},
		{"duplicate", func(c *Config) { c.LLM.Providers[1].Name = "ollama" }, "duplicate provider"},
		{"bad type", func(c *Config) { c.LLM.Providers[0].Type = "gemini" }, "invalid provider type"},
		{"negative price", func(c *Config) {
			c.LLM.Providers[1].Pricing = []ModelPrice{{Model: "x", CostPer1K: -1}}
		}, "negative price"},
		{"negative cost", func(c *Config) { c.Router.MaxCost = -1 }, "max_cost"},
		{"unqualified active", func(c *Config) { c.Router.ActiveModel = "llama3" }, "provider-qualified"},
		{"threshold range", func(c *Config) { c.Classifier.ConfidenceThreshold = 1.5 }, "confidence_threshold"},
		{"warn above threshold", func(c *Config) { c.Classifier.WarnThreshold = 0.9 }, "warn_threshold"},
		{"zero capacity", func(c *Config) { c.Classifier.CacheCapacity = 0 }, "cache_capacity"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "data"), expandPath("~/data"))
	assert.Equal(t, "/abs/path", expandPath("/abs/path"))
}
