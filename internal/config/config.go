package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for conductor.
// It is loaded from ~/.conductor/config.yaml and can be overridden by environment variables.
type Config struct {
	LLM          LLMConfig          `mapstructure:"llm" yaml:"llm"`
	Router       RouterConfig       `mapstructure:"router" yaml:"router"`
	Classifier   ClassifierConfig   `mapstructure:"classifier" yaml:"classifier"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	Tools        ToolsConfig        `mapstructure:"tools" yaml:"tools"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// LLMConfig lists the model providers in priority order. Catalog refreshes
// walk them in this order.
type LLMConfig struct {
	Providers []ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// ProviderConfig contains configuration for a single provider.
type ProviderConfig struct {
	// Name identifies the provider and prefixes its model ids (e.g. "ollama", "groq")
	Name string `mapstructure:"name" yaml:"name"`
	// Type selects the protocol: "ollama", "openai" or "anthropic"
	Type string `mapstructure:"type" yaml:"type"`
	// Endpoint is the API base URL
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	// APIKey is the authentication key for the provider
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	// TimeoutSec bounds each call to the provider
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec,omitempty"`
	// Disabled skips the provider during catalog refresh
	Disabled bool `mapstructure:"disabled" yaml:"disabled,omitempty"`
	// Pricing overrides the built-in cost table for this provider's models
	Pricing []ModelPrice `mapstructure:"pricing" yaml:"pricing,omitempty"`
}

// ModelPrice sets the cost of a model in USD per 1K tokens.
type ModelPrice struct {
	Model     string  `mapstructure:"model" yaml:"model"`
	CostPer1K float64 `mapstructure:"cost_per_1k" yaml:"cost_per_1k"`
}

// RouterConfig controls model selection and fallback.
type RouterConfig struct {
	// ActiveModel is the catalog id used when a call names no model (e.g. "ollama/llama3.2:3b")
	ActiveModel string `mapstructure:"active_model" yaml:"active_model"`
	// AutoFallback enables the single fallback hop after a failed call
	AutoFallback bool `mapstructure:"auto_fallback" yaml:"auto_fallback"`
	// MaxCost is the default cost ceiling in USD per 1K tokens
	MaxCost float64 `mapstructure:"max_cost" yaml:"max_cost"`
	// PreferLocal favors local models during selection
	PreferLocal bool `mapstructure:"prefer_local" yaml:"prefer_local"`
}

// ClassifierConfig controls intention classification.
type ClassifierConfig struct {
	CacheCapacity       int           `mapstructure:"cache_capacity" yaml:"cache_capacity"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	// WarnThreshold is the lower bound of the accept-with-warning band
	WarnThreshold float64 `mapstructure:"warn_threshold" yaml:"warn_threshold"`
	MaxAttempts   int     `mapstructure:"max_attempts" yaml:"max_attempts"`
	Temperature   float64 `mapstructure:"temperature" yaml:"temperature"`
}

// OrchestratorConfig controls task execution.
type OrchestratorConfig struct {
	// WorkspaceDir is the sandbox root for file tools
	WorkspaceDir       string        `mapstructure:"workspace_dir" yaml:"workspace_dir"`
	ToolTimeout        time.Duration `mapstructure:"tool_timeout" yaml:"tool_timeout"`
	MaxToolCalls       int           `mapstructure:"max_tool_calls" yaml:"max_tool_calls"`
	NarrativeMaxTokens int           `mapstructure:"narrative_max_tokens" yaml:"narrative_max_tokens"`
}

// ToolsConfig configures the built-in tools.
type ToolsConfig struct {
	TavilyAPIKey    string        `mapstructure:"tavily_api_key" yaml:"tavily_api_key,omitempty"`
	SearchCacheSize int           `mapstructure:"search_cache_size" yaml:"search_cache_size"`
	SearchCacheTTL  time.Duration `mapstructure:"search_cache_ttl" yaml:"search_cache_ttl"`
}

// MetricsConfig controls the SQLite call ledger.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DBPath  string `mapstructure:"db_path" yaml:"db_path"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file,omitempty"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	dataDir := defaultDataDir()

	return &Config{
		LLM: LLMConfig{
			Providers: []ProviderConfig{
				{
					Name:       "ollama",
					Type:       "ollama",
					Endpoint:   "http://127.0.0.1:11434",
					TimeoutSec: 120,
				},
				{
					Name:       "openai",
					Type:       "openai",
					Endpoint:   "https://api.openai.com/v1",
					TimeoutSec: 60,
				},
				{
					Name:       "anthropic",
					Type:       "anthropic",
					Endpoint:   "https://api.anthropic.com",
					TimeoutSec: 60,
				},
			},
		},
		Router: RouterConfig{
			AutoFallback: true,
			MaxCost:      0.01,
			PreferLocal:  true,
		},
		Classifier: ClassifierConfig{
			CacheCapacity:       1000,
			CacheTTL:            time.Hour,
			ConfidenceThreshold: 0.7,
			WarnThreshold:       0.5,
			MaxAttempts:         2,
			Temperature:         0.1,
		},
		Orchestrator: OrchestratorConfig{
			WorkspaceDir:       filepath.Join(dataDir, "workspace"),
			ToolTimeout:        30 * time.Second,
			MaxToolCalls:       8,
			NarrativeMaxTokens: 600,
		},
		Tools: ToolsConfig{
			SearchCacheSize: 100,
			SearchCacheTTL:  5 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			DBPath:  filepath.Join(dataDir, "metrics.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       filepath.Join(dataDir, "logs", "conductor.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// Load reads configuration from the default location (~/.conductor/config.yaml)
// and merges with environment variables. If no config file exists, it creates
// one with default values.
func Load() (*Config, error) {
	return LoadFromPath(filepath.Join(defaultDataDir(), "config.yaml"))
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it creates one with default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: CONDUCTOR_ROUTER_ACTIVE_MODEL=ollama/llama3.2:3b
	v.SetEnvPrefix("CONDUCTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Orchestrator.WorkspaceDir = expandPath(cfg.Orchestrator.WorkspaceDir)
	cfg.Metrics.DBPath = expandPath(cfg.Metrics.DBPath)
	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills zero values left by partial config files.
func (c *Config) applyDefaults() {
	d := Default()

	if c.Classifier.CacheCapacity <= 0 {
		c.Classifier.CacheCapacity = d.Classifier.CacheCapacity
	}
	if c.Classifier.CacheTTL <= 0 {
		c.Classifier.CacheTTL = d.Classifier.CacheTTL
	}
	if c.Classifier.ConfidenceThreshold == 0 {
		c.Classifier.ConfidenceThreshold = d.Classifier.ConfidenceThreshold
	}
	if c.Classifier.WarnThreshold == 0 {
		c.Classifier.WarnThreshold = d.Classifier.WarnThreshold
	}
	if c.Classifier.MaxAttempts <= 0 {
		c.Classifier.MaxAttempts = d.Classifier.MaxAttempts
	}
	if c.Orchestrator.ToolTimeout <= 0 {
		c.Orchestrator.ToolTimeout = d.Orchestrator.ToolTimeout
	}
	if c.Orchestrator.MaxToolCalls <= 0 {
		c.Orchestrator.MaxToolCalls = d.Orchestrator.MaxToolCalls
	}
	if c.Orchestrator.NarrativeMaxTokens <= 0 {
		c.Orchestrator.NarrativeMaxTokens = d.Orchestrator.NarrativeMaxTokens
	}
	if c.Orchestrator.WorkspaceDir == "" {
		c.Orchestrator.WorkspaceDir = d.Orchestrator.WorkspaceDir
	}
	if c.Tools.SearchCacheSize <= 0 {
		c.Tools.SearchCacheSize = d.Tools.SearchCacheSize
	}
	if c.Tools.SearchCacheTTL <= 0 {
		c.Tools.SearchCacheTTL = d.Tools.SearchCacheTTL
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// Provider returns the provider configuration with the given name.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.LLM.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// GetDataDir returns the conductor data directory path (~/.conductor).
func (c *Config) GetDataDir() string {
	return defaultDataDir()
}

// Validate checks the configuration for common errors and inconsistencies.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	validTypes := map[string]bool{"ollama": true, "openai": true, "anthropic": true}
	for i, p := range c.LLM.Providers {
		if p.Name == "" {
			return fmt.Errorf("llm.providers[%d].name cannot be empty", i)
		}
		if strings.Contains(p.Name, "/") {
			return fmt.Errorf("provider name '%s' must not contain '/'", p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider '%s'", p.Name)
		}
		seen[p.Name] = true
		if !validTypes[p.Type] {
			return fmt.Errorf("invalid provider type '%s' for '%s', must be one of: ollama, openai, anthropic", p.Type, p.Name)
		}
		for _, price := range p.Pricing {
			if price.CostPer1K < 0 {
				return fmt.Errorf("negative price for model '%s' on provider '%s'", price.Model, p.Name)
			}
		}
	}

	if c.Router.MaxCost < 0 {
		return fmt.Errorf("router.max_cost cannot be negative")
	}
	if c.Router.ActiveModel != "" && !strings.Contains(c.Router.ActiveModel, "/") {
		return fmt.Errorf("router.active_model '%s' must be provider-qualified (provider/model)", c.Router.ActiveModel)
	}

	if c.Classifier.ConfidenceThreshold < 0 || c.Classifier.ConfidenceThreshold > 1 {
		return fmt.Errorf("classifier.confidence_threshold must be between 0 and 1")
	}
	if c.Classifier.WarnThreshold < 0 || c.Classifier.WarnThreshold > c.Classifier.ConfidenceThreshold {
		return fmt.Errorf("classifier.warn_threshold must be between 0 and confidence_threshold")
	}
	if c.Classifier.CacheCapacity < 1 {
		return fmt.Errorf("classifier.cache_capacity must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// writeConfigFile writes a Config struct to a YAML file.
// Uses gopkg.in/yaml.v3 directly to ensure proper tag-based serialization.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func defaultDataDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".conductor")
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
