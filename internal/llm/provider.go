// Package llm provides the model provider handles used by conductor.
// Supports Ollama (local), OpenAI-compatible APIs and Anthropic (remote).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Security limits to prevent unbounded memory usage
const (
	// MaxErrorBodySize limits how much error response body we read (1MB)
	MaxErrorBodySize = 1 * 1024 * 1024

	// MaxResponseSize limits a successful response body (16MB)
	MaxResponseSize = 16 * 1024 * 1024
)

var (
	// ErrNotConfigured is returned when a provider lacks credentials or an endpoint.
	ErrNotConfigured = errors.New("provider not configured")

	// ErrEmptyResponse is returned when a provider answers without any text.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// readLimitedBody reads up to maxBytes from r, returning the bytes read.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

// Kind tags where a provider runs. Routing decisions use it instead of
// parsing provider names out of model identifiers.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// ProviderHandle is the capability interface every model backend implements.
type ProviderHandle interface {
	// Name returns the configured provider identifier (e.g. "ollama", "openai").
	Name() string

	// Kind reports whether the provider runs locally or remotely.
	Kind() Kind

	// IsAvailable returns true if the provider is configured and reachable.
	IsAvailable(ctx context.Context) bool

	// ListModels returns the raw model records the provider exposes.
	ListModels(ctx context.Context) ([]RawModel, error)

	// Generate completes a single prompt.
	Generate(ctx context.Context, prompt, model string, opts Options) (string, error)

	// Chat completes a conversation.
	Chat(ctx context.Context, messages []Message, model string, opts Options) (string, error)
}

// RawModel is a provider's model record before it is mapped into the catalog.
type RawModel struct {
	Name          string         `json:"name"`
	DisplayName   string         `json:"display_name,omitempty"`
	Family        string         `json:"family,omitempty"`
	ParameterSize string         `json:"parameter_size,omitempty"` // e.g. "8.0B"
	SizeBytes     int64          `json:"size_bytes,omitempty"`
	ContextLength int            `json:"context_length,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Message represents a conversation message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Options carries generation parameters shared by every provider.
type Options struct {
	// SystemPrompt sets the model's behavior.
	SystemPrompt string

	// MaxTokens limits response length. Zero uses the provider default.
	MaxTokens int

	// Temperature controls randomness (0.0-1.0). Zero or negative uses the provider default.
	Temperature float64
}

// ProviderConfig contains configuration for a provider handle.
type ProviderConfig struct {
	// Name identifies the provider instance (ollama, openai, groq, ...).
	Name string

	// Type selects the wire protocol: ollama, openai or anthropic.
	Type string

	// Endpoint is the API base URL.
	Endpoint string

	// APIKey for authentication.
	APIKey string

	// MaxTokens default for responses.
	MaxTokens int

	// Temperature default.
	Temperature float64

	// Timeout for API calls.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for a provider type.
func DefaultConfig(providerType string) *ProviderConfig {
	switch providerType {
	case "ollama":
		return &ProviderConfig{
			Name:        "ollama",
			Type:        "ollama",
			Endpoint:    "http://127.0.0.1:11434",
			MaxTokens:   2048,
			Temperature: 0.7,
			Timeout:     2 * time.Minute,
		}
	case "openai":
		return &ProviderConfig{
			Name:        "openai",
			Type:        "openai",
			Endpoint:    "https://api.openai.com/v1",
			MaxTokens:   2048,
			Temperature: 0.7,
			Timeout:     time.Minute,
		}
	case "anthropic":
		return &ProviderConfig{
			Name:        "anthropic",
			Type:        "anthropic",
			Endpoint:    "https://api.anthropic.com",
			MaxTokens:   2048,
			Temperature: 0.7,
			Timeout:     time.Minute,
		}
	default:
		return &ProviderConfig{
			Name:        providerType,
			Type:        providerType,
			MaxTokens:   2048,
			Temperature: 0.7,
			Timeout:     time.Minute,
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// BASE PROVIDER (DRY helper for HTTP-based providers)
// ═══════════════════════════════════════════════════════════════════════════════

// baseProvider provides common functionality for HTTP-based providers.
type baseProvider struct {
	config *ProviderConfig
	client *http.Client
}

// newBaseProvider creates a new base provider with defaults applied.
func newBaseProvider(cfg *ProviderConfig, providerType string) baseProvider {
	defaults := DefaultConfig(providerType)
	if cfg == nil {
		cfg = defaults
	}

	c := *cfg
	if c.Name == "" {
		c.Name = defaults.Name
	}
	c.Type = providerType
	if c.Endpoint == "" {
		c.Endpoint = defaults.Endpoint
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.MaxTokens == 0 {
		c.MaxTokens = defaults.MaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = defaults.Temperature
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}

	return baseProvider{
		config: &c,
		client: &http.Client{Timeout: c.Timeout},
	}
}

// Name returns the provider identifier.
func (b *baseProvider) Name() string {
	return b.config.Name
}

// maxTokens resolves the per-call token limit.
func (b *baseProvider) maxTokens(opts Options) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return b.config.MaxTokens
}

// temperature resolves the per-call temperature.
func (b *baseProvider) temperature(opts Options) float64 {
	if opts.Temperature <= 0 {
		return b.config.Temperature
	}
	return opts.Temperature
}

// getJSON issues a GET and returns the body of a 200 response.
func (b *baseProvider) getJSON(ctx context.Context, path string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.config.Endpoint+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return b.do(req)
}

// postJSON marshals payload, POSTs it and returns the body of a 200 response.
func (b *baseProvider) postJSON(ctx context.Context, path string, payload any, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.config.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return b.do(req)
}

func (b *baseProvider) do(req *http.Request) ([]byte, error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, fmt.Errorf("%s error (status %d): %s", b.config.Name, resp.StatusCode, string(bodyBytes))
	}

	data, err := readLimitedBody(resp.Body, MaxResponseSize)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

// splitSystem separates system messages from the conversation, joining them
// with any explicit system prompt. Anthropic takes the system prompt as a
// top-level field.
func splitSystem(messages []Message, system string) (string, []Message) {
	var parts []string
	if system != "" {
		parts = append(parts, system)
	}
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			parts = append(parts, m.Content)
			continue
		}
		out = append(out, m)
	}
	return strings.Join(parts, "\n\n"), out
}
