package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider implements ProviderHandle for the Anthropic Messages API.
type AnthropicProvider struct {
	baseProvider
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg *ProviderConfig) *AnthropicProvider {
	return &AnthropicProvider{
		baseProvider: newBaseProvider(cfg, "anthropic"),
	}
}

var _ ProviderHandle = (*AnthropicProvider)(nil)

// Kind is always remote.
func (p *AnthropicProvider) Kind() Kind {
	return KindRemote
}

func (p *AnthropicProvider) headers() map[string]string {
	return map[string]string{
		"x-api-key":         p.config.APIKey,
		"anthropic-version": anthropicVersion,
	}
}

// IsAvailable checks the API key and that /v1/models answers.
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	if p.config.APIKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := p.getJSON(ctx, "/v1/models", p.headers())
	return err == nil
}

// ListModels returns the entries of GET /v1/models.
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]RawModel, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrNotConfigured)
	}

	data, err := p.getJSON(ctx, "/v1/models?limit=100", p.headers())
	if err != nil {
		return nil, fmt.Errorf("list anthropic models: %w", err)
	}

	var models []RawModel
	gjson.GetBytes(data, "data").ForEach(func(_, m gjson.Result) bool {
		id := m.Get("id").String()
		if id == "" {
			return true
		}
		display := m.Get("display_name").String()
		if display == "" {
			display = id
		}
		meta, _ := m.Value().(map[string]any)
		models = append(models, RawModel{
			Name:          id,
			DisplayName:   display,
			ContextLength: 200000,
			Metadata:      meta,
		})
		return true
	})
	return models, nil
}

// Generate sends prompt as a single user message.
func (p *AnthropicProvider) Generate(ctx context.Context, prompt, model string, opts Options) (string, error) {
	return p.Chat(ctx, []Message{{Role: "user", Content: prompt}}, model, opts)
}

// Chat sends a Messages API request.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, model string, opts Options) (string, error) {
	if p.config.APIKey == "" {
		return "", fmt.Errorf("anthropic: %w", ErrNotConfigured)
	}

	system, convo := splitSystem(messages, opts.SystemPrompt)
	req := anthropicRequest{
		Model:       model,
		System:      system,
		Messages:    convo,
		MaxTokens:   p.maxTokens(opts),
		Temperature: p.temperature(opts),
	}

	data, err := p.postJSON(ctx, "/v1/messages", req, p.headers())
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	gjson.GetBytes(data, "content").ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			sb.WriteString(block.Get("text").String())
		}
		return true
	})
	return nonEmpty(sb.String())
}

// Anthropic API types
type anthropicRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}
