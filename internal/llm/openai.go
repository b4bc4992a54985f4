package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// OpenAIProvider implements ProviderHandle for OpenAI and every API that
// speaks the same protocol (Groq, xAI, OpenRouter, LM Studio).
type OpenAIProvider struct {
	baseProvider
	kind Kind
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(cfg *ProviderConfig) *OpenAIProvider {
	p := &OpenAIProvider{
		baseProvider: newBaseProvider(cfg, "openai"),
		kind:         KindRemote,
	}
	if !isRemoteEndpoint(p.config.Endpoint) {
		p.kind = KindLocal
	}
	return p
}

var _ ProviderHandle = (*OpenAIProvider)(nil)

// Kind is remote for hosted APIs and local for servers on this machine.
func (p *OpenAIProvider) Kind() Kind {
	return p.kind
}

func (p *OpenAIProvider) headers() map[string]string {
	if p.config.APIKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + p.config.APIKey}
}

// IsAvailable requires an API key for hosted endpoints and a 200 from /models.
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	if p.kind == KindRemote && p.config.APIKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := p.getJSON(ctx, "/models", p.headers())
	return err == nil
}

// ListModels returns the entries of GET /models. OpenRouter-style
// context_length fields are carried over when present.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]RawModel, error) {
	if p.kind == KindRemote && p.config.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", p.config.Name, ErrNotConfigured)
	}

	data, err := p.getJSON(ctx, "/models", p.headers())
	if err != nil {
		return nil, fmt.Errorf("list %s models: %w", p.config.Name, err)
	}

	var models []RawModel
	gjson.GetBytes(data, "data").ForEach(func(_, m gjson.Result) bool {
		id := m.Get("id").String()
		if id == "" {
			return true
		}
		display := m.Get("name").String()
		if display == "" {
			display = id
		}
		meta, _ := m.Value().(map[string]any)
		models = append(models, RawModel{
			Name:          id,
			DisplayName:   display,
			ContextLength: int(m.Get("context_length").Int()),
			Metadata:      meta,
		})
		return true
	})
	return models, nil
}

// Generate sends prompt as a single user message.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt, model string, opts Options) (string, error) {
	return p.Chat(ctx, []Message{{Role: "user", Content: prompt}}, model, opts)
}

// Chat sends a chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, model string, opts Options) (string, error) {
	if p.kind == KindRemote && p.config.APIKey == "" {
		return "", fmt.Errorf("%s: %w", p.config.Name, ErrNotConfigured)
	}

	req := openAIChatRequest{
		Model:       model,
		MaxTokens:   p.maxTokens(opts),
		Temperature: p.temperature(opts),
	}
	if opts.SystemPrompt != "" {
		req.Messages = append(req.Messages, Message{Role: "system", Content: opts.SystemPrompt})
	}
	req.Messages = append(req.Messages, messages...)

	data, err := p.postJSON(ctx, "/chat/completions", req, p.headers())
	if err != nil {
		return "", err
	}

	choice := gjson.GetBytes(data, "choices.0")
	if !choice.Exists() {
		return "", fmt.Errorf("no choices in response")
	}
	return nonEmpty(choice.Get("message.content").String())
}

// OpenAI API types
type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}
