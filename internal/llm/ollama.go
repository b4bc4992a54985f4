package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// isRemoteEndpoint checks if the Ollama endpoint is a remote server (not localhost).
func isRemoteEndpoint(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false // Assume local if can't parse
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return false
	}
	if host == "host.docker.internal" || host == "docker.for.mac.localhost" {
		return false
	}
	return true
}

// OllamaProvider implements ProviderHandle for an Ollama server.
type OllamaProvider struct {
	baseProvider
	probeTimeout time.Duration
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithProbeTimeout bounds the availability check.
func WithProbeTimeout(d time.Duration) OllamaOption {
	return func(p *OllamaProvider) {
		p.probeTimeout = d
	}
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(cfg *ProviderConfig, opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		baseProvider: newBaseProvider(cfg, "ollama"),
		probeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ ProviderHandle = (*OllamaProvider)(nil)

// Kind is local unless the endpoint points at another host.
func (p *OllamaProvider) Kind() Kind {
	if isRemoteEndpoint(p.config.Endpoint) {
		return KindRemote
	}
	return KindLocal
}

// IsAvailable checks if Ollama is running and has at least one model.
// An Ollama endpoint with 0 models is not useful as a backend.
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	data, err := p.getJSON(ctx, "/api/tags", nil)
	if err != nil {
		return false
	}
	return len(gjson.GetBytes(data, "models").Array()) > 0
}

// ListModels returns the models reported by /api/tags.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]RawModel, error) {
	data, err := p.getJSON(ctx, "/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("list ollama models: %w", err)
	}

	var models []RawModel
	gjson.GetBytes(data, "models").ForEach(func(_, m gjson.Result) bool {
		name := m.Get("name").String()
		if name == "" {
			name = m.Get("model").String()
		}
		if name == "" {
			return true
		}
		meta, _ := m.Value().(map[string]any)
		models = append(models, RawModel{
			Name:          name,
			DisplayName:   name,
			Family:        m.Get("details.family").String(),
			ParameterSize: m.Get("details.parameter_size").String(),
			SizeBytes:     m.Get("size").Int(),
			Metadata:      meta,
		})
		return true
	})
	return models, nil
}

// Generate calls /api/generate without streaming.
func (p *OllamaProvider) Generate(ctx context.Context, prompt, model string, opts Options) (string, error) {
	req := ollamaGenerateRequest{
		Model:  model,
		Prompt: prompt,
		System: opts.SystemPrompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: p.temperature(opts),
			NumPredict:  p.maxTokens(opts),
		},
	}

	data, err := p.postJSON(ctx, "/api/generate", req, nil)
	if err != nil {
		return "", err
	}
	return nonEmpty(gjson.GetBytes(data, "response").String())
}

// Chat calls /api/chat without streaming.
func (p *OllamaProvider) Chat(ctx context.Context, messages []Message, model string, opts Options) (string, error) {
	req := ollamaChatRequest{
		Model:  model,
		Stream: false,
		Options: ollamaOptions{
			Temperature: p.temperature(opts),
			NumPredict:  p.maxTokens(opts),
		},
	}
	if opts.SystemPrompt != "" {
		req.Messages = append(req.Messages, Message{Role: "system", Content: opts.SystemPrompt})
	}
	req.Messages = append(req.Messages, messages...)

	data, err := p.postJSON(ctx, "/api/chat", req, nil)
	if err != nil {
		return "", err
	}
	return nonEmpty(gjson.GetBytes(data, "message.content").String())
}

// Ollama API types
type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

// nonEmpty turns blank completions into ErrEmptyResponse.
func nonEmpty(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
