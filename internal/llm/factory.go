package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/normanking/conductor/internal/config"
)

// NewProviders builds one handle per enabled provider, preserving config order.
func NewProviders(cfg *config.Config) ([]ProviderHandle, error) {
	var handles []ProviderHandle
	for _, pc := range cfg.LLM.Providers {
		if pc.Disabled {
			continue
		}
		h, err := NewProviderFromConfig(pc)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// NewProviderFromConfig creates a provider handle from its config entry.
func NewProviderFromConfig(pc config.ProviderConfig) (ProviderHandle, error) {
	apiKey := pc.APIKey
	if apiKey == "" {
		apiKey = getAPIKeyFromEnv(pc.Name)
	}

	cfg := &ProviderConfig{
		Name:     pc.Name,
		Type:     pc.Type,
		Endpoint: pc.Endpoint,
		APIKey:   apiKey,
	}
	if pc.TimeoutSec > 0 {
		cfg.Timeout = time.Duration(pc.TimeoutSec) * time.Second
	}

	return NewProviderByType(pc.Type, cfg)
}

// NewProviderByType creates a provider for the given protocol.
func NewProviderByType(providerType string, cfg *ProviderConfig) (ProviderHandle, error) {
	switch providerType {
	case "ollama":
		return NewOllamaProvider(cfg), nil
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
}

// getAPIKeyFromEnv retrieves the API key from standard environment variables.
func getAPIKeyFromEnv(providerName string) string {
	envVars := map[string]string{
		"grok":       "XAI_API_KEY",
		"xai":        "XAI_API_KEY",
		"groq":       "GROQ_API_KEY",
		"openai":     "OPENAI_API_KEY",
		"anthropic":  "ANTHROPIC_API_KEY",
		"openrouter": "OPENROUTER_API_KEY",
	}
	if envVar, ok := envVars[providerName]; ok {
		return os.Getenv(envVar)
	}
	return ""
}
