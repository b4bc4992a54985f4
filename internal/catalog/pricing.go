package catalog

import (
	"strings"

	"github.com/normanking/conductor/internal/llm"
)

// DefaultRemoteCost is charged per 1K tokens for remote models missing
// from the price table. It sits at the router's default cost ceiling so
// unknown models are only picked when nothing cheaper qualifies.
const DefaultRemoteCost = 0.01

// builtinPrices maps model name prefixes to blended USD cost per 1K tokens.
// Longer prefixes win, so "gpt-4o-mini" is matched before "gpt-4o".
var builtinPrices = map[string]float64{
	"gpt-4o-mini":       0.00015,
	"gpt-4o":            0.0025,
	"gpt-4.1-nano":      0.0001,
	"gpt-4.1-mini":      0.0004,
	"gpt-4.1":           0.002,
	"gpt-4-turbo":       0.01,
	"gpt-3.5-turbo":     0.0005,
	"o1-mini":           0.0011,
	"o3-mini":           0.0011,
	"o4-mini":           0.0011,
	"o1":                0.015,
	"o3":                0.002,
	"claude-3-5-haiku":  0.0008,
	"claude-3-haiku":    0.00025,
	"claude-haiku":      0.0008,
	"claude-3-5-sonnet": 0.003,
	"claude-3-7-sonnet": 0.003,
	"claude-sonnet":     0.003,
	"claude-3-opus":     0.015,
	"claude-opus":       0.015,
	"llama-3.3-70b":     0.00059,
	"llama-3.1-70b":     0.00059,
	"llama-3.1-8b":      0.00005,
	"llama3-70b":        0.00059,
	"llama3-8b":         0.00005,
	"mixtral-8x7b":      0.00024,
	"gemma2-9b":         0.0002,
	"deepseek-r1":       0.00075,
	"grok-3-mini":       0.0003,
	"grok-3":            0.003,
}

// Pricing resolves per-model costs. Overrides are exact matches keyed by
// provider then model name; the built-in table is consulted by prefix.
type Pricing struct {
	overrides map[string]map[string]float64
}

// NewPricing creates a price resolver with per-provider overrides.
func NewPricing(overrides map[string]map[string]float64) *Pricing {
	return &Pricing{overrides: overrides}
}

// Cost returns the USD cost per 1K tokens for a model. Local models are free.
func (p *Pricing) Cost(provider string, kind llm.Kind, model string) float64 {
	if p != nil {
		if byModel, ok := p.overrides[provider]; ok {
			if cost, ok := byModel[model]; ok {
				return cost
			}
		}
	}
	if kind == llm.KindLocal {
		return 0
	}
	if cost, ok := lookupBuiltin(model); ok {
		return cost
	}
	return DefaultRemoteCost
}

func lookupBuiltin(model string) (float64, bool) {
	name := strings.ToLower(model)
	// OpenRouter-style ids carry a vendor prefix ("openai/gpt-4o").
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	best := ""
	for prefix := range builtinPrices {
		if strings.HasPrefix(name, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return 0, false
	}
	return builtinPrices[best], true
}
