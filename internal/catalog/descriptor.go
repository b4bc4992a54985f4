// Package catalog maintains the provider-agnostic snapshot of every model
// conductor can route to. Snapshots are immutable and replaced atomically.
package catalog

import (
	"slices"

	"github.com/normanking/conductor/internal/llm"
)

// Capability tags inferred from model names and metadata.
const (
	TagCodeGeneration = "code_generation"
	TagCodeAnalysis   = "code_analysis"
	TagDebugging      = "debugging"
	TagConversational = "conversational"
	TagAnalysis       = "analysis"
	TagReasoning      = "reasoning"
	TagResearch       = "research"
	TagVision         = "vision"
	TagLargeContext   = "large_context"
	TagEfficient      = "efficient"
	TagGeneral        = "general"
)

// ModelDescriptor describes one routable model.
type ModelDescriptor struct {
	// ID is provider-qualified ("ollama/llama3.1:8b") and unique in a snapshot.
	ID string `json:"id"`

	// Name is the model identifier the provider expects on the wire.
	Name string `json:"name"`

	DisplayName string `json:"display_name"`

	// Provider is the name of the handle that serves this model.
	Provider string `json:"provider"`

	ProviderKind llm.Kind `json:"provider_kind"`

	// CapabilityTags is a sorted set.
	CapabilityTags []string `json:"capability_tags"`

	ContextLength int `json:"context_length,omitempty"`

	// CostPer1KTokens is in USD. Local models cost 0.
	CostPer1KTokens float64 `json:"cost_per_1k_tokens"`

	// SizeMetric approximates parameter count in billions. Zero when unknown.
	SizeMetric float64 `json:"size_metric"`

	RawMetadata map[string]any `json:"raw_metadata,omitempty"`
}

// HasTag reports whether the model carries tag.
func (d ModelDescriptor) HasTag(tag string) bool {
	_, found := slices.BinarySearch(d.CapabilityTags, tag)
	return found
}

// HasAnyTag reports whether the model carries at least one of tags.
func (d ModelDescriptor) HasAnyTag(tags []string) bool {
	for _, t := range tags {
		if d.HasTag(t) {
			return true
		}
	}
	return false
}

// IsLocal reports whether the model runs on a local provider.
func (d ModelDescriptor) IsLocal() bool {
	return d.ProviderKind == llm.KindLocal
}

// QualifiedID builds the catalog id for a provider's model.
func QualifiedID(provider, model string) string {
	return provider + "/" + model
}
