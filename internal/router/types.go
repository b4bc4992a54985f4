// Package router selects a model from the catalog for a task and dispatches
// calls to the provider that serves it, with a single fallback hop.
package router

import (
	"context"
	"time"

	"github.com/normanking/conductor/internal/metrics"
)

// TaskType is the kind of work a model is being selected for.
type TaskType string

const (
	// TaskGeneral is the default task type for unclassified requests.
	TaskGeneral TaskType = "general"
	// TaskCode is for code generation, review and debugging.
	TaskCode TaskType = "code"
	// TaskChat is for conversational replies.
	TaskChat TaskType = "chat"
	// TaskAnalysis is for structured reasoning such as classification.
	TaskAnalysis TaskType = "analysis"
	// TaskResearch is for research and report writing.
	TaskResearch TaskType = "research"
)

// AllTaskTypes returns all valid task types for validation.
func AllTaskTypes() []TaskType {
	return []TaskType{
		TaskGeneral,
		TaskCode,
		TaskChat,
		TaskAnalysis,
		TaskResearch,
	}
}

// String returns the string representation of a TaskType.
func (t TaskType) String() string {
	return string(t)
}

// IsValid checks if a TaskType is a known valid type.
func (t TaskType) IsValid() bool {
	for _, valid := range AllTaskTypes() {
		if t == valid {
			return true
		}
	}
	return false
}

// Completion is the outcome of a successful GenerateResponse or
// ChatCompletion call.
type Completion struct {
	// Text is the model output.
	Text string `json:"text"`

	// ModelID is the catalog id of the model that answered.
	ModelID string `json:"model_id"`

	// Provider is the name of the provider that served the call.
	Provider string `json:"provider"`

	// FellBack is true when the requested model failed and another answered.
	FellBack bool `json:"fell_back"`

	// Duration covers every attempt, including the failed one.
	Duration time.Duration `json:"duration"`
}

// RouterStats tracks dispatch statistics.
type RouterStats struct {
	// Calls is the number of GenerateResponse and ChatCompletion requests.
	Calls int64 `json:"calls"`

	// ProviderFailures counts failed provider calls, including fallback attempts.
	ProviderFailures int64 `json:"provider_failures"`

	// Fallbacks is the number of fallback hops taken.
	Fallbacks int64 `json:"fallbacks"`

	// FallbackSuccesses is the number of requests answered by a fallback model.
	FallbackSuccesses int64 `json:"fallback_successes"`

	// NilResults is the number of requests that returned no completion.
	NilResults int64 `json:"nil_results"`

	// Selections counts SelectBestModel calls.
	Selections int64 `json:"selections"`

	// ProviderDistribution tracks successful calls per provider.
	ProviderDistribution map[string]int64 `json:"provider_distribution"`
}

// CallRecorder receives one record per provider call. The metrics store
// implements it.
type CallRecorder interface {
	RecordCall(ctx context.Context, rec metrics.CallRecord) error
}

var _ CallRecorder = (*metrics.Store)(nil)
