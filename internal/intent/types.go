// Package intent classifies user messages into conversation and task
// categories. Classification tries a cache, then a model, and degrades to a
// deterministic bilingual keyword heuristic that cannot fail.
package intent

import (
	"time"
)

// Category is the classified intention of a message.
type Category string

const (
	CategoryCasual             Category = "casual_conversation"
	CategoryInformation        Category = "information_request"
	CategorySimpleTask         Category = "simple_task"
	CategoryComplexTask        Category = "complex_task"
	CategoryTaskManagement     Category = "task_management"
	CategoryAgentConfiguration Category = "agent_configuration"
	CategoryUnclear            Category = "unclear"
)

// AllCategories returns every valid category.
func AllCategories() []Category {
	return []Category{
		CategoryCasual,
		CategoryInformation,
		CategorySimpleTask,
		CategoryComplexTask,
		CategoryTaskManagement,
		CategoryAgentConfiguration,
		CategoryUnclear,
	}
}

// String returns the string representation of a Category.
func (c Category) String() string {
	return string(c)
}

// IsValid checks if a Category is a known valid category.
func (c Category) IsValid() bool {
	for _, valid := range AllCategories() {
		if c == valid {
			return true
		}
	}
	return false
}

// IsTask reports whether the category asks for work to be executed.
func (c Category) IsTask() bool {
	return c == CategorySimpleTask || c == CategoryComplexTask
}

// ParseCategory maps free text to a Category. Unknown values map to
// CategoryUnclear.
func ParseCategory(s string) Category {
	c := Category(normalizeLabel(s))
	if c.IsValid() {
		return c
	}
	return CategoryUnclear
}

// Source names the path that produced a result.
type Source string

const (
	SourceModel     Source = "model"
	SourceHeuristic Source = "heuristic"
)

// Result is a classification outcome. It is shared with the cache and must
// not be modified once returned.
type Result struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"` // always within [0, 1]
	Reasoning  string   `json:"reasoning"`

	ExtractedEntities Entities `json:"extracted_entities"`

	SuggestedAction        string   `json:"suggested_action"`
	RequiresClarification  bool     `json:"requires_clarification"`
	ClarificationQuestions []string `json:"clarification_questions"`

	Source       Source    `json:"source"`
	ModelID      string    `json:"model_id,omitempty"`
	ClassifiedAt time.Time `json:"classified_at"`
}

// ActiveTask summarizes a task already in flight for the prompt.
type ActiveTask struct {
	Title  string `json:"title"`
	Status string `json:"status"`
}

// ClassificationStats is a snapshot of classifier counters.
type ClassificationStats struct {
	CacheSize           int           `json:"cache_size"`
	CacheCapacity       int           `json:"cache_capacity"`
	CacheTTL            time.Duration `json:"cache_ttl"`
	ConfidenceThreshold float64       `json:"confidence_threshold"`

	// Total counts every Classify call.
	Total int64 `json:"total"`

	CacheHits            int64 `json:"cache_hits"`
	ModelResults         int64 `json:"model_results"`
	HeuristicResults     int64 `json:"heuristic_results"`
	LowConfidenceAccepts int64 `json:"low_confidence_accepts"`
	ParseFailures        int64 `json:"parse_failures"`
}

// suggestedActions is the default next step per category.
var suggestedActions = map[Category]string{
	CategoryCasual:             "respond_conversationally",
	CategoryInformation:        "answer_question",
	CategorySimpleTask:         "execute_task",
	CategoryComplexTask:        "plan_and_execute",
	CategoryTaskManagement:     "manage_task",
	CategoryAgentConfiguration: "update_configuration",
	CategoryUnclear:            "ask_clarification",
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
