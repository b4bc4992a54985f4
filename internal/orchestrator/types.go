// Package orchestrator turns a task description into executed tool calls
// and a final narrative. When the model proposes no tool calls a fixed
// forced-execution plan runs instead, so every task attempts at least one
// artifact and always ends with a non-empty narrative.
package orchestrator

import (
	"time"

	"github.com/normanking/conductor/internal/tools"
)

// ToolCall is a tool request parsed from a model reply or synthesized by
// the forced-execution policy.
type ToolCall struct {
	Tool       string       `json:"tool"`
	Parameters tools.Params `json:"parameters"`
}

// ToolInvocation is one executed tool call. It is not modified after it is
// appended to an ExecutionTask.
type ToolInvocation struct {
	ToolName   string       `json:"tool_name"`
	Parameters tools.Params `json:"parameters"`
	Result     tools.Result `json:"result"`
	Forced     bool         `json:"forced"`
	Timestamp  time.Time    `json:"timestamp"`
}

// ExecutionTask is the outcome of one ExecuteTaskWithTools call.
type ExecutionTask struct {
	TaskID         string           `json:"task_id"`
	TaskText       string           `json:"task_text"`
	PlanText       string           `json:"plan_text"`
	PlanModel      string           `json:"plan_model,omitempty"`
	Invocations    []ToolInvocation `json:"invocations"`
	Forced         bool             `json:"forced"`
	ForcedCategory string           `json:"forced_category,omitempty"`
	FinalNarrative string           `json:"final_narrative"`
	Templated      bool             `json:"templated_narrative"`
	Success        bool             `json:"success"`
	Error          string           `json:"error,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	Elapsed        time.Duration    `json:"elapsed"`
}

// Succeeded returns the number of successful invocations.
func (t *ExecutionTask) Succeeded() int {
	n := 0
	for _, inv := range t.Invocations {
		if inv.Result.Success {
			n++
		}
	}
	return n
}

// Failed returns the number of failed invocations.
func (t *ExecutionTask) Failed() int {
	return len(t.Invocations) - t.Succeeded()
}

// ExecutionStats is a snapshot of orchestrator counters.
type ExecutionStats struct {
	TasksAttempted      int64 `json:"tasks_attempted"`
	TasksSucceeded      int64 `json:"tasks_succeeded"`
	TasksFailed         int64 `json:"tasks_failed"`
	ToolsExecuted       int64 `json:"tools_executed"`
	ToolFailures        int64 `json:"tool_failures"`
	ForcedExecutions    int64 `json:"forced_executions"`
	TemplatedNarratives int64 `json:"templated_narratives"`
	MalformedBlocks     int64 `json:"malformed_blocks"`
}

// SuccessRate returns the fraction of attempted tasks that succeeded.
func (s ExecutionStats) SuccessRate() float64 {
	if s.TasksAttempted == 0 {
		return 0
	}
	return float64(s.TasksSucceeded) / float64(s.TasksAttempted)
}
