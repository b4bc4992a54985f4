// Package tools provides the tool registry the orchestrator executes
// against, plus the built-in file and web search tools. Every invocation
// goes through Registry.Execute, which turns errors, panics, timeouts and
// policy rejections into a failed Result.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Built-in tool names.
const (
	ToolWebSearch = "web_search"
	ToolFileWrite = "file_write"
	ToolFileRead  = "file_read"
	ToolListFiles = "list_files"
)

var (
	// ErrUnknownTool is returned for names with no registered tool.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrRiskExceeded is returned when a request is riskier than the registry allows.
	ErrRiskExceeded = errors.New("risk level exceeds policy")

	// ErrNotConfigured is returned by tools missing required configuration.
	ErrNotConfigured = errors.New("tool not configured")
)

// RiskLevel indicates how dangerous a tool invocation is.
type RiskLevel int

const (
	RiskNone     RiskLevel = iota // Safe operations (read, list)
	RiskLow                       // Sandboxed writes
	RiskMedium                    // Network calls
	RiskHigh                      // Sensitive files
	RiskCritical                  // Escapes the sandbox
)

// String returns a human-readable risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskNone:
		return "none"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Params holds the parameters of one invocation, as decoded from a model's
// tool-call block.
type Params map[string]any

// String returns the string parameter key, or "" when absent. Numbers and
// booleans are formatted.
func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the integer parameter key, or def when absent or malformed.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the boolean parameter key. Strings "true" and "1" count.
func (p Params) Bool(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case float64:
		return v != 0
	}
	return false
}

// Tool defines the interface for all executable tools.
type Tool interface {
	// Name returns the tool identifier used in tool-call blocks.
	Name() string

	// Description is a one-line summary shown to the model.
	Description() string

	// Parameters documents the accepted parameters for the model.
	Parameters() string

	// Validate checks the parameters before execution.
	Validate(params Params) error

	// AssessRisk evaluates the risk level of a request.
	AssessRisk(params Params) RiskLevel

	// Execute runs the tool and returns its payload.
	Execute(ctx context.Context, params Params) (string, error)
}

// Result is the outcome of one registry execution. Payload is set on
// success and Error on failure.
type Result struct {
	Success  bool          `json:"success"`
	Payload  string        `json:"payload,omitempty"`
	Error    string        `json:"error,omitempty"`
	Risk     RiskLevel     `json:"risk"`
	Duration time.Duration `json:"duration"`
}

// Descriptor describes a registered tool for prompts.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  string `json:"parameters"`
}

func failed(err error, risk RiskLevel, start time.Time) Result {
	return Result{
		Success:  false,
		Error:    err.Error(),
		Risk:     risk,
		Duration: time.Since(start),
	}
}
