package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/conductor/internal/logging"
)

// DefaultTimeout bounds a single tool execution.
const DefaultTimeout = 60 * time.Second

// Registry holds the available tools and executes invocations against
// them. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	order   []string
	timeout time.Duration
	maxRisk RiskLevel
	log     zerolog.Logger

	statsMu sync.Mutex
	stats   RegistryStats
}

// RegistryStats tracks tool execution metrics.
type RegistryStats struct {
	TotalExecutions int64         `json:"total_executions"`
	SuccessCount    int64         `json:"success_count"`
	FailureCount    int64         `json:"failure_count"`
	BlockedCount    int64         `json:"blocked_count"`
	PanicCount      int64         `json:"panic_count"`
	TimeoutCount    int64         `json:"timeout_count"`
	TotalDuration   time.Duration `json:"total_duration"`
}

// RegistryOption configures the Registry.
type RegistryOption func(*Registry)

// WithTimeout sets the per-execution timeout.
func WithTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxRisk rejects requests assessed above level.
func WithMaxRisk(level RiskLevel) RegistryOption {
	return func(r *Registry) {
		r.maxRisk = level
	}
}

// WithLogger sets the registry logger.
func WithLogger(l zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = logging.Component(l, "tools")
	}
}

// NewRegistry creates an empty registry. Requests above RiskMedium are
// rejected by default.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:   make(map[string]Tool),
		timeout: DefaultTimeout,
		maxRisk: RiskMedium,
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Describe returns a descriptor per tool in registration order.
func (r *Registry) Describe() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, Descriptor{
			Name:        name,
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return out
}

// Execute runs the named tool. It never panics: unknown tools, invalid
// parameters, policy rejections, errors, panics and timeouts all come back
// as a Result with Success false.
func (r *Registry) Execute(ctx context.Context, name string, params Params) Result {
	start := time.Now()

	tool, ok := r.Get(name)
	if !ok {
		r.count(func(s *RegistryStats) { s.FailureCount++ })
		return failed(fmt.Errorf("%w: %s", ErrUnknownTool, name), RiskNone, start)
	}
	if params == nil {
		params = Params{}
	}

	if err := tool.Validate(params); err != nil {
		r.count(func(s *RegistryStats) { s.FailureCount++ })
		return failed(fmt.Errorf("validation failed: %w", err), RiskNone, start)
	}

	risk := tool.AssessRisk(params)
	if risk > r.maxRisk {
		r.count(func(s *RegistryStats) { s.BlockedCount++ })
		r.log.Warn().Str("tool", name).Str("risk", risk.String()).Msg("tool request blocked")
		return failed(fmt.Errorf("%w: %s", ErrRiskExceeded, risk), risk, start)
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.count(func(s *RegistryStats) { s.TotalExecutions++ })
	payload, err := r.run(execCtx, tool, params)
	duration := time.Since(start)

	r.count(func(s *RegistryStats) {
		s.TotalDuration += duration
		if err != nil {
			s.FailureCount++
		} else {
			s.SuccessCount++
		}
	})

	if err != nil {
		r.log.Debug().Err(err).Str("tool", name).Dur("duration", duration).Msg("tool failed")
		return Result{Success: false, Error: err.Error(), Risk: risk, Duration: duration}
	}
	r.log.Debug().Str("tool", name).Dur("duration", duration).Msg("tool succeeded")
	return Result{Success: true, Payload: payload, Risk: risk, Duration: duration}
}

type outcome struct {
	payload string
	err     error
}

// run executes tool on its own goroutine so a tool that ignores ctx still
// yields to the timeout.
func (r *Registry) run(ctx context.Context, tool Tool, params Params) (string, error) {
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.count(func(s *RegistryStats) { s.PanicCount++ })
				r.log.Error().
					Str("tool", tool.Name()).
					Interface("panic", p).
					Str("stack", string(debug.Stack())).
					Msg("tool panicked")
				done <- outcome{err: fmt.Errorf("tool %s panicked: %v", tool.Name(), p)}
			}
		}()
		payload, err := tool.Execute(ctx, params)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		return out.payload, out.err
	case <-ctx.Done():
		r.count(func(s *RegistryStats) { s.TimeoutCount++ })
		return "", fmt.Errorf("tool %s: %w", tool.Name(), ctx.Err())
	}
}

func (r *Registry) count(fn func(*RegistryStats)) {
	r.statsMu.Lock()
	fn(&r.stats)
	r.statsMu.Unlock()
}

// Stats returns execution statistics.
func (r *Registry) Stats() RegistryStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

// SuccessRate returns the success rate as a percentage.
func (s RegistryStats) SuccessRate() float64 {
	if s.TotalExecutions == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(s.TotalExecutions) * 100
}

// AvgDuration returns the average execution duration.
func (s RegistryStats) AvgDuration() time.Duration {
	if s.TotalExecutions == 0 {
		return 0
	}
	return time.Duration(int64(s.TotalDuration) / s.TotalExecutions)
}
