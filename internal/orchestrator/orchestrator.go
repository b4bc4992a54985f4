package orchestrator

import (
	"context"
	"fmt"
	"path"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/conductor/internal/catalog"
	"github.com/normanking/conductor/internal/llm"
	"github.com/normanking/conductor/internal/logging"
	"github.com/normanking/conductor/internal/router"
	"github.com/normanking/conductor/internal/tools"
)

const (
	// DefaultMaxToolCalls bounds the parsed tool calls executed per task.
	DefaultMaxToolCalls = 12

	// DefaultNarrativeMaxTokens bounds the narrative reply.
	DefaultNarrativeMaxTokens = 800

	planMaxTokens = 2000
	recordTimeout = 2 * time.Second
)

// ModelRouter is the part of the router the orchestrator needs.
type ModelRouter interface {
	ActiveModel() string
	SelectForTask(taskType router.TaskType) *catalog.ModelDescriptor
	GenerateResponse(ctx context.Context, prompt, model string, opts llm.Options) *router.Completion
}

var _ ModelRouter = (*router.Router)(nil)

// ToolExecutor runs tool calls. tools.Registry implements it.
type ToolExecutor interface {
	Describe() []tools.Descriptor
	Execute(ctx context.Context, name string, params tools.Params) tools.Result
}

var _ ToolExecutor = (*tools.Registry)(nil)

// Recorder receives one record per executed task. The metrics store
// implements it.
type Recorder interface {
	RecordExecution(ctx context.Context, success bool, toolsExecuted int) error
}

// Orchestrator executes tasks. Tasks run sequentially inside one call and
// independent calls may run concurrently.
type Orchestrator struct {
	router   ModelRouter
	tools    ToolExecutor
	recorder Recorder
	log      zerolog.Logger

	maxToolCalls       int
	narrativeMaxTokens int

	mu    sync.Mutex
	stats ExecutionStats
}

// Option is a functional option for configuring Orchestrator.
type Option func(*Orchestrator)

// WithMaxToolCalls caps the parsed tool calls executed per task.
func WithMaxToolCalls(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxToolCalls = n
		}
	}
}

// WithNarrativeMaxTokens bounds the narrative reply.
func WithNarrativeMaxTokens(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.narrativeMaxTokens = n
		}
	}
}

// WithRecorder sends one record per task to rec.
func WithRecorder(rec Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = rec
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = logging.Component(l, "orchestrator")
	}
}

// New creates an orchestrator. A nil router runs every task on the forced
// plan with a templated narrative.
func New(r ModelRouter, executor ToolExecutor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		router:             r,
		tools:              executor,
		log:                logging.Nop(),
		maxToolCalls:       DefaultMaxToolCalls,
		narrativeMaxTokens: DefaultNarrativeMaxTokens,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ═══════════════════════════════════════════════════════════════════════════════
// EXECUTION
// ═══════════════════════════════════════════════════════════════════════════════

// ExecuteTaskWithTools plans, executes and reports taskText. It never
// panics and always returns a task with a non-empty FinalNarrative. An
// empty taskID is replaced by a generated one.
func (o *Orchestrator) ExecuteTaskWithTools(ctx context.Context, taskText, taskID string) (task *ExecutionTask) {
	if strings.TrimSpace(taskID) == "" {
		taskID = uuid.NewString()
	}
	task = &ExecutionTask{
		TaskID:    taskID,
		TaskText:  taskText,
		StartedAt: time.Now(),
	}
	o.count(func(s *ExecutionStats) { s.TasksAttempted++ })

	defer func() {
		if p := recover(); p != nil {
			o.log.Error().Interface("panic", p).Str("stack", string(debug.Stack())).Str("task_id", taskID).Msg("task execution panicked")
			task.Error = fmt.Sprintf("internal error: %v", p)
			if strings.TrimSpace(task.FinalNarrative) == "" {
				task.FinalNarrative = TemplateNarrative(task)
				task.Templated = true
			}
		}
		o.finish(ctx, task)
	}()

	log := o.log.With().Str("task_id", taskID).Logger()
	dir := TaskDir(taskText, taskID)
	model := o.pickModel()

	// 1. Plan.
	if o.router != nil {
		prompt := BuildExecutionPrompt(taskText, dir, o.describeTools())
		if c := o.router.GenerateResponse(ctx, prompt, model, llm.Options{MaxTokens: planMaxTokens, Temperature: 0.2}); c != nil {
			task.PlanText = c.Text
			task.PlanModel = c.ModelID
		} else {
			log.Debug().Msg("no plan from model")
		}
	}

	// 2. Parse.
	calls, errs := ParseToolCalls(task.PlanText)
	for _, err := range errs {
		log.Debug().Err(err).Msg("skipping malformed tool block")
	}
	if len(errs) > 0 {
		o.count(func(s *ExecutionStats) { s.MalformedBlocks += int64(len(errs)) })
	}
	if len(calls) > o.maxToolCalls {
		log.Warn().Int("parsed", len(calls)).Int("max", o.maxToolCalls).Msg("truncating tool calls")
		calls = calls[:o.maxToolCalls]
	}

	// 3. Forced execution.
	if len(calls) == 0 {
		category, forced := ForcedPlan(taskText, dir)
		task.Forced = true
		task.ForcedCategory = string(category)
		calls = forced
		o.count(func(s *ExecutionStats) { s.ForcedExecutions++ })
		log.Info().Str("category", string(category)).Int("steps", len(calls)).Msg("no tool calls proposed, forcing execution")
	}

	for _, call := range calls {
		if !task.Forced {
			call = scopeToTaskDir(call, dir)
		}
		task.Invocations = append(task.Invocations, o.invoke(ctx, call, task.Forced))
	}

	// 4. Narrative.
	task.FinalNarrative = o.narrate(ctx, task, model)
	return task
}

// pickModel returns "" to use the router's active model, or the best
// general model when none is active.
func (o *Orchestrator) pickModel() string {
	if o.router == nil || o.router.ActiveModel() != "" {
		return ""
	}
	if m := o.router.SelectForTask(router.TaskGeneral); m != nil {
		return m.ID
	}
	return ""
}

func (o *Orchestrator) describeTools() []tools.Descriptor {
	if o.tools == nil {
		return nil
	}
	return o.tools.Describe()
}

// scopeToTaskDir rewrites a relative file path proposed by the model so it
// lands in the task directory. Paths that already start with dir, absolute
// paths and a list_files call without a path are left alone.
func scopeToTaskDir(call ToolCall, dir string) ToolCall {
	switch call.Tool {
	case tools.ToolFileWrite, tools.ToolFileRead, tools.ToolListFiles:
	default:
		return call
	}
	p := strings.TrimSpace(call.Parameters.String("path"))
	if p == "" || strings.HasPrefix(p, "/") || p == dir || strings.HasPrefix(p, dir+"/") {
		return call
	}

	params := make(tools.Params, len(call.Parameters))
	for k, v := range call.Parameters {
		params[k] = v
	}
	params["path"] = path.Join(dir, p)
	return ToolCall{Tool: call.Tool, Parameters: params}
}

// invoke executes one call. A panicking executor yields a failed invocation.
func (o *Orchestrator) invoke(ctx context.Context, call ToolCall, forced bool) (inv ToolInvocation) {
	inv = ToolInvocation{
		ToolName:   call.Tool,
		Parameters: call.Parameters,
		Forced:     forced,
		Timestamp:  time.Now(),
	}

	defer func() {
		if p := recover(); p != nil {
			o.log.Error().Interface("panic", p).Str("tool", call.Tool).Msg("tool executor panicked")
			inv.Result = tools.Result{Success: false, Error: fmt.Sprintf("tool %s panicked: %v", call.Tool, p)}
		}
		o.count(func(s *ExecutionStats) {
			s.ToolsExecuted++
			if !inv.Result.Success {
				s.ToolFailures++
			}
		})
	}()

	if o.tools == nil {
		inv.Result = tools.Result{Success: false, Error: "no tool executor configured"}
		return inv
	}
	inv.Result = o.tools.Execute(ctx, call.Tool, call.Parameters)
	return inv
}

func (o *Orchestrator) narrate(ctx context.Context, task *ExecutionTask, model string) string {
	if o.router != nil {
		prompt := BuildNarrativePrompt(task.TaskText, Summarize(task.Invocations))
		opts := llm.Options{SystemPrompt: narrativeSystem, MaxTokens: o.narrativeMaxTokens, Temperature: 0.3}
		if c := o.router.GenerateResponse(ctx, prompt, model, opts); c != nil {
			if text := strings.TrimSpace(c.Text); text != "" {
				return text
			}
		}
	}
	task.Templated = true
	o.count(func(s *ExecutionStats) { s.TemplatedNarratives++ })
	return TemplateNarrative(task)
}

// finish settles success, elapsed time and counters.
func (o *Orchestrator) finish(ctx context.Context, task *ExecutionTask) {
	task.Success = task.Succeeded() > 0
	task.Elapsed = time.Since(task.StartedAt)

	o.count(func(s *ExecutionStats) {
		if task.Success {
			s.TasksSucceeded++
		} else {
			s.TasksFailed++
		}
	})

	o.log.Info().
		Str("task_id", task.TaskID).
		Bool("success", task.Success).
		Bool("forced", task.Forced).
		Int("tools", len(task.Invocations)).
		Dur("elapsed", task.Elapsed).
		Msg("task finished")

	if o.recorder != nil {
		rctx, cancel := logging.DetachContextWithTimeout(ctx, recordTimeout)
		defer cancel()
		if err := o.recorder.RecordExecution(rctx, task.Success, len(task.Invocations)); err != nil {
			o.log.Debug().Err(err).Msg("failed to record execution")
		}
	}
}

func (o *Orchestrator) count(fn func(*ExecutionStats)) {
	o.mu.Lock()
	fn(&o.stats)
	o.mu.Unlock()
}

// Stats returns a snapshot of the execution counters.
func (o *Orchestrator) Stats() ExecutionStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}
