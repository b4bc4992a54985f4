package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/conductor/internal/catalog"
	"github.com/normanking/conductor/internal/llm"
	"github.com/normanking/conductor/internal/logging"
	"github.com/normanking/conductor/internal/metrics"
)

const (
	// DefaultMaxCost is the default ceiling in USD per 1K tokens.
	DefaultMaxCost = 0.01

	// recordTimeout bounds a ledger write after a provider call.
	recordTimeout = 2 * time.Second
)

// Router selects models from a catalog and dispatches calls to providers.
// All methods are safe for concurrent use.
type Router struct {
	catalog      *catalog.Catalog
	taskTags     map[TaskType][]string
	autoFallback bool
	maxCost      float64
	preferLocal  bool
	recorder     CallRecorder
	log          zerolog.Logger

	mu          sync.RWMutex
	activeModel string
	stats       RouterStats
}

// Option is a functional option for configuring Router.
type Option func(*Router)

// WithActiveModel sets the model used when a call names none.
func WithActiveModel(id string) Option {
	return func(r *Router) {
		r.activeModel = id
	}
}

// WithAutoFallback enables or disables the fallback hop.
func WithAutoFallback(enabled bool) Option {
	return func(r *Router) {
		r.autoFallback = enabled
	}
}

// WithMaxCost sets the cost ceiling used for fallback and default selection.
func WithMaxCost(maxCost float64) Option {
	return func(r *Router) {
		r.maxCost = maxCost
	}
}

// WithPreferLocal sets the locality preference used for fallback and
// default selection.
func WithPreferLocal(prefer bool) Option {
	return func(r *Router) {
		r.preferLocal = prefer
	}
}

// WithTaskTags overrides the task type to capability tags table.
func WithTaskTags(table map[TaskType][]string) Option {
	return func(r *Router) {
		r.taskTags = table
	}
}

// WithRecorder sends one record per provider call to rec.
func WithRecorder(rec CallRecorder) Option {
	return func(r *Router) {
		r.recorder = rec
	}
}

// WithLogger sets the router logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Router) {
		r.log = logging.Component(l, "router")
	}
}

// New creates a router over cat.
func New(cat *catalog.Catalog, opts ...Option) *Router {
	r := &Router{
		catalog:      cat,
		taskTags:     DefaultTaskTags(),
		autoFallback: true,
		maxCost:      DefaultMaxCost,
		preferLocal:  true,
		log:          logging.Nop(),
		stats: RouterStats{
			ProviderDistribution: make(map[string]int64),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog returns the catalog the router reads from.
func (r *Router) Catalog() *catalog.Catalog {
	return r.catalog
}

// ActiveModel returns the configured default model id.
func (r *Router) ActiveModel() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeModel
}

// SetActiveModel changes the default model id. An empty id clears it.
func (r *Router) SetActiveModel(id string) {
	r.mu.Lock()
	r.activeModel = id
	r.mu.Unlock()
}

// ═══════════════════════════════════════════════════════════════════════════════
// SELECTION
// ═══════════════════════════════════════════════════════════════════════════════

// SelectBestModel picks a model for taskType under the given constraints.
// It returns nil when the catalog is empty.
func (r *Router) SelectBestModel(taskType TaskType, maxCost float64, preferLocal bool) *catalog.ModelDescriptor {
	r.mu.Lock()
	r.stats.Selections++
	r.mu.Unlock()

	return Select(r.catalog.Models(), taskType, SelectionPolicy{
		TaskTags:    r.taskTags,
		MaxCost:     maxCost,
		PreferLocal: preferLocal,
	})
}

// SelectForTask picks a model for taskType using the router's configured
// cost ceiling and locality preference.
func (r *Router) SelectForTask(taskType TaskType) *catalog.ModelDescriptor {
	return r.SelectBestModel(taskType, r.maxCost, r.preferLocal)
}

// ═══════════════════════════════════════════════════════════════════════════════
// DISPATCH
// ═══════════════════════════════════════════════════════════════════════════════

// callFunc performs one provider call for the model's wire name.
type callFunc func(ctx context.Context, h llm.ProviderHandle, model string) (string, error)

// GenerateResponse completes a single prompt on model, or on the active
// model when model is empty. It returns nil when no model answered.
func (r *Router) GenerateResponse(ctx context.Context, prompt, model string, opts llm.Options) *Completion {
	return r.complete(ctx, metrics.CallGenerate, model, func(ctx context.Context, h llm.ProviderHandle, name string) (string, error) {
		return h.Generate(ctx, prompt, name, opts)
	})
}

// ChatCompletion completes a conversation on model, or on the active model
// when model is empty. It returns nil when no model answered.
func (r *Router) ChatCompletion(ctx context.Context, messages []llm.Message, model string, opts llm.Options) *Completion {
	return r.complete(ctx, metrics.CallChat, model, func(ctx context.Context, h llm.ProviderHandle, name string) (string, error) {
		return h.Chat(ctx, messages, name, opts)
	})
}

func (r *Router) complete(ctx context.Context, kind metrics.CallKind, model string, call callFunc) *Completion {
	start := time.Now()

	r.mu.Lock()
	r.stats.Calls++
	if model == "" {
		model = r.activeModel
	}
	r.mu.Unlock()

	if model == "" {
		r.log.Debug().Msg("no model requested and no active model configured")
		r.countNil()
		return nil
	}

	c := r.attempt(ctx, kind, model, call, false, start)
	if c == nil {
		r.countNil()
	}
	return c
}

// attempt dispatches to modelID and, on failure, takes at most one
// fallback hop. fallbackAttempted is true on the hop itself.
func (r *Router) attempt(ctx context.Context, kind metrics.CallKind, modelID string, call callFunc, fallbackAttempted bool, start time.Time) *Completion {
	desc, text, err := r.dispatch(ctx, kind, modelID, call, fallbackAttempted)
	if err == nil {
		r.mu.Lock()
		r.stats.ProviderDistribution[desc.Provider]++
		if fallbackAttempted {
			r.stats.FallbackSuccesses++
		}
		r.mu.Unlock()

		return &Completion{
			Text:     text,
			ModelID:  desc.ID,
			Provider: desc.Provider,
			FellBack: fallbackAttempted,
			Duration: time.Since(start),
		}
	}

	r.log.Warn().Err(err).Str("model", modelID).Bool("fallback", fallbackAttempted).Msg("model call failed")

	if fallbackAttempted || !r.autoFallback || modelID == r.ActiveModel() {
		return nil
	}

	policy := SelectionPolicy{
		TaskTags:      r.taskTags,
		MaxCost:       r.maxCost,
		PreferLocal:   r.preferLocal,
		ExcludeModels: []string{modelID},
	}
	if desc != nil {
		policy.ExcludeProviders = []string{desc.Provider}
	}
	next := Select(r.catalog.Models(), TaskGeneral, policy)
	if next == nil {
		r.log.Debug().Str("model", modelID).Msg("no fallback candidate")
		return nil
	}

	r.mu.Lock()
	r.stats.Fallbacks++
	r.mu.Unlock()

	r.log.Info().Str("from", modelID).Str("to", next.ID).Msg("falling back")
	return r.attempt(ctx, kind, next.ID, call, true, start)
}

// dispatch resolves modelID in the catalog and calls its provider. The
// provider is taken from the descriptor, never parsed out of the id.
func (r *Router) dispatch(ctx context.Context, kind metrics.CallKind, modelID string, call callFunc, fallback bool) (*catalog.ModelDescriptor, string, error) {
	desc, ok := r.catalog.Lookup(modelID)
	if !ok {
		r.countFailure()
		return nil, "", fmt.Errorf("model %q not in catalog", modelID)
	}

	h, ok := r.catalog.Provider(desc.Provider)
	if !ok {
		r.countFailure()
		return &desc, "", fmt.Errorf("provider %q not registered", desc.Provider)
	}

	start := time.Now()
	text, err := call(ctx, h, desc.Name)
	latency := time.Since(start)

	r.record(ctx, metrics.CallRecord{
		Kind:      kind,
		Provider:  desc.Provider,
		Model:     desc.Name,
		Local:     desc.IsLocal(),
		LatencyMs: latency.Milliseconds(),
		Success:   err == nil,
		Fallback:  fallback,
		ErrorMsg:  errString(err),
	})

	if err != nil {
		r.countFailure()
		return &desc, "", fmt.Errorf("%s: %w", desc.Provider, err)
	}
	return &desc, text, nil
}

func (r *Router) record(ctx context.Context, rec metrics.CallRecord) {
	if r.recorder == nil {
		return
	}
	ctx, cancel := logging.DetachContextWithTimeout(ctx, recordTimeout)
	defer cancel()
	if err := r.recorder.RecordCall(ctx, rec); err != nil {
		r.log.Debug().Err(err).Msg("failed to record model call")
	}
}

func (r *Router) countFailure() {
	r.mu.Lock()
	r.stats.ProviderFailures++
	r.mu.Unlock()
}

func (r *Router) countNil() {
	r.mu.Lock()
	r.stats.NilResults++
	r.mu.Unlock()
}

// Stats returns a copy of the current statistics.
func (r *Router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := r.stats
	stats.ProviderDistribution = make(map[string]int64, len(r.stats.ProviderDistribution))
	for k, v := range r.stats.ProviderDistribution {
		stats.ProviderDistribution[k] = v
	}
	return stats
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
