// Package engine assembles the catalog, router, classifier, tool registry
// and orchestrator from one configuration. Each Engine owns its components;
// there is no process-wide state.
package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/normanking/conductor/internal/cache"
	"github.com/normanking/conductor/internal/catalog"
	"github.com/normanking/conductor/internal/config"
	"github.com/normanking/conductor/internal/intent"
	"github.com/normanking/conductor/internal/llm"
	"github.com/normanking/conductor/internal/logging"
	"github.com/normanking/conductor/internal/metrics"
	"github.com/normanking/conductor/internal/orchestrator"
	"github.com/normanking/conductor/internal/router"
	"github.com/normanking/conductor/internal/tools"
)

// Engine is the assembled agent core.
type Engine struct {
	cfg *config.Config
	log zerolog.Logger

	catalog    *catalog.Catalog
	router     *router.Router
	classifier *intent.Classifier
	registry   *tools.Registry
	search     *tools.WebSearchTool
	sandbox    *tools.Sandbox
	orch       *orchestrator.Orchestrator
	store      *metrics.Store
}

type options struct {
	providers []llm.ProviderHandle
	log       *zerolog.Logger
}

// Option customizes engine assembly.
type Option func(*options)

// WithProviders replaces the providers built from the config.
func WithProviders(providers ...llm.ProviderHandle) Option {
	return func(o *options) {
		o.providers = providers
	}
}

// WithLogger sets the root logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = &l
	}
}

// New builds an engine from cfg. The catalog starts empty; call Refresh
// before selecting models.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	log := logging.Nop()
	if o.log != nil {
		log = *o.log
	}

	e := &Engine{cfg: cfg, log: logging.Component(log, "engine")}

	providers := o.providers
	if providers == nil {
		built, err := llm.NewProviders(cfg)
		if err != nil {
			return nil, fmt.Errorf("build providers: %w", err)
		}
		providers = built
	}

	if cfg.Metrics.Enabled && cfg.Metrics.DBPath != "" {
		store, err := metrics.Open(cfg.Metrics.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open metrics store: %w", err)
		}
		e.store = store
	}

	e.catalog = catalog.New(providers,
		catalog.WithPricing(catalog.NewPricing(priceOverrides(cfg))),
		catalog.WithLogger(log),
	)

	routerOpts := []router.Option{
		router.WithActiveModel(cfg.Router.ActiveModel),
		router.WithAutoFallback(cfg.Router.AutoFallback),
		router.WithMaxCost(cfg.Router.MaxCost),
		router.WithPreferLocal(cfg.Router.PreferLocal),
		router.WithLogger(log),
	}
	if e.store != nil {
		routerOpts = append(routerOpts, router.WithRecorder(e.store))
	}
	e.router = router.New(e.catalog, routerOpts...)

	cc := cfg.Classifier
	classifierOpts := []intent.Option{
		intent.WithRouter(e.router),
		intent.WithCache(cache.New[intent.Result](cc.CacheCapacity, cc.CacheTTL)),
		intent.WithThresholds(cc.ConfidenceThreshold, cc.WarnThreshold),
		intent.WithMaxAttempts(cc.MaxAttempts),
		intent.WithTemperature(cc.Temperature),
		intent.WithMaxCost(cfg.Router.MaxCost),
		intent.WithLogger(log),
	}
	if e.store != nil {
		classifierOpts = append(classifierOpts, intent.WithRecorder(e.store))
	}
	e.classifier = intent.NewClassifier(classifierOpts...)

	sandbox, err := tools.NewSandbox(cfg.Orchestrator.WorkspaceDir)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	e.sandbox = sandbox

	e.registry = tools.NewRegistry(
		tools.WithTimeout(cfg.Orchestrator.ToolTimeout),
		tools.WithLogger(log),
	)
	if err := tools.RegisterFileTools(e.registry, sandbox); err != nil {
		e.Close()
		return nil, err
	}
	e.search = tools.NewWebSearchTool(
		tools.WithAPIKey(tavilyKey(cfg)),
		tools.WithSearchCache(cfg.Tools.SearchCacheSize, cfg.Tools.SearchCacheTTL),
		tools.WithSearchLogger(log),
	)
	if err := e.registry.Register(e.search); err != nil {
		e.Close()
		return nil, err
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithMaxToolCalls(cfg.Orchestrator.MaxToolCalls),
		orchestrator.WithNarrativeMaxTokens(cfg.Orchestrator.NarrativeMaxTokens),
		orchestrator.WithLogger(log),
	}
	if e.store != nil {
		orchOpts = append(orchOpts, orchestrator.WithRecorder(e.store))
	}
	e.orch = orchestrator.New(e.router, e.registry, orchOpts...)

	e.log.Debug().
		Int("providers", len(providers)).
		Str("workspace", sandbox.Root()).
		Bool("metrics", e.store != nil).
		Msg("engine assembled")

	return e, nil
}

func tavilyKey(cfg *config.Config) string {
	if cfg.Tools.TavilyAPIKey != "" {
		return cfg.Tools.TavilyAPIKey
	}
	return os.Getenv("TAVILY_API_KEY")
}

// priceOverrides flattens the per-provider price lists from the config.
func priceOverrides(cfg *config.Config) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	for _, p := range cfg.LLM.Providers {
		for _, price := range p.Pricing {
			if out[p.Name] == nil {
				out[p.Name] = make(map[string]float64)
			}
			out[p.Name][price.Model] = price.CostPer1K
		}
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════════
// OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// Refresh re-probes every provider. It reports whether any provider
// contributed models; otherwise the catalog is left empty.
func (e *Engine) Refresh(ctx context.Context) bool {
	return e.catalog.Refresh(ctx)
}

// Models returns the current catalog.
func (e *Engine) Models() []catalog.ModelDescriptor {
	return e.catalog.Models()
}

// Classify classifies one user message.
func (e *Engine) Classify(ctx context.Context, message, conversation string, activeTasks []intent.ActiveTask) intent.Result {
	return e.classifier.Classify(ctx, message, conversation, activeTasks)
}

// Select picks a model for taskType using the configured policy.
func (e *Engine) Select(taskType router.TaskType) *catalog.ModelDescriptor {
	return e.router.SelectForTask(taskType)
}

// SetActiveModel pins the model used when callers do not name one.
func (e *Engine) SetActiveModel(id string) {
	e.router.SetActiveModel(id)
}

// Generate sends a single prompt through the router.
func (e *Engine) Generate(ctx context.Context, prompt, model string, opts llm.Options) (*router.Completion, error) {
	c := e.router.GenerateResponse(ctx, prompt, model, opts)
	if c == nil {
		return nil, noCompletion(model)
	}
	return c, nil
}

// Chat sends a conversation through the router.
func (e *Engine) Chat(ctx context.Context, messages []llm.Message, model string, opts llm.Options) (*router.Completion, error) {
	c := e.router.ChatCompletion(ctx, messages, model, opts)
	if c == nil {
		return nil, noCompletion(model)
	}
	return c, nil
}

func noCompletion(model string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("no model produced a response")
	}
	return fmt.Errorf("no response from %s or its fallback", model)
}

// Execute runs a task through the orchestrator.
func (e *Engine) Execute(ctx context.Context, taskText, taskID string) *orchestrator.ExecutionTask {
	return e.orch.ExecuteTaskWithTools(ctx, taskText, taskID)
}

// ═══════════════════════════════════════════════════════════════════════════════
// INTROSPECTION
// ═══════════════════════════════════════════════════════════════════════════════

// Stats groups the in-process counters of every component.
type Stats struct {
	Router         router.RouterStats          `json:"router"`
	Classification intent.ClassificationStats  `json:"classification"`
	Execution      orchestrator.ExecutionStats `json:"execution"`
	Tools          tools.RegistryStats         `json:"tools"`
	SearchCache    cache.Stats                 `json:"search_cache"`
	Ledger         *metrics.Summary            `json:"ledger,omitempty"`
}

// Stats returns a snapshot of all counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		Router:         e.router.Stats(),
		Classification: e.classifier.Stats(),
		Execution:      e.orch.Stats(),
		Tools:          e.registry.Stats(),
		SearchCache:    e.search.CacheStats(),
	}
	if e.store != nil {
		summary := e.store.GetSummary()
		s.Ledger = &summary
	}
	return s
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config { return e.cfg }

// Router exposes the router.
func (e *Engine) Router() *router.Router { return e.router }

// Tools exposes the tool registry.
func (e *Engine) Tools() *tools.Registry { return e.registry }

// Workspace returns the sandbox root tool calls write into.
func (e *Engine) Workspace() string { return e.sandbox.Root() }

// Metrics returns the call ledger, or nil when metrics are disabled.
func (e *Engine) Metrics() *metrics.Store { return e.store }

// Close releases the metrics store.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	err := e.store.Close()
	e.store = nil
	return err
}
