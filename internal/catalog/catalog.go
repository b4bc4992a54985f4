package catalog

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/normanking/conductor/internal/llm"
	"github.com/normanking/conductor/internal/logging"
)

// Snapshot is an immutable view of the catalog. Readers hold on to a
// snapshot for the duration of a decision; refresh never mutates one.
type Snapshot struct {
	Models      []ModelDescriptor `json:"models"`
	RefreshedAt time.Time         `json:"refreshed_at"`

	// Sources lists the providers that contributed, in configured order.
	Sources []string `json:"sources"`

	byID map[string]int
}

func newSnapshot(models []ModelDescriptor, sources []string) *Snapshot {
	s := &Snapshot{
		Models:      models,
		RefreshedAt: time.Now(),
		Sources:     sources,
		byID:        make(map[string]int, len(models)),
	}
	for i, m := range models {
		s.byID[m.ID] = i
	}
	return s
}

// Lookup returns the descriptor with the given id.
func (s *Snapshot) Lookup(id string) (ModelDescriptor, bool) {
	i, ok := s.byID[id]
	if !ok {
		return ModelDescriptor{}, false
	}
	return s.Models[i], true
}

// Len returns the number of models in the snapshot.
func (s *Snapshot) Len() int { return len(s.Models) }

// ═══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ═══════════════════════════════════════════════════════════════════════════════

// Catalog owns the provider handles and the current model snapshot.
type Catalog struct {
	providers    []llm.ProviderHandle
	byName       map[string]llm.ProviderHandle
	pricing      *Pricing
	probeTimeout time.Duration
	parallelism  int
	log          zerolog.Logger

	current atomic.Pointer[Snapshot]
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithPricing sets the price resolver used when mapping models.
func WithPricing(p *Pricing) Option {
	return func(c *Catalog) {
		c.pricing = p
	}
}

// WithProbeTimeout bounds how long one provider may take to answer
// IsAvailable and ListModels during a refresh.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Catalog) {
		c.probeTimeout = d
	}
}

// WithParallelism limits concurrent provider probes. Zero means one
// goroutine per provider.
func WithParallelism(n int) Option {
	return func(c *Catalog) {
		c.parallelism = n
	}
}

// WithLogger sets the catalog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Catalog) {
		c.log = logging.Component(l, "catalog")
	}
}

// New creates a catalog over the given providers. The catalog starts empty;
// call Refresh to populate it.
func New(providers []llm.ProviderHandle, opts ...Option) *Catalog {
	c := &Catalog{
		providers:    providers,
		byName:       make(map[string]llm.ProviderHandle, len(providers)),
		pricing:      NewPricing(nil),
		probeTimeout: 15 * time.Second,
		log:          logging.Nop(),
	}
	for _, p := range providers {
		c.byName[p.Name()] = p
	}
	for _, opt := range opts {
		opt(c)
	}
	c.current.Store(newSnapshot(nil, nil))
	return c
}

// providerResult is one provider's contribution to a refresh.
type providerResult struct {
	name   string
	models []ModelDescriptor
}

// Refresh probes every provider concurrently and swaps in a new snapshot.
// It returns true when at least one provider contributed models. When no
// provider contributes, the catalog becomes empty so nothing is dispatched
// to providers that just failed their probe.
func (c *Catalog) Refresh(ctx context.Context) bool {
	results := make([]providerResult, len(c.providers))

	// Probe errors never cancel siblings, so the group context is unused.
	var g errgroup.Group
	if c.parallelism > 0 {
		g.SetLimit(c.parallelism)
	}
	for i, p := range c.providers {
		i, p := i, p
		g.Go(func() error {
			results[i] = c.probe(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	var (
		models  []ModelDescriptor
		sources []string
		seen    = make(map[string]struct{})
	)
	for _, r := range results {
		if len(r.models) == 0 {
			continue
		}
		sources = append(sources, r.name)
		for _, m := range r.models {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			models = append(models, m)
		}
	}

	c.current.Store(newSnapshot(models, sources))
	if len(sources) == 0 {
		c.log.Warn().Int("providers", len(c.providers)).Msg("no provider contributed models, catalog is empty")
		return false
	}

	c.log.Info().
		Int("models", len(models)).
		Strs("sources", sources).
		Msg("catalog refreshed")
	return true
}

// probe asks one provider for its models. Failures are logged and yield
// an empty result.
func (c *Catalog) probe(ctx context.Context, p llm.ProviderHandle) providerResult {
	res := providerResult{name: p.Name()}

	if c.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.probeTimeout)
		defer cancel()
	}

	if !p.IsAvailable(ctx) {
		c.log.Debug().Str("provider", p.Name()).Msg("provider unavailable")
		return res
	}

	raw, err := p.ListModels(ctx)
	if err != nil {
		c.log.Warn().Err(err).Str("provider", p.Name()).Msg("list models failed")
		return res
	}

	for _, r := range raw {
		if r.Name == "" || IsEmbeddingModel(r.Name) {
			continue
		}
		res.models = append(res.models, c.describe(p, r))
	}
	return res
}

// describe maps a raw provider record into a descriptor.
func (c *Catalog) describe(p llm.ProviderHandle, raw llm.RawModel) ModelDescriptor {
	size := EstimateSize(raw)
	display := raw.DisplayName
	if display == "" {
		display = raw.Name
	}
	return ModelDescriptor{
		ID:              QualifiedID(p.Name(), raw.Name),
		Name:            raw.Name,
		DisplayName:     display,
		Provider:        p.Name(),
		ProviderKind:    p.Kind(),
		CapabilityTags:  InferTags(raw, size),
		ContextLength:   raw.ContextLength,
		CostPer1KTokens: c.pricing.Cost(p.Name(), p.Kind(), raw.Name),
		SizeMetric:      size,
		RawMetadata:     raw.Metadata,
	}
}

// Snapshot returns the current snapshot. It is never nil.
func (c *Catalog) Snapshot() *Snapshot {
	return c.current.Load()
}

// Models returns the current descriptors. Callers must not modify them.
func (c *Catalog) Models() []ModelDescriptor {
	return c.current.Load().Models
}

// Lookup finds a model by id in the current snapshot.
func (c *Catalog) Lookup(id string) (ModelDescriptor, bool) {
	return c.current.Load().Lookup(id)
}

// Provider returns the handle registered under name.
func (c *Catalog) Provider(name string) (llm.ProviderHandle, bool) {
	p, ok := c.byName[name]
	return p, ok
}

// ProviderNames returns the configured provider names in order.
func (c *Catalog) ProviderNames() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Replace installs a snapshot built from the given descriptors. Tags are
// normalized to sorted order and duplicate ids keep the first occurrence.
func (c *Catalog) Replace(models []ModelDescriptor) {
	var (
		out     = make([]ModelDescriptor, 0, len(models))
		sources []string
		seen    = make(map[string]struct{})
		seenSrc = make(map[string]struct{})
	)
	for _, m := range models {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		tags := append([]string(nil), m.CapabilityTags...)
		sort.Strings(tags)
		m.CapabilityTags = tags
		out = append(out, m)
		if _, ok := seenSrc[m.Provider]; !ok {
			seenSrc[m.Provider] = struct{}{}
			sources = append(sources, m.Provider)
		}
	}
	c.current.Store(newSnapshot(out, sources))
}
