package intent

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/conductor/internal/cache"
	"github.com/normanking/conductor/internal/catalog"
	"github.com/normanking/conductor/internal/llm"
	"github.com/normanking/conductor/internal/logging"
	"github.com/normanking/conductor/internal/metrics"
	"github.com/normanking/conductor/internal/router"
)

const (
	// DefaultConfidenceThreshold accepts a model result outright.
	DefaultConfidenceThreshold = 0.7

	// DefaultWarnThreshold is the exclusive lower bound for accepting a
	// model result with a warning.
	DefaultWarnThreshold = 0.5

	// DefaultMaxAttempts bounds model calls per classification.
	DefaultMaxAttempts = 2

	// DefaultTemperature favors deterministic replies.
	DefaultTemperature = 0.1

	// fingerprintRunes is how much of the message and context form the cache key.
	fingerprintRunes = 100

	replyMaxTokens = 500
)

// ModelRouter is the part of the router the classifier needs.
type ModelRouter interface {
	SelectBestModel(taskType router.TaskType, maxCost float64, preferLocal bool) *catalog.ModelDescriptor
	ChatCompletion(ctx context.Context, messages []llm.Message, model string, opts llm.Options) *router.Completion
}

var _ ModelRouter = (*router.Router)(nil)

// Recorder receives one record per classification. The metrics store
// implements it.
type Recorder interface {
	RecordClassification(ctx context.Context, path metrics.ClassificationPath) error
}

// Classifier turns user messages into classification results. It is safe
// for concurrent use.
type Classifier struct {
	router    ModelRouter
	heuristic *HeuristicClassifier
	cache     *cache.Cache[Result]
	recorder  Recorder
	log       zerolog.Logger

	threshold     float64
	warnThreshold float64
	maxAttempts   int
	temperature   float64
	maxCost       float64

	mu    sync.Mutex
	stats ClassificationStats
}

// Option is a functional option for configuring Classifier.
type Option func(*Classifier)

// WithRouter enables the model path. Without a router only the heuristic runs.
func WithRouter(r ModelRouter) Option {
	return func(c *Classifier) {
		c.router = r
	}
}

// WithCache replaces the default result cache.
func WithCache(rc *cache.Cache[Result]) Option {
	return func(c *Classifier) {
		c.cache = rc
	}
}

// WithThresholds sets the accept and warn confidence thresholds.
func WithThresholds(accept, warn float64) Option {
	return func(c *Classifier) {
		c.threshold = accept
		c.warnThreshold = warn
	}
}

// WithMaxAttempts sets how many model calls one classification may make.
func WithMaxAttempts(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithTemperature sets the model temperature.
func WithTemperature(t float64) Option {
	return func(c *Classifier) {
		c.temperature = t
	}
}

// WithMaxCost sets the cost ceiling for the classifier model.
func WithMaxCost(maxCost float64) Option {
	return func(c *Classifier) {
		c.maxCost = maxCost
	}
}

// WithRecorder sends one record per classification to rec.
func WithRecorder(rec Recorder) Option {
	return func(c *Classifier) {
		c.recorder = rec
	}
}

// WithLogger sets the classifier logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Classifier) {
		c.log = logging.Component(l, "intent")
	}
}

// NewClassifier creates a classifier with a 1000-entry, one-hour cache.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		heuristic:     NewHeuristicClassifier(),
		log:           logging.Nop(),
		threshold:     DefaultConfidenceThreshold,
		warnThreshold: DefaultWarnThreshold,
		maxAttempts:   DefaultMaxAttempts,
		temperature:   DefaultTemperature,
		maxCost:       router.DefaultMaxCost,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = cache.New[Result](cache.DefaultCapacity, cache.DefaultTTL)
	}
	return c
}

// Classify returns the intention of message. It never fails: a cached
// result is returned unchanged, then the model is tried, then the
// heuristic answers.
func (c *Classifier) Classify(ctx context.Context, message, conversation string, activeTasks []ActiveTask) Result {
	key := cache.Fingerprint(fingerprintRunes, message, conversation)
	c.count(func(s *ClassificationStats) { s.Total++ })

	if cached, ok := c.cache.Get(key); ok {
		c.count(func(s *ClassificationStats) { s.CacheHits++ })
		c.record(ctx, metrics.PathCache)
		c.log.Debug().Str("key", cache.String(key)).Msg("classification cache hit")
		return cached
	}

	res, ok := c.classifyWithModel(ctx, message, conversation, activeTasks)
	path := metrics.PathModel
	if ok {
		res.ExtractedEntities = res.ExtractedEntities.Merge(ExtractEntities(message, res.Category))
		c.count(func(s *ClassificationStats) { s.ModelResults++ })
	} else {
		res = c.heuristic.Classify(message)
		path = metrics.PathHeuristic
		c.count(func(s *ClassificationStats) { s.HeuristicResults++ })
	}
	res.ClassifiedAt = time.Now()

	c.cache.Put(key, res)
	c.record(ctx, path)

	c.log.Debug().
		Str("category", res.Category.String()).
		Float64("confidence", res.Confidence).
		Str("source", string(res.Source)).
		Msg("message classified")
	return res
}

// classifyWithModel runs the bounded model attempts. It reports false
// when the heuristic should answer instead.
func (c *Classifier) classifyWithModel(ctx context.Context, message, conversation string, activeTasks []ActiveTask) (Result, bool) {
	if c.router == nil {
		return Result{}, false
	}

	model := c.router.SelectBestModel(router.TaskAnalysis, c.maxCost, false)
	if model == nil {
		c.log.Debug().Msg("no model available, using heuristic")
		return Result{}, false
	}

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: BuildPrompt(message, conversation, activeTasks)},
	}
	opts := llm.Options{Temperature: c.temperature, MaxTokens: replyMaxTokens}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return Result{}, false
		}

		completion := c.router.ChatCompletion(ctx, messages, model.ID, opts)
		if completion == nil {
			c.log.Debug().Int("attempt", attempt).Str("model", model.ID).Msg("classification call returned nothing")
			continue
		}

		res, err := ParseResult(completion.Text)
		if err != nil {
			c.count(func(s *ClassificationStats) { s.ParseFailures++ })
			c.log.Debug().Err(err).Int("attempt", attempt).Msg("unparseable classification reply")
			continue
		}
		res.ModelID = completion.ModelID

		switch {
		case res.Confidence >= c.threshold:
			return res, true
		case res.Confidence > c.warnThreshold:
			c.count(func(s *ClassificationStats) { s.LowConfidenceAccepts++ })
			c.log.Warn().
				Float64("confidence", res.Confidence).
				Str("category", res.Category.String()).
				Msg("accepting low-confidence classification")
			return res, true
		default:
			c.log.Debug().Float64("confidence", res.Confidence).Int("attempt", attempt).Msg("confidence too low, retrying")
		}
	}
	return Result{}, false
}

func (c *Classifier) count(fn func(*ClassificationStats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

func (c *Classifier) record(ctx context.Context, path metrics.ClassificationPath) {
	if c.recorder == nil {
		return
	}
	ctx, cancel := logging.DetachContextWithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.recorder.RecordClassification(ctx, path); err != nil {
		c.log.Debug().Err(err).Msg("failed to record classification")
	}
}

// Stats returns a snapshot of the classifier counters and cache state.
func (c *Classifier) Stats() ClassificationStats {
	c.mu.Lock()
	stats := c.stats
	c.mu.Unlock()

	cs := c.cache.Stats()
	stats.CacheSize = cs.Size
	stats.CacheCapacity = cs.Capacity
	stats.CacheTTL = cs.TTL
	stats.ConfidenceThreshold = c.threshold
	return stats
}
