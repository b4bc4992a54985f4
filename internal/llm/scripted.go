package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrScriptedFailure is returned by a ScriptedProvider configured to fail.
var ErrScriptedFailure = errors.New("scripted provider failure")

// ScriptedProvider is an in-process ProviderHandle with canned behavior.
// It backs offline runs and tests across the router, classifier and
// orchestrator packages.
type ScriptedProvider struct {
	name      string
	kind      Kind
	available bool
	models    []RawModel
	fail      bool
	replies   []string
	handler   func(model string, messages []Message) (string, error)

	mu    sync.Mutex
	calls []ScriptedCall
}

// ScriptedCall records one Generate or Chat invocation.
type ScriptedCall struct {
	Model    string
	Messages []Message
	Options  Options
}

// ScriptedOption configures a ScriptedProvider.
type ScriptedOption func(*ScriptedProvider)

// WithScriptedModels sets the models returned by ListModels.
func WithScriptedModels(models ...RawModel) ScriptedOption {
	return func(p *ScriptedProvider) {
		p.models = models
	}
}

// WithScriptedReplies queues replies returned in order. The last reply repeats.
func WithScriptedReplies(replies ...string) ScriptedOption {
	return func(p *ScriptedProvider) {
		p.replies = replies
	}
}

// WithScriptedHandler computes replies dynamically. It takes precedence over queued replies.
func WithScriptedHandler(fn func(model string, messages []Message) (string, error)) ScriptedOption {
	return func(p *ScriptedProvider) {
		p.handler = fn
	}
}

// WithScriptedFailure makes every Generate and Chat call fail.
func WithScriptedFailure() ScriptedOption {
	return func(p *ScriptedProvider) {
		p.fail = true
	}
}

// WithScriptedUnavailable makes IsAvailable report false.
func WithScriptedUnavailable() ScriptedOption {
	return func(p *ScriptedProvider) {
		p.available = false
	}
}

// NewScriptedProvider creates a scripted provider. It is available by default.
func NewScriptedProvider(name string, kind Kind, opts ...ScriptedOption) *ScriptedProvider {
	p := &ScriptedProvider{
		name:      name,
		kind:      kind,
		available: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ ProviderHandle = (*ScriptedProvider)(nil)

// Name returns the provider identifier.
func (p *ScriptedProvider) Name() string { return p.name }

// Kind returns the configured provider kind.
func (p *ScriptedProvider) Kind() Kind { return p.kind }

// IsAvailable reports the configured availability.
func (p *ScriptedProvider) IsAvailable(ctx context.Context) bool {
	return p.available && ctx.Err() == nil
}

// ListModels returns the scripted model records.
func (p *ScriptedProvider) ListModels(ctx context.Context) ([]RawModel, error) {
	if !p.available {
		return nil, ErrScriptedFailure
	}
	out := make([]RawModel, len(p.models))
	copy(out, p.models)
	return out, nil
}

// Generate records the call and returns the next scripted reply.
func (p *ScriptedProvider) Generate(ctx context.Context, prompt, model string, opts Options) (string, error) {
	return p.Chat(ctx, []Message{{Role: "user", Content: prompt}}, model, opts)
}

// Chat records the call and returns the next scripted reply.
func (p *ScriptedProvider) Chat(ctx context.Context, messages []Message, model string, opts Options) (string, error) {
	p.mu.Lock()
	idx := len(p.calls)
	p.calls = append(p.calls, ScriptedCall{Model: model, Messages: messages, Options: opts})
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.fail {
		return "", ErrScriptedFailure
	}
	if p.handler != nil {
		return p.handler(model, messages)
	}
	if len(p.replies) == 0 {
		return "", ErrEmptyResponse
	}
	if idx >= len(p.replies) {
		idx = len(p.replies) - 1
	}
	return nonEmpty(p.replies[idx])
}

// Calls returns a copy of the recorded calls.
func (p *ScriptedProvider) Calls() []ScriptedCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ScriptedCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns the number of Generate and Chat calls so far.
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// LastPrompt returns the content of the final message of the most recent call.
func (p *ScriptedProvider) LastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return ""
	}
	msgs := p.calls[len(p.calls)-1].Messages
	if len(msgs) == 0 {
		return ""
	}
	return strings.TrimSpace(msgs[len(msgs)-1].Content)
}
