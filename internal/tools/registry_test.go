package tools

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTool is a configurable Tool for registry tests.
type stubTool struct {
	name     string
	risk     RiskLevel
	validate error
	run      func(ctx context.Context, params Params) (string, error)
}

func (s *stubTool) Name() string { return s.name }
func (s *stubTool) Description() string { return "stub " + s.name }
func (s *stubTool) Parameters() string { return `{}` }
func (s *stubTool) Validate(Params) error { return s.validate }
func (s *stubTool) AssessRisk(Params) RiskLevel { return s.risk }
func (s *stubTool) Execute(ctx context.Context, p Params) (string, error) {
	return s.run(ctx, p)
}

func echoTool(name string) *stubTool {
	return &stubTool{name: name, run: func(_ context.Context, p Params) (string, error) {
		return "echo:" + p.String("text"), nil
	}}
}

func TestRegistry_RegisterAndDescribe(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("b")))
	require.NoError(t, r.Register(echoTool("a")))
	assert.Error(t, r.Register(echoTool("a")), "duplicate names are rejected")

	assert.Equal(t, []string{"b", "a"}, r.Names())

	tool, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", tool.Name())

	desc := r.Describe()
	require.Len(t, desc, 2)
	assert.Equal(t, "b", desc[0].Name)
	assert.Equal(t, "stub b", desc[0].Description)
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))

	res := r.Execute(context.Background(), "echo", Params{"text": "hi"})
	assert.True(t, res.Success)
	assert.Equal(t, "echo:hi", res.Payload)
	assert.Empty(t, res.Error)

	res = r.Execute(context.Background(), "echo", nil)
	assert.True(t, res.Success)
	assert.Equal(t, "echo:", res.Payload)
}

func TestRegistry_Failures(t *testing.T) {
	r := NewRegistry(WithTimeout(50 * time.Millisecond))
	require.NoError(t, r.Register(&stubTool{name: "invalid", validate: errors.New("bad params")}))
	require.NoError(t, r.Register(&stubTool{name: "risky", risk: RiskHigh, run: func(context.Context, Params) (string, error) {
		t.Error("risky tool must not run")
		return "", nil
	}}))
	require.NoError(t, r.Register(&stubTool{name: "broken", run: func(context.Context, Params) (string, error) {
		return "", errors.New("disk full")
	}}))
	require.NoError(t, r.Register(&stubTool{name: "panics", run: func(context.Context, Params) (string, error) {
		panic("boom")
	}}))
	require.NoError(t, r.Register(&stubTool{name: "slow", run: func(context.Context, Params) (string, error) {
		time.Sleep(time.Second)
		return "late", nil
	}}))

	tests := []struct {
		tool    string
		errText string
	}{
		{"missing", "unknown tool: missing"},
		{"invalid", "validation failed: bad params"},
		{"risky", "risk level exceeds policy: high"},
		{"broken", "disk full"},
		{"panics", "tool panics panicked: boom"},
		{"slow", "context deadline exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			res := r.Execute(context.Background(), tt.tool, Params{})
			assert.False(t, res.Success)
			assert.Empty(t, res.Payload)
			assert.Contains(t, res.Error, tt.errText)
		})
	}

	stats := r.Stats()
	assert.Equal(t, int64(3), stats.TotalExecutions)
	assert.Equal(t, int64(0), stats.SuccessCount)
	assert.Equal(t, int64(5), stats.FailureCount)
	assert.Equal(t, int64(1), stats.BlockedCount)
	assert.Equal(t, int64(1), stats.PanicCount)
	assert.Equal(t, int64(1), stats.TimeoutCount)
}

func TestRegistry_MaxRisk(t *testing.T) {
	r := NewRegistry(WithMaxRisk(RiskHigh))
	require.NoError(t, r.Register(&stubTool{name: "risky", risk: RiskHigh, run: func(context.Context, Params) (string, error) {
		return "ran", nil
	}}))

	res := r.Execute(context.Background(), "risky", nil)
	assert.True(t, res.Success)
	assert.Equal(t, RiskHigh, res.Risk)
}

func TestRegistry_CancelledContext(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubTool{name: "wait", run: func(ctx context.Context, _ Params) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := r.Execute(ctx, "wait", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "context canceled")
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, r.Execute(context.Background(), "echo", Params{"text": "x"}).Success)
		}()
	}
	wg.Wait()

	stats := r.Stats()
	assert.Equal(t, int64(25), stats.TotalExecutions)
	assert.Equal(t, int64(25), stats.SuccessCount)
	assert.Equal(t, 100.0, stats.SuccessRate())
}

func TestParams(t *testing.T) {
	p := Params{"s": "text", "n": float64(3), "b": true, "sb": "true", "ns": "7"}

	assert.Equal(t, "text", p.String("s"))
	assert.Equal(t, "3", p.String("n"))
	assert.Equal(t, "true", p.String("b"))
	assert.Equal(t, "", p.String("missing"))

	assert.Equal(t, 3, p.Int("n", 0))
	assert.Equal(t, 7, p.Int("ns", 0))
	assert.Equal(t, 9, p.Int("s", 9))

	assert.True(t, p.Bool("b"))
	assert.True(t, p.Bool("sb"))
	assert.False(t, p.Bool("missing"))
}

func TestRiskLevel_String(t *testing.T) {
	assert.Equal(t, "none", RiskNone.String())
	assert.Equal(t, "medium", RiskMedium.String())
	assert.Equal(t, "critical", RiskCritical.String())
	assert.Equal(t, "unknown", RiskLevel(42).String())
}
