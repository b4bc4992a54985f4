package metrics

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordCall(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordCall(ctx, CallRecord{
		Kind: CallChat, Provider: "ollama", Model: "llama3.1:8b", Local: true, LatencyMs: 100, Success: true,
	}))
	require.NoError(t, s.RecordCall(ctx, CallRecord{
		Kind: CallGenerate, Provider: "openai", Model: "gpt-4o-mini", LatencyMs: 300, ErrorMsg: "status 500",
	}))
	require.NoError(t, s.RecordCall(ctx, CallRecord{
		Kind: CallGenerate, Provider: "ollama", Model: "llama3.1:8b", Local: true, LatencyMs: 200, Success: true, Fallback: true,
	}))

	today, err := s.GetTodayStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), today.TotalCalls)
	assert.Equal(t, int64(2), today.SuccessfulCalls)
	assert.Equal(t, int64(1), today.FailedCalls)
	assert.Equal(t, int64(1), today.FallbackCalls)
	assert.InDelta(t, 200, today.AvgLatencyMs, 0.001)
	assert.InDelta(t, 66.666, today.LocalCallRate, 0.01)

	recent, err := s.GetRecentCalls(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].Fallback, "newest first")
	assert.Equal(t, "status 500", recent[1].ErrorMsg)
	assert.Equal(t, CallGenerate, recent[1].Kind)
	assert.False(t, recent[1].CreatedAt.IsZero())

	providers, err := s.GetProviderStats(ctx, 1)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "ollama", providers[0].Provider)
	assert.Equal(t, int64(2), providers[0].CallCount)
	assert.InDelta(t, 100, providers[0].SuccessRate, 0.001)
	assert.InDelta(t, 0, providers[1].SuccessRate, 0.001)

	sum := s.GetSummary()
	assert.Equal(t, int64(3), sum.TotalCalls)
	assert.Equal(t, int64(1), sum.FallbackCalls)
	assert.InDelta(t, 66.666, sum.SuccessRate, 0.01)
}

func TestStore_ClassificationsAndExecutions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, p := range []ClassificationPath{PathCache, PathModel, PathModel, PathHeuristic} {
		require.NoError(t, s.RecordClassification(ctx, p))
	}
	assert.Error(t, s.RecordClassification(ctx, "bogus"))

	require.NoError(t, s.RecordExecution(ctx, true, 3))
	require.NoError(t, s.RecordExecution(ctx, false, 2))

	today, err := s.GetTodayStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), today.Classifications)
	assert.Equal(t, int64(1), today.CacheClassifications)
	assert.Equal(t, int64(2), today.ModelClassifications)
	assert.Equal(t, int64(1), today.HeuristicClassifications)
	assert.Equal(t, int64(2), today.Executions)
	assert.Equal(t, int64(1), today.SuccessfulExecutions)
	assert.Equal(t, int64(5), today.ToolsExecuted)
	assert.Zero(t, today.TotalCalls)

	sum := s.GetSummary()
	assert.Equal(t, int64(4), sum.Classifications)
	assert.Equal(t, int64(2), sum.Executions)

	s.Reset()
	assert.Equal(t, Summary{}, s.GetSummary())
}

func TestStore_EmptyDay(t *testing.T) {
	s := openTestStore(t)
	stats, err := s.GetDailyStats(context.Background(), "1999-01-01")
	require.NoError(t, err)
	assert.Equal(t, "1999-01-01", stats.Date)
	assert.Zero(t, stats.TotalCalls)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordExecution(ctx, true, 1))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	today, err := s.GetTodayStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), today.Executions, "daily aggregates persist")
	assert.Zero(t, s.GetSummary().Executions, "in-memory counters start fresh")
}

func TestStore_BuildReport(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordCall(ctx, CallRecord{Kind: CallChat, Provider: "ollama", Model: "llama3.1:8b", Local: true, LatencyMs: 120, Success: true}))
	require.NoError(t, s.RecordCall(ctx, CallRecord{Kind: CallGenerate, Provider: "openai", Model: "gpt-4o-mini", LatencyMs: 400, ErrorMsg: "timeout"}))
	require.NoError(t, s.RecordExecution(ctx, true, 2))

	r, err := s.BuildReport(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.Today.TotalCalls)
	assert.Len(t, r.Providers, 2)
	require.Len(t, r.Recent, 1)
}
