// Package metrics provides the SQLite call ledger behind `conductor stats`.
// It records model calls, classification paths and execution outcomes.
// Task text is never stored.
package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ═══════════════════════════════════════════════════════════════════════════════
// METRICS TYPES
// ═══════════════════════════════════════════════════════════════════════════════

// CallKind categorizes a model call.
type CallKind string

const (
	CallGenerate CallKind = "generate"
	CallChat     CallKind = "chat"
)

// ClassificationPath names where a classification result came from.
type ClassificationPath string

const (
	PathCache     ClassificationPath = "cache"
	PathModel     ClassificationPath = "model"
	PathHeuristic ClassificationPath = "heuristic"
)

// CallRecord records a single model call.
type CallRecord struct {
	ID        int64     `json:"id"`
	Kind      CallKind  `json:"kind"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Local     bool      `json:"local"`
	LatencyMs int64     `json:"latency_ms"`
	Success   bool      `json:"success"`
	Fallback  bool      `json:"fallback"`
	ErrorMsg  string    `json:"error_msg,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DailyStats contains aggregated metrics for a single day.
type DailyStats struct {
	Date string `json:"date"` // YYYY-MM-DD

	TotalCalls      int64   `json:"total_calls"`
	SuccessfulCalls int64   `json:"successful_calls"`
	FailedCalls     int64   `json:"failed_calls"`
	FallbackCalls   int64   `json:"fallback_calls"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	LocalCallRate   float64 `json:"local_call_rate"` // % calls served by local models

	Classifications          int64 `json:"classifications"`
	CacheClassifications     int64 `json:"cache_classifications"`
	ModelClassifications     int64 `json:"model_classifications"`
	HeuristicClassifications int64 `json:"heuristic_classifications"`

	Executions           int64 `json:"executions"`
	SuccessfulExecutions int64 `json:"successful_executions"`
	ToolsExecuted        int64 `json:"tools_executed"`
}

// ProviderStats contains per-provider metrics.
type ProviderStats struct {
	Provider     string  `json:"provider"`
	CallCount    int64   `json:"call_count"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Summary is the in-process view of the ledger since the store was opened.
type Summary struct {
	TotalCalls    int64   `json:"total_calls"`
	SuccessRate   float64 `json:"success_rate"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	LocalCallRate float64 `json:"local_call_rate"`
	FallbackCalls int64   `json:"fallback_calls"`

	Classifications int64 `json:"classifications"`
	Executions      int64 `json:"executions"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// METRICS STORE
// ═══════════════════════════════════════════════════════════════════════════════

// Store provides SQLite-backed metrics storage.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	// In-memory counters for the process lifetime
	callCount       int64
	successCount    int64
	totalLatencyMs  int64
	localCalls      int64
	fallbackCalls   int64
	classifications int64
	executions      int64
}

// Open opens (or creates) the ledger database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create metrics directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open metrics database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore creates a metrics store using the provided database connection.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}

	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics schema: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// initSchema creates the metrics tables if they don't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS model_calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		local BOOLEAN NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL,
		success BOOLEAN NOT NULL,
		fallback BOOLEAN NOT NULL DEFAULT 0,
		error_msg TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_model_calls_created_at ON model_calls(created_at);
	CREATE INDEX IF NOT EXISTS idx_model_calls_provider ON model_calls(provider);

	CREATE TABLE IF NOT EXISTS metrics_daily (
		date TEXT PRIMARY KEY,
		total_calls INTEGER DEFAULT 0,
		successful_calls INTEGER DEFAULT 0,
		failed_calls INTEGER DEFAULT 0,
		fallback_calls INTEGER DEFAULT 0,
		total_latency_ms INTEGER DEFAULT 0,
		local_calls INTEGER DEFAULT 0,
		cache_classifications INTEGER DEFAULT 0,
		model_classifications INTEGER DEFAULT 0,
		heuristic_classifications INTEGER DEFAULT 0,
		executions INTEGER DEFAULT 0,
		successful_executions INTEGER DEFAULT 0,
		tools_executed INTEGER DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// ═══════════════════════════════════════════════════════════════════════════════
// RECORDING METHODS
// ═══════════════════════════════════════════════════════════════════════════════

// RecordCall records a single model call and folds it into today's aggregate.
func (s *Store) RecordCall(ctx context.Context, rec CallRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO model_calls (kind, provider, model, local, latency_ms, success, fallback, error_msg, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(rec.Kind), rec.Provider, rec.Model, rec.Local, rec.LatencyMs,
		rec.Success, rec.Fallback, rec.ErrorMsg, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record call: %w", err)
	}

	s.callCount++
	if rec.Success {
		s.successCount++
	}
	s.totalLatencyMs += rec.LatencyMs
	if rec.Local {
		s.localCalls++
	}
	if rec.Fallback {
		s.fallbackCalls++
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO metrics_daily (date, total_calls, successful_calls, failed_calls, fallback_calls, total_latency_ms, local_calls)
		VALUES (?, 1, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_calls = total_calls + 1,
			successful_calls = successful_calls + excluded.successful_calls,
			failed_calls = failed_calls + excluded.failed_calls,
			fallback_calls = fallback_calls + excluded.fallback_calls,
			total_latency_ms = total_latency_ms + excluded.total_latency_ms,
			local_calls = local_calls + excluded.local_calls,
			updated_at = CURRENT_TIMESTAMP
	`, dayOf(rec.CreatedAt), boolToInt(rec.Success), boolToInt(!rec.Success),
		boolToInt(rec.Fallback), rec.LatencyMs, boolToInt(rec.Local))
	if err != nil {
		return fmt.Errorf("update daily call stats: %w", err)
	}
	return nil
}

// RecordClassification counts one classification by the path that produced it.
func (s *Store) RecordClassification(ctx context.Context, path ClassificationPath) error {
	var column string
	switch path {
	case PathCache:
		column = "cache_classifications"
	case PathModel:
		column = "model_classifications"
	case PathHeuristic:
		column = "heuristic_classifications"
	default:
		return fmt.Errorf("unknown classification path: %q", path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.classifications++

	// column comes from the switch above, never from input
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO metrics_daily (date, %[1]s)
		VALUES (?, 1)
		ON CONFLICT(date) DO UPDATE SET
			%[1]s = %[1]s + 1,
			updated_at = CURRENT_TIMESTAMP
	`, column), dayOf(time.Now()))
	if err != nil {
		return fmt.Errorf("record classification: %w", err)
	}
	return nil
}

// RecordExecution counts one orchestrated task.
func (s *Store) RecordExecution(ctx context.Context, success bool, toolsExecuted int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions++

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metrics_daily (date, executions, successful_executions, tools_executed)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			executions = executions + 1,
			successful_executions = successful_executions + excluded.successful_executions,
			tools_executed = tools_executed + excluded.tools_executed,
			updated_at = CURRENT_TIMESTAMP
	`, dayOf(time.Now()), boolToInt(success), toolsExecuted)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// QUERY METHODS
// ═══════════════════════════════════════════════════════════════════════════════

// GetDailyStats returns stats for the specified date (YYYY-MM-DD).
func (s *Store) GetDailyStats(ctx context.Context, date string) (*DailyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &DailyStats{Date: date}
	var totalLatency, localCalls int64

	err := s.db.QueryRowContext(ctx, `
		SELECT total_calls, successful_calls, failed_calls, fallback_calls, total_latency_ms, local_calls,
		       cache_classifications, model_classifications, heuristic_classifications,
		       executions, successful_executions, tools_executed
		FROM metrics_daily WHERE date = ?
	`, date).Scan(
		&stats.TotalCalls, &stats.SuccessfulCalls, &stats.FailedCalls, &stats.FallbackCalls,
		&totalLatency, &localCalls,
		&stats.CacheClassifications, &stats.ModelClassifications, &stats.HeuristicClassifications,
		&stats.Executions, &stats.SuccessfulExecutions, &stats.ToolsExecuted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}

	stats.Classifications = stats.CacheClassifications + stats.ModelClassifications + stats.HeuristicClassifications
	if stats.TotalCalls > 0 {
		stats.AvgLatencyMs = float64(totalLatency) / float64(stats.TotalCalls)
		stats.LocalCallRate = float64(localCalls) / float64(stats.TotalCalls) * 100
	}
	return stats, nil
}

// GetTodayStats returns stats for today.
func (s *Store) GetTodayStats(ctx context.Context) (*DailyStats, error) {
	return s.GetDailyStats(ctx, dayOf(time.Now()))
}

// GetProviderStats returns per-provider statistics for the last N days.
func (s *Store) GetProviderStats(ctx context.Context, days int) ([]ProviderStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := time.Now().UTC().AddDate(0, 0, -days)

	rows, err := s.db.QueryContext(ctx, `
		SELECT provider,
		       COUNT(*) AS call_count,
		       SUM(CASE WHEN success THEN 1 ELSE 0 END) * 100.0 / COUNT(*) AS success_rate,
		       AVG(latency_ms) AS avg_latency
		FROM model_calls
		WHERE created_at >= ?
		GROUP BY provider
		ORDER BY call_count DESC, provider ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query provider stats: %w", err)
	}
	defer rows.Close()

	var stats []ProviderStats
	for rows.Next() {
		var ps ProviderStats
		if err := rows.Scan(&ps.Provider, &ps.CallCount, &ps.SuccessRate, &ps.AvgLatencyMs); err != nil {
			return nil, err
		}
		stats = append(stats, ps)
	}
	return stats, rows.Err()
}

// GetRecentCalls returns the most recent calls, newest first.
func (s *Store) GetRecentCalls(ctx context.Context, limit int) ([]CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, provider, model, local, latency_ms, success, fallback, error_msg, created_at
		FROM model_calls
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent calls: %w", err)
	}
	defer rows.Close()

	var calls []CallRecord
	for rows.Next() {
		var (
			rec      CallRecord
			kind     string
			errorMsg sql.NullString
		)
		if err := rows.Scan(&rec.ID, &kind, &rec.Provider, &rec.Model, &rec.Local,
			&rec.LatencyMs, &rec.Success, &rec.Fallback, &errorMsg, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Kind = CallKind(kind)
		rec.ErrorMsg = errorMsg.String
		calls = append(calls, rec)
	}
	return calls, rows.Err()
}

// ═══════════════════════════════════════════════════════════════════════════════
// SUMMARY METHODS
// ═══════════════════════════════════════════════════════════════════════════════

// GetSummary returns a quick summary of the in-process counters.
func (s *Store) GetSummary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{
		TotalCalls:      s.callCount,
		FallbackCalls:   s.fallbackCalls,
		Classifications: s.classifications,
		Executions:      s.executions,
	}
	if s.callCount > 0 {
		n := float64(s.callCount)
		sum.AvgLatencyMs = float64(s.totalLatencyMs) / n
		sum.SuccessRate = float64(s.successCount) / n * 100
		sum.LocalCallRate = float64(s.localCalls) / n * 100
	}
	return sum
}

// BuildReport gathers today's totals, per-provider stats over days and the
// last recent calls.
func (s *Store) BuildReport(ctx context.Context, days, recent int) (*Report, error) {
	today, err := s.GetTodayStats(ctx)
	if err != nil {
		return nil, err
	}
	providers, err := s.GetProviderStats(ctx, days)
	if err != nil {
		return nil, err
	}
	calls, err := s.GetRecentCalls(ctx, recent)
	if err != nil {
		return nil, err
	}
	return &Report{Today: today, Providers: providers, Recent: calls}, nil
}

// Reset clears in-memory counters (for testing).
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callCount = 0
	s.successCount = 0
	s.totalLatencyMs = 0
	s.localCalls = 0
	s.fallbackCalls = 0
	s.classifications = 0
	s.executions = 0
}

func dayOf(t time.Time) string {
	return t.Format("2006-01-02")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
