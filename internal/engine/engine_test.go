package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/conductor/internal/config"
	"github.com/normanking/conductor/internal/intent"
	"github.com/normanking/conductor/internal/llm"
	"github.com/normanking/conductor/internal/orchestrator"
	"github.com/normanking/conductor/internal/router"
)

const classification = `{"category": "complex_task", "confidence": 0.9, "reasoning": "multi-step work", "suggested_action": "execute_task"}`

// testConfig keeps every path inside a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Orchestrator.WorkspaceDir = filepath.Join(dir, "workspace")
	cfg.Metrics.DBPath = filepath.Join(dir, "metrics.db")
	cfg.Logging.File = ""
	return cfg
}

// scripted answers each phase of the pipeline differently.
func scripted() *llm.ScriptedProvider {
	return llm.NewScriptedProvider("ollama", llm.KindLocal,
		llm.WithScriptedModels(
			llm.RawModel{Name: "llama3.1:8b", Family: "llama", ParameterSize: "8.0B"},
			llm.RawModel{Name: "qwen2.5-coder:1.5b", Family: "qwen2", ParameterSize: "1.5B"},
		),
		llm.WithScriptedHandler(func(_ string, msgs []llm.Message) (string, error) {
			prompt := msgs[len(msgs)-1].Content
			switch {
			case strings.Contains(prompt, "Classify the user's message"):
				return classification, nil
			case strings.Contains(prompt, "## Available tools"):
				return `<tool_call>{"tool": "file_write", "parameters": {"path": "notes/todo.md", "content": "- ship it"}}</tool_call>`, nil
			default:
				return "Wrote notes/todo.md.", nil
			}
		}),
	)
}

func newTestEngine(t *testing.T, cfg *config.Config, providers ...llm.ProviderHandle) *Engine {
	t.Helper()
	e, err := New(cfg, WithProviders(providers...))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngine_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEngine(t, cfg, scripted())
	ctx := context.Background()

	require.True(t, e.Refresh(ctx))
	assert.Len(t, e.Models(), 2)

	general := e.Select(router.TaskGeneral)
	require.NotNil(t, general)
	assert.Equal(t, "ollama/llama3.1:8b", general.ID)

	code := e.Select(router.TaskCode)
	require.NotNil(t, code)
	assert.Equal(t, "ollama/qwen2.5-coder:1.5b", code.ID)

	res := e.Classify(ctx, "Build a sales dashboard for the last six months", "", nil)
	assert.Equal(t, intent.CategoryComplexTask, res.Category)
	assert.Equal(t, intent.SourceModel, res.Source)

	task := e.Execute(ctx, "Write my todo notes", "t-1")
	assert.True(t, task.Success)
	assert.False(t, task.Forced)
	assert.Equal(t, "Wrote notes/todo.md.", task.FinalNarrative)

	data, err := os.ReadFile(filepath.Join(e.Workspace(), orchestrator.TaskDir("Write my todo notes", "t-1"), "notes", "todo.md"))
	require.NoError(t, err)
	assert.Equal(t, "- ship it", string(data))

	stats := e.Stats()
	assert.Equal(t, int64(1), stats.Classification.ModelResults)
	assert.Equal(t, int64(1), stats.Execution.TasksSucceeded)
	assert.Equal(t, int64(1), stats.Tools.SuccessCount)
	assert.Equal(t, int64(3), stats.Router.Calls)

	require.NotNil(t, stats.Ledger)
	assert.Equal(t, int64(3), stats.Ledger.TotalCalls)
	assert.Equal(t, int64(1), stats.Ledger.Classifications)
	assert.Equal(t, int64(1), stats.Ledger.Executions)

	today, err := e.Metrics().GetTodayStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), today.ModelClassifications)
	assert.Equal(t, int64(1), today.ToolsExecuted)
}

func TestEngine_NoProviders(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	e := newTestEngine(t, cfg, llm.NewScriptedProvider("ollama", llm.KindLocal, llm.WithScriptedUnavailable()))
	ctx := context.Background()

	assert.False(t, e.Refresh(ctx))
	assert.Empty(t, e.Models())
	assert.Nil(t, e.Select(router.TaskGeneral))
	assert.Nil(t, e.Metrics())

	res := e.Classify(ctx, "hola", "", nil)
	assert.Equal(t, intent.SourceHeuristic, res.Source)

	_, err := e.Generate(ctx, "hello", "", llm.Options{})
	assert.Error(t, err)

	task := e.Execute(ctx, "Write a short poem", "")
	assert.True(t, task.Forced)
	assert.True(t, task.Templated)
	assert.NotEmpty(t, task.FinalNarrative)
	assert.Nil(t, e.Stats().Ledger)
}

func TestEngine_GenerateAndChat(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	p := llm.NewScriptedProvider("ollama", llm.KindLocal,
		llm.WithScriptedModels(llm.RawModel{Name: "llama3.1:8b", ParameterSize: "8.0B"}),
		llm.WithScriptedReplies("pong"),
	)
	e := newTestEngine(t, cfg, p)
	ctx := context.Background()
	require.True(t, e.Refresh(ctx))

	c, err := e.Generate(ctx, "ping", "ollama/llama3.1:8b", llm.Options{})
	require.NoError(t, err)
	assert.Equal(t, "pong", c.Text)
	assert.Equal(t, "ollama", c.Provider)

	e.SetActiveModel("ollama/llama3.1:8b")
	c, err = e.Chat(ctx, []llm.Message{{Role: "user", Content: "ping"}}, "", llm.Options{})
	require.NoError(t, err)
	assert.Equal(t, "ollama/llama3.1:8b", c.ModelID)
	assert.Equal(t, 2, p.CallCount())
}

func TestEngine_PriceOverrides(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	cfg.LLM.Providers = []config.ProviderConfig{{
		Name: "openai",
		Type: "openai",
		Pricing: []config.ModelPrice{
			{Model: "gpt-4o-mini", CostPer1K: 0.0042},
		},
	}}
	remote := llm.NewScriptedProvider("openai", llm.KindRemote,
		llm.WithScriptedModels(llm.RawModel{Name: "gpt-4o-mini"}),
	)
	e := newTestEngine(t, cfg, remote)
	require.True(t, e.Refresh(context.Background()))

	models := e.Models()
	require.Len(t, models, 1)
	assert.InDelta(t, 0.0042, models[0].CostPer1KTokens, 1e-9)
}

func TestEngine_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Router.ActiveModel = "unqualified"

	_, err := New(cfg)
	assert.ErrorContains(t, err, "invalid config")
}

func TestEngine_ToolsRegistered(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	e := newTestEngine(t, cfg)

	assert.Equal(t, []string{"file_write", "file_read", "list_files", "web_search"}, e.Tools().Names())
	assert.DirExists(t, e.Workspace())
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
}
