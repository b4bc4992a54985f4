package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/conductor/internal/catalog"
	"github.com/normanking/conductor/internal/llm"
	"github.com/normanking/conductor/internal/router"
	"github.com/normanking/conductor/internal/tools"
)

// newRouter wires a router to one scripted local model.
func newRouter(t *testing.T, opts ...llm.ScriptedOption) (*router.Router, *llm.ScriptedProvider) {
	t.Helper()
	p := llm.NewScriptedProvider("ollama", llm.KindLocal, opts...)
	cat := catalog.New([]llm.ProviderHandle{p})
	cat.Replace([]catalog.ModelDescriptor{{
		ID:             catalog.QualifiedID("ollama", "qwen2.5:7b"),
		Name:           "qwen2.5:7b",
		Provider:       "ollama",
		ProviderKind:   llm.KindLocal,
		CapabilityTags: []string{catalog.TagGeneral, catalog.TagCodeGeneration},
		SizeMetric:     7,
	}})
	return router.New(cat), p
}

// newRegistry registers the file tools in a temp workspace plus an
// unconfigured web search.
func newRegistry(t *testing.T) (*tools.Registry, *tools.Sandbox) {
	t.Helper()
	sb, err := tools.NewSandbox(t.TempDir())
	require.NoError(t, err)

	reg := tools.NewRegistry()
	require.NoError(t, tools.RegisterFileTools(reg, sb))
	require.NoError(t, reg.Register(tools.NewWebSearchTool()))
	return reg, sb
}

// phased answers plan prompts with plan and narrative prompts with narrative.
func phased(plan, narrative string) llm.ScriptedOption {
	return llm.WithScriptedHandler(func(_ string, msgs []llm.Message) (string, error) {
		prompt := msgs[len(msgs)-1].Content
		if strings.Contains(prompt, "## Available tools") {
			return plan, nil
		}
		return narrative, nil
	})
}

func TestExecuteTaskWithTools_ModelPlan(t *testing.T) {
	plan := "Here is the plan.\n" +
		"```tool\n{\"tool\": \"file_write\", \"parameters\": {\"path\": \"out/summary.md\", \"content\": \"# Summary\"}}\n```\n" +
		`<tool_call>{"tool": "list_files", "parameters": {"recursive": true}}</tool_call>`

	r, p := newRouter(t, phased(plan, "I wrote out/summary.md."))
	reg, sb := newRegistry(t)
	o := New(r, reg)

	task := o.ExecuteTaskWithTools(context.Background(), "Write a summary file", "task-1")

	assert.Equal(t, "task-1", task.TaskID)
	assert.Equal(t, plan, task.PlanText)
	assert.Equal(t, "ollama/qwen2.5:7b", task.PlanModel)
	assert.False(t, task.Forced)
	require.Len(t, task.Invocations, 2)
	assert.Equal(t, tools.ToolFileWrite, task.Invocations[0].ToolName)
	assert.True(t, task.Invocations[0].Result.Success)
	assert.Contains(t, task.Invocations[1].Result.Payload, "out/summary.md")
	assert.True(t, task.Success)
	assert.Equal(t, "I wrote out/summary.md.", task.FinalNarrative)
	assert.False(t, task.Templated)
	assert.Positive(t, task.Elapsed)

	dir := TaskDir(task.TaskText, task.TaskID)
	assert.Equal(t, dir+"/out/summary.md", task.Invocations[0].Parameters.String("path"))
	data, err := os.ReadFile(filepath.Join(sb.Root(), dir, "out", "summary.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Summary", string(data))

	// Plan and narrative calls.
	assert.Equal(t, 2, p.CallCount())
	assert.Contains(t, p.LastPrompt(), "[ok] file_write")
}

func TestExecuteTaskWithTools_ModelPathsScopedToTaskDir(t *testing.T) {
	plan := `<tool_call>{"tool": "file_write", "parameters": {"path": "index.html", "content": "<h1>one</h1>"}}</tool_call>`
	r, _ := newRouter(t, phased(plan, "Page written."))
	reg, sb := newRegistry(t)
	o := New(r, reg)

	first := o.ExecuteTaskWithTools(context.Background(), "Build a page", "abc123")
	second := o.ExecuteTaskWithTools(context.Background(), "Build a page", "def456")
	require.True(t, first.Success)
	require.True(t, second.Success)

	assert.FileExists(t, filepath.Join(sb.Root(), TaskDir("Build a page", "abc123"), "index.html"))
	assert.FileExists(t, filepath.Join(sb.Root(), TaskDir("Build a page", "def456"), "index.html"))
	assert.NoFileExists(t, filepath.Join(sb.Root(), "index.html"))
}

func TestScopeToTaskDir(t *testing.T) {
	const dir = "build-a-page-abc123"
	tests := []struct {
		name string
		call ToolCall
		want string
	}{
		{"relative write", ToolCall{Tool: tools.ToolFileWrite, Parameters: tools.Params{"path": "index.html"}}, dir + "/index.html"},
		{"nested read", ToolCall{Tool: tools.ToolFileRead, Parameters: tools.Params{"path": "./docs/a.md"}}, dir + "/docs/a.md"},
		{"already scoped", ToolCall{Tool: tools.ToolFileWrite, Parameters: tools.Params{"path": dir + "/a.md"}}, dir + "/a.md"},
		{"list without path", ToolCall{Tool: tools.ToolListFiles, Parameters: tools.Params{}}, ""},
		{"absolute left for the sandbox", ToolCall{Tool: tools.ToolFileRead, Parameters: tools.Params{"path": "/etc/passwd"}}, "/etc/passwd"},
		{"other tool", ToolCall{Tool: tools.ToolWebSearch, Parameters: tools.Params{"path": "x"}}, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scopeToTaskDir(tt.call, dir)
			assert.Equal(t, tt.want, got.Parameters.String("path"))
		})
	}

	original := tools.Params{"path": "a.md"}
	scopeToTaskDir(ToolCall{Tool: tools.ToolFileWrite, Parameters: original}, dir)
	assert.Equal(t, "a.md", original.String("path"))
}

func TestExecuteTaskWithTools_ForcedPlan(t *testing.T) {
	r, _ := newRouter(t, phased("Sure! I will build a great landing page for you.", "Scaffold ready."))
	reg, sb := newRegistry(t)
	o := New(r, reg)

	task := o.ExecuteTaskWithTools(context.Background(), "Build a landing page for my bakery", "abc123")

	assert.True(t, task.Forced)
	assert.Equal(t, string(ForcedWeb), task.ForcedCategory)
	require.Len(t, task.Invocations, 3)

	// The search tool has no API key; the file steps still run.
	assert.Equal(t, tools.ToolWebSearch, task.Invocations[0].ToolName)
	assert.False(t, task.Invocations[0].Result.Success)
	assert.Contains(t, task.Invocations[0].Result.Error, "not configured")
	assert.True(t, task.Invocations[1].Result.Success)
	assert.True(t, task.Invocations[2].Result.Success)
	for _, inv := range task.Invocations {
		assert.True(t, inv.Forced)
	}

	assert.True(t, task.Success)
	assert.Equal(t, 1, task.Failed())
	assert.Equal(t, "Scaffold ready.", task.FinalNarrative)

	dir := TaskDir(task.TaskText, task.TaskID)
	html, err := os.ReadFile(filepath.Join(sb.Root(), dir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>Build a landing page for my bakery</title>")
	assert.FileExists(t, filepath.Join(sb.Root(), dir, "README.md"))

	stats := o.Stats()
	assert.Equal(t, int64(1), stats.ForcedExecutions)
	assert.Equal(t, int64(3), stats.ToolsExecuted)
	assert.Equal(t, int64(1), stats.ToolFailures)
}

func TestExecuteTaskWithTools_NoModel(t *testing.T) {
	reg, _ := newRegistry(t)
	o := New(nil, reg)

	task := o.ExecuteTaskWithTools(context.Background(), "Necesito crear un dashboard de ventas con datos de los últimos 6 meses", "")

	_, err := uuid.Parse(task.TaskID)
	assert.NoError(t, err, "empty task id gets a uuid")
	assert.True(t, task.Forced)
	assert.GreaterOrEqual(t, len(task.Invocations), 1)
	assert.True(t, task.Templated)
	assert.NotEmpty(t, strings.TrimSpace(task.FinalNarrative))
	assert.Contains(t, task.FinalNarrative, "partially")
	assert.True(t, task.Success)
}

func TestExecuteTaskWithTools_ProviderDown(t *testing.T) {
	r, p := newRouter(t, llm.WithScriptedFailure())
	reg, _ := newRegistry(t)
	o := New(r, reg)

	task := o.ExecuteTaskWithTools(context.Background(), "Write a poem about the sea", "t")

	assert.Equal(t, 2, p.CallCount(), "plan and narrative were both attempted")
	assert.Empty(t, task.PlanText)
	assert.True(t, task.Forced)
	assert.Equal(t, string(ForcedCreation), task.ForcedCategory)
	assert.True(t, task.Templated)
	assert.Contains(t, task.FinalNarrative, "Write a poem about the sea")
	assert.Contains(t, task.FinalNarrative, "All steps completed.")
	assert.True(t, task.Success)
	assert.Equal(t, int64(1), o.Stats().TemplatedNarratives)
}

func TestExecuteTaskWithTools_EmptyNarrativeIsTemplated(t *testing.T) {
	plan := `<tool_call>{"tool": "list_files"}</tool_call>`
	r, _ := newRouter(t, phased(plan, "   \n  "))
	reg, _ := newRegistry(t)

	task := New(r, reg).ExecuteTaskWithTools(context.Background(), "list the workspace", "t")
	assert.True(t, task.Templated)
	assert.NotEmpty(t, strings.TrimSpace(task.FinalNarrative))
}

func TestExecuteTaskWithTools_PartialFailure(t *testing.T) {
	plan := `<tool_call>{"tool": "file_read", "parameters": {"path": "missing.txt"}}</tool_call>
<tool_call>{"tool": "teleport", "parameters": {}}</tool_call>
<tool_call>{"tool": "file_write", "parameters": {"path": "ok.txt", "content": "fine"}}</tool_call>
` + "```tool\n{broken\n```"

	r, _ := newRouter(t, phased(plan, "Some steps failed."))
	reg, _ := newRegistry(t)
	o := New(r, reg)

	task := o.ExecuteTaskWithTools(context.Background(), "mixed task", "t")
	require.Len(t, task.Invocations, 3)
	assert.False(t, task.Invocations[0].Result.Success)
	assert.Contains(t, task.Invocations[1].Result.Error, "unknown tool")
	assert.True(t, task.Invocations[2].Result.Success)
	assert.True(t, task.Success)
	assert.False(t, task.Forced)
	assert.Equal(t, int64(1), o.Stats().MalformedBlocks)
}

type panickingExecutor struct{}

func (panickingExecutor) Describe() []tools.Descriptor { return nil }

func (panickingExecutor) Execute(context.Context, string, tools.Params) tools.Result {
	panic("executor exploded")
}

func TestExecuteTaskWithTools_ExecutorPanics(t *testing.T) {
	o := New(nil, panickingExecutor{})

	var task *ExecutionTask
	require.NotPanics(t, func() {
		task = o.ExecuteTaskWithTools(context.Background(), "research quantum networking", "t")
	})
	require.NotEmpty(t, task.Invocations)
	for _, inv := range task.Invocations {
		assert.False(t, inv.Result.Success)
		assert.Contains(t, inv.Result.Error, "panicked")
	}
	assert.False(t, task.Success)
	assert.Contains(t, task.FinalNarrative, "All steps failed")

	stats := o.Stats()
	assert.Equal(t, int64(1), stats.TasksFailed)
	assert.Equal(t, int64(0), stats.TasksSucceeded)
}

func TestExecuteTaskWithTools_MaxToolCalls(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 5; i++ {
		sb.WriteString(`<tool_call>{"tool": "list_files"}</tool_call>`)
	}
	r, _ := newRouter(t, phased(sb.String(), "ok"))
	reg, _ := newRegistry(t)

	task := New(r, reg, WithMaxToolCalls(2)).ExecuteTaskWithTools(context.Background(), "list", "t")
	assert.Len(t, task.Invocations, 2)
}

type execRecord struct {
	success bool
	tools   int
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []execRecord
}

func (f *fakeRecorder) RecordExecution(_ context.Context, success bool, toolsExecuted int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, execRecord{success, toolsExecuted})
	return nil
}

func TestExecuteTaskWithTools_RecordsAndCounts(t *testing.T) {
	rec := &fakeRecorder{}
	reg, _ := newRegistry(t)
	o := New(nil, reg, WithRecorder(rec))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task := o.ExecuteTaskWithTools(context.Background(), "write meeting notes", "")
			assert.NotEmpty(t, task.FinalNarrative)
		}()
	}
	wg.Wait()

	stats := o.Stats()
	assert.Equal(t, int64(8), stats.TasksAttempted)
	assert.Equal(t, int64(8), stats.TasksSucceeded)
	assert.Equal(t, int64(16), stats.ToolsExecuted)
	assert.Equal(t, 1.0, stats.SuccessRate())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.records, 8)
	assert.Equal(t, execRecord{true, 2}, rec.records[0])
}
