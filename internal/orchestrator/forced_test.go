package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/conductor/internal/tools"
)

func TestClassifyForced(t *testing.T) {
	tests := []struct {
		task string
		want ForcedCategory
	}{
		{"Build a website for my band", ForcedWeb},
		{"Crea una página web para la tienda", ForcedWeb},
		{"Necesito crear un dashboard de ventas con datos de los últimos 6 meses", ForcedWeb},
		{"Research the history of the printing press", ForcedResearch},
		{"Write a report on Q3 churn", ForcedResearch},
		{"Haz un análisis de la competencia", ForcedResearch},
		{"Write a cover letter", ForcedCreation},
		{"Redacta un correo para el cliente", ForcedCreation},
		{"Resume the paused task", ForcedDefault},
		{"Webinar outline for Tuesday", ForcedDefault},
		{"Check the hazard log", ForcedDefault},
		{"Escribe un resumen del libro", ForcedResearch},
		{"Construye un sitio para la panadería", ForcedWeb},
		{"Tell me about octopuses", ForcedDefault},
		{"", ForcedDefault},
	}

	for _, tt := range tests {
		t.Run(tt.task, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyForced(tt.task))
		})
	}
}

func TestForcedPlan(t *testing.T) {
	tasks := map[string]ForcedCategory{
		"Build a website for my band":     ForcedWeb,
		"Research solar panel efficiency": ForcedResearch,
		"Write a cover letter":            ForcedCreation,
		"octopuses":                       ForcedDefault,
	}

	for task, category := range tasks {
		t.Run(task, func(t *testing.T) {
			got, calls := ForcedPlan(task, "job-1")
			assert.Equal(t, category, got)
			assert.GreaterOrEqual(t, len(calls), 2)
			assert.LessOrEqual(t, len(calls), 3)

			writes := 0
			for _, c := range calls {
				if c.Tool == tools.ToolFileWrite {
					writes++
					assert.True(t, strings.HasPrefix(c.Parameters.String("path"), "job-1/"))
					assert.NotEmpty(t, c.Parameters.String("content"))
				}
			}
			assert.GreaterOrEqual(t, writes, 1, "every plan writes a file")
		})
	}
}

func TestForcedPlan_WebSteps(t *testing.T) {
	_, calls := ForcedPlan("Build a landing page <for> \"Ana\"", "site")
	require.Len(t, calls, 3)
	assert.Equal(t, tools.ToolWebSearch, calls[0].Tool)
	assert.Equal(t, "site/index.html", calls[1].Parameters.String("path"))
	assert.Equal(t, "site/README.md", calls[2].Parameters.String("path"))
	assert.Contains(t, calls[1].Parameters.String("content"), "&lt;for&gt; &#34;Ana&#34;")
}

func TestTaskDir(t *testing.T) {
	assert.Equal(t, "build-a-website-12345678", TaskDir("Build a website!", "1234567890"))
	assert.Equal(t, "task-t1", TaskDir("¿?", "t1"))
	assert.Equal(t, "crear-un-informe", TaskDir("Crear un informe", ""))
	assert.Equal(t, "a-b-c-x", TaskDir("a/b/c", "../x/"))

	long := TaskDir(strings.Repeat("word ", 20), "")
	assert.LessOrEqual(t, len(long), 33)
	assert.False(t, strings.HasSuffix(long, "-"))
}

func TestTemplateNarrative(t *testing.T) {
	task := &ExecutionTask{TaskText: "Write notes", Forced: true}
	assert.Contains(t, TemplateNarrative(task), "Nothing was produced.")

	task.Invocations = []ToolInvocation{
		{ToolName: "file_write", Result: tools.Result{Success: true, Payload: "wrote 10 bytes to notes.md"}},
		{ToolName: "web_search", Result: tools.Result{Error: "search failed"}},
	}
	out := TemplateNarrative(task)
	assert.Contains(t, out, "Task: Write notes")
	assert.Contains(t, out, "standard plan")
	assert.Contains(t, out, "Executed 2 tool call(s): 1 succeeded, 1 failed.")
	assert.Contains(t, out, "1. [ok] file_write: wrote 10 bytes to notes.md")
	assert.Contains(t, out, "2. [failed] web_search: search failed")
	assert.Contains(t, out, "partially")
}
