package orchestrator

import (
	"fmt"
	"html"
	"path"
	"strings"
	"unicode"

	"github.com/normanking/conductor/internal/intent"
	"github.com/normanking/conductor/internal/tools"
)

// ForcedCategory names a forced-execution plan.
type ForcedCategory string

const (
	ForcedWeb      ForcedCategory = "web"
	ForcedResearch ForcedCategory = "research"
	ForcedCreation ForcedCategory = "creation"
	ForcedDefault  ForcedCategory = "default"
)

// forcedRules are checked in order; the first family with a matching
// keyword wins. Keywords match whole words of the task, a keyword with a
// space matches consecutive words and a trailing "*" matches a word prefix.
var forcedRules = []struct {
	category ForcedCategory
	keywords []string
}{
	{ForcedWeb, []string{
		"website", "web site", "web page", "webpage", "landing", "homepage", "html", "dashboard", "portfolio",
		"sitio", "página web", "pagina web", "web",
	}},
	{ForcedResearch, []string{
		"research", "investigate", "analyze", "analyse", "analysis", "report", "compare", "study", "summarize",
		"investiga*", "analiza*", "análisis", "informe", "reporte", "compara", "estudio", "resumen", "resumir",
	}},
	{ForcedCreation, []string{
		"create", "write", "build", "make", "generate", "draft", "design", "prepare", "compose",
		"crea", "crear", "escrib*", "constru*", "haz", "hacer", "genera", "generar", "redact*", "diseña", "diseñar", "prepara", "preparar",
	}},
}

// ClassifyForced picks the forced plan family for taskText.
func ClassifyForced(taskText string) ForcedCategory {
	words := strings.FieldsFunc(strings.ToLower(taskText), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	joined := " " + strings.Join(words, " ") + " "

	for _, rule := range forcedRules {
		for _, kw := range rule.keywords {
			if matchKeyword(words, joined, kw) {
				return rule.category
			}
		}
	}
	return ForcedDefault
}

func matchKeyword(words []string, joined, kw string) bool {
	if stem, ok := strings.CutSuffix(kw, "*"); ok {
		for _, w := range words {
			if strings.HasPrefix(w, stem) {
				return true
			}
		}
		return false
	}
	return strings.Contains(joined, " "+kw+" ")
}

// ForcedPlan synthesizes the fixed tool sequence for taskText. Every plan
// writes at least one file under dir.
func ForcedPlan(taskText, dir string) (ForcedCategory, []ToolCall) {
	category := ClassifyForced(taskText)
	title := intent.TaskTitle(taskText)
	query := strings.TrimSuffix(title, "...")

	search := ToolCall{Tool: tools.ToolWebSearch, Parameters: tools.Params{"query": query, "max_results": float64(5)}}
	write := func(name, content string) ToolCall {
		return ToolCall{Tool: tools.ToolFileWrite, Parameters: tools.Params{
			"path":    path.Join(dir, name),
			"content": content,
		}}
	}

	switch category {
	case ForcedWeb:
		search.Parameters["query"] = query + " examples"
		return category, []ToolCall{
			search,
			write("index.html", htmlScaffold(title)),
			write("README.md", readme(title, taskText)),
		}
	case ForcedResearch:
		return category, []ToolCall{
			search,
			write("report.md", report(title, taskText)),
		}
	case ForcedCreation:
		return category, []ToolCall{
			write("plan.md", plan(title, taskText)),
			write("draft.md", draft(title, taskText)),
		}
	default:
		return category, []ToolCall{
			search,
			write("notes.md", notes(title, taskText)),
		}
	}
}

// TaskDir derives the workspace directory for a task from its text and id.
func TaskDir(taskText, taskID string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(taskText) {
		if b.Len() >= 32 {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "task"
	}

	id := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
			return r
		}
		return -1
	}, taskID)
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		return slug
	}
	return slug + "-" + id
}

// ═══════════════════════════════════════════════════════════════════════════════
// ARTIFACT TEMPLATES
// ═══════════════════════════════════════════════════════════════════════════════

func htmlScaffold(title string) string {
	t := html.EscapeString(title)
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>%s</title>
  <style>
    body { font-family: system-ui, sans-serif; margin: 0; color: #1f2933; }
    header, main, footer { max-width: 960px; margin: 0 auto; padding: 1.5rem; }
    section { margin-bottom: 2rem; }
  </style>
</head>
<body>
  <header>
    <h1>%s</h1>
  </header>
  <main>
    <section id="overview">
      <h2>Overview</h2>
      <p>Content pending.</p>
    </section>
    <section id="details">
      <h2>Details</h2>
      <p>Content pending.</p>
    </section>
  </main>
  <footer>
    <p>Generated scaffold</p>
  </footer>
</body>
</html>
`, t, t)
}

func readme(title, task string) string {
	return fmt.Sprintf("# %s\n\n## Request\n\n%s\n\n## Files\n\n- `index.html`: page scaffold\n\n## Next steps\n\n1. Fill in the overview and details sections.\n2. Review the reference search results.\n3. Add styling and assets.\n", title, quote(task))
}

func report(title, task string) string {
	return fmt.Sprintf("# %s\n\n## Objective\n\n%s\n\n## Findings\n\nSee the web search results gathered for this task.\n\n## Open questions\n\n- Which sources are authoritative for this topic?\n\n## Next steps\n\n1. Verify the findings against primary sources.\n2. Expand each finding with data.\n", title, quote(task))
}

func plan(title, task string) string {
	return fmt.Sprintf("# Plan: %s\n\n## Goal\n\n%s\n\n## Steps\n\n1. Define the scope and the expected output.\n2. Produce a first draft.\n3. Review and refine the draft.\n", title, quote(task))
}

func draft(title, task string) string {
	return fmt.Sprintf("# %s\n\n_Draft_\n\n%s\n\n## Content\n\nTo be completed.\n", title, quote(task))
}

func notes(title, task string) string {
	return fmt.Sprintf("# Notes: %s\n\n%s\n\n- Reference material was searched for this task.\n", title, quote(task))
}

func quote(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}
