package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/normanking/conductor/internal/catalog"
	"github.com/normanking/conductor/internal/intent"
	"github.com/normanking/conductor/internal/orchestrator"
)

const wrapWidth = 100

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// renderMarkdown renders content for the terminal, falling back to plain
// text when glamour cannot initialize.
func renderMarkdown(w io.Writer, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrapWidth),
	)
	if err == nil {
		if out, rerr := renderer.Render(content); rerr == nil {
			_, err = io.WriteString(w, out)
			return err
		}
	}

	_, err = fmt.Fprintln(w, content)
	return err
}

func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %v\n", labelStyle.Render(fmt.Sprintf("%-14s", label+":")), value)
}

// ═══════════════════════════════════════════════════════════════════════════════
// CLASSIFICATION
// ═══════════════════════════════════════════════════════════════════════════════

func renderClassification(w io.Writer, res intent.Result) error {
	fmt.Fprintln(w, titleStyle.Render("Classification"))
	field(w, "Category", res.Category)

	conf := fmt.Sprintf("%.2f", res.Confidence)
	switch {
	case res.Confidence >= intent.DefaultConfidenceThreshold:
		conf = okStyle.Render(conf)
	case res.Confidence > intent.DefaultWarnThreshold:
		conf = warnStyle.Render(conf)
	default:
		conf = failStyle.Render(conf)
	}
	field(w, "Confidence", conf)

	source := string(res.Source)
	if res.ModelID != "" {
		source += " (" + res.ModelID + ")"
	}
	field(w, "Source", source)
	field(w, "Action", res.SuggestedAction)
	if res.Reasoning != "" {
		field(w, "Reasoning", res.Reasoning)
	}

	for _, k := range res.ExtractedEntities.Keys() {
		v, _ := res.ExtractedEntities.Get(k)
		field(w, "  "+k, v)
	}

	if res.RequiresClarification {
		fmt.Fprintln(w, warnStyle.Render("Needs clarification:"))
		for _, q := range res.ClarificationQuestions {
			fmt.Fprintf(w, "  • %s\n", q)
		}
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// EXECUTION
// ═══════════════════════════════════════════════════════════════════════════════

func renderTask(w io.Writer, task *orchestrator.ExecutionTask, workspace string) error {
	fmt.Fprintln(w, titleStyle.Render("Task "+task.TaskID))
	field(w, "Task", task.TaskText)
	if task.PlanModel != "" {
		field(w, "Model", task.PlanModel)
	}
	if task.Forced {
		field(w, "Plan", warnStyle.Render("standard "+task.ForcedCategory+" plan"))
	}
	field(w, "Workspace", workspace)
	field(w, "Elapsed", task.Elapsed.Round(time.Millisecond))

	fmt.Fprintln(w)
	for i, inv := range task.Invocations {
		status := okStyle.Render("ok")
		detail := firstLine(inv.Result.Payload)
		if !inv.Result.Success {
			status = failStyle.Render("failed")
			detail = inv.Result.Error
		}
		fmt.Fprintf(w, "%2d. [%s] %s %s\n", i+1, status, inv.ToolName, labelStyle.Render(detail))
	}
	fmt.Fprintln(w)

	return renderMarkdown(w, task.FinalNarrative)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if len(line) > 80 {
		line = line[:77] + "..."
	}
	return line
}

// ═══════════════════════════════════════════════════════════════════════════════
// MODELS
// ═══════════════════════════════════════════════════════════════════════════════

func renderModels(w io.Writer, models []catalog.ModelDescriptor, active string) error {
	if len(models) == 0 {
		fmt.Fprintln(w, warnStyle.Render("No models available."))
		return nil
	}

	var b strings.Builder
	b.WriteString("| Model | Kind | Size | Cost/1K | Tags |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, m := range models {
		id := m.ID
		if id == active {
			id = "**" + id + "** (active)"
		}
		size := "-"
		if m.SizeMetric > 0 {
			size = fmt.Sprintf("%.1fB", m.SizeMetric)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %.5f | %s |\n", id, m.ProviderKind, size, m.CostPer1KTokens, strings.Join(m.CapabilityTags, ", "))
	}
	return renderMarkdown(w, b.String())
}
