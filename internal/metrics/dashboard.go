package metrics

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Dashboard renders a ledger report for the terminal.
type Dashboard struct {
	styles DashboardStyles
	width  int
}

// DashboardStyles defines the styling for the dashboard.
type DashboardStyles struct {
	Border    lipgloss.Style
	Header    lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
}

// Report groups what `conductor stats` shows.
type Report struct {
	Today     *DailyStats     `json:"today"`
	Providers []ProviderStats `json:"providers"`
	Recent    []CallRecord    `json:"recent"`
}

// NewDashboard creates a dashboard renderer.
func NewDashboard() *Dashboard {
	return &Dashboard{
		width:  80,
		styles: defaultDashboardStyles(),
	}
}

func defaultDashboardStyles() DashboardStyles {
	return DashboardStyles{
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		Value: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")),
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82")),
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")),
		Highlight: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")),
	}
}

// SetWidth sets the dashboard width.
func (d *Dashboard) SetWidth(w int) {
	if w > 20 {
		d.width = w
	}
}

// Render returns the boxed report.
func (d *Dashboard) Render(r *Report) string {
	var content strings.Builder

	day := "today"
	if r.Today != nil && r.Today.Date != "" {
		day = r.Today.Date
	}
	content.WriteString(d.styles.Header.Render("LEDGER " + day))
	content.WriteString("\n")

	t := r.Today
	if t == nil {
		t = &DailyStats{}
	}

	successRate := float64(100)
	if t.TotalCalls > 0 {
		successRate = float64(t.SuccessfulCalls) / float64(t.TotalCalls) * 100
	}

	// Calls, success, fallbacks
	content.WriteString(fmt.Sprintf("%s %s │ %s %s │ %s %s\n",
		d.styles.Label.Render("Calls:"),
		d.styles.Value.Render(fmt.Sprintf("%d", t.TotalCalls)),
		d.styles.Label.Render("Success:"),
		d.formatSuccessRate(successRate),
		d.styles.Label.Render("Fallbacks:"),
		d.styles.Highlight.Render(fmt.Sprintf("%d", t.FallbackCalls)),
	))

	// Latency, local share
	content.WriteString(fmt.Sprintf("%s %s │ %s %s\n",
		d.styles.Label.Render("Latency:"),
		d.styles.Value.Render(fmt.Sprintf("%.2fs avg", t.AvgLatencyMs/1000)),
		d.styles.Label.Render("Local:"),
		d.styles.Highlight.Render(fmt.Sprintf("%.0f%%", t.LocalCallRate)),
	))

	// Classification paths
	content.WriteString(fmt.Sprintf("%s %s │ %s %s │ %s %s │ %s %s\n",
		d.styles.Label.Render("Classified:"),
		d.styles.Value.Render(fmt.Sprintf("%d", t.Classifications)),
		d.styles.Label.Render("cache"),
		d.styles.Value.Render(fmt.Sprintf("%d", t.CacheClassifications)),
		d.styles.Label.Render("model"),
		d.styles.Value.Render(fmt.Sprintf("%d", t.ModelClassifications)),
		d.styles.Label.Render("heuristic"),
		d.styles.Value.Render(fmt.Sprintf("%d", t.HeuristicClassifications)),
	))

	// Executions
	content.WriteString(fmt.Sprintf("%s %s │ %s %s │ %s %s",
		d.styles.Label.Render("Tasks:"),
		d.styles.Value.Render(fmt.Sprintf("%d", t.Executions)),
		d.styles.Label.Render("Succeeded:"),
		d.styles.Success.Render(fmt.Sprintf("%d", t.SuccessfulExecutions)),
		d.styles.Label.Render("Tools:"),
		d.styles.Value.Render(fmt.Sprintf("%d calls", t.ToolsExecuted)),
	))

	if len(r.Providers) > 0 {
		content.WriteString("\n\n")
		content.WriteString(d.styles.Header.Render("PROVIDERS"))
		for _, p := range r.Providers {
			content.WriteString(fmt.Sprintf("\n%s %s │ %s │ %s",
				d.styles.Label.Render(fmt.Sprintf("%-12s", p.Provider)),
				d.styles.Value.Render(fmt.Sprintf("%5d calls", p.CallCount)),
				d.formatSuccessRate(p.SuccessRate),
				d.styles.Value.Render(fmt.Sprintf("%.2fs avg", p.AvgLatencyMs/1000)),
			))
		}
	}

	if len(r.Recent) > 0 {
		content.WriteString("\n\n")
		content.WriteString(d.styles.Header.Render("RECENT"))
		content.WriteString("\n")
		content.WriteString(d.renderActivity(r.Recent))
	}

	return d.styles.Border.Width(d.width - 4).Render(content.String())
}

// RenderCompact returns a single-line summary of the in-process counters.
func (d *Dashboard) RenderCompact(s Summary) string {
	return fmt.Sprintf("[Ledger] %d calls │ %.0f%% ok │ %.2fs avg │ %.0f%% local │ %d classified │ %d tasks",
		s.TotalCalls,
		s.SuccessRate,
		s.AvgLatencyMs/1000,
		s.LocalCallRate,
		s.Classifications,
		s.Executions,
	)
}

// formatSuccessRate formats the success rate with color.
func (d *Dashboard) formatSuccessRate(rate float64) string {
	formatted := fmt.Sprintf("%.0f%%", rate)
	if rate >= 90 {
		return d.styles.Success.Render(formatted)
	} else if rate >= 70 {
		return d.styles.Highlight.Render(formatted)
	}
	return d.styles.Error.Render(formatted)
}

// renderActivity draws one dot per recent call, newest first.
func (d *Dashboard) renderActivity(calls []CallRecord) string {
	dots := make([]string, len(calls))
	for i, c := range calls {
		switch {
		case !c.Success:
			dots[i] = d.styles.Error.Render("●")
		case c.Fallback:
			dots[i] = d.styles.Highlight.Render("●")
		default:
			dots[i] = d.styles.Success.Render("●")
		}
	}
	return strings.Join(dots, "")
}
