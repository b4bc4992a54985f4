package orchestrator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/normanking/conductor/internal/tools"
)

const (
	summaryPayloadRunes = 240
	narrativeSystem     = "You report the outcome of executed tasks to the user. Be concise and factual."
)

// BuildExecutionPrompt asks the model to act on taskText by emitting tool
// calls rather than describing what it would do.
func BuildExecutionPrompt(taskText, taskDir string, available []tools.Descriptor) string {
	var sb strings.Builder
	sb.WriteString("You are an execution agent. Complete the task below by CALLING TOOLS. ")
	sb.WriteString("Do not explain what you would do; emit the tool calls now.\n\n")

	sb.WriteString("## Task\n\n")
	sb.WriteString(strings.TrimSpace(taskText))
	sb.WriteString("\n\n## Available tools\n\n")
	for _, d := range available {
		fmt.Fprintf(&sb, "- %s: %s\n  parameters: %s\n", d.Name, d.Description, d.Parameters)
	}

	sb.WriteString("\n## Format\n\n")
	sb.WriteString("Emit one block per call, in the order they must run:\n\n")
	sb.WriteString("```tool\n{\"tool\": \"<name>\", \"parameters\": {...}}\n```\n\n")
	sb.WriteString("or\n\n<tool_call>{\"tool\": \"<name>\", \"parameters\": {...}}</tool_call>\n\n")
	fmt.Fprintf(&sb, "File paths are relative to the task directory %q; list_files without a path lists the whole workspace. ", taskDir)
	sb.WriteString("Produce at least one file.\n")
	return sb.String()
}

// Summarize renders one line per invocation with its outcome.
func Summarize(invocations []ToolInvocation) string {
	if len(invocations) == 0 {
		return "No tools were executed."
	}
	var sb strings.Builder
	ok := 0
	for _, inv := range invocations {
		if inv.Result.Success {
			ok++
		}
	}
	fmt.Fprintf(&sb, "Executed %d tool call(s): %d succeeded, %d failed.\n", len(invocations), ok, len(invocations)-ok)
	for i, inv := range invocations {
		if inv.Result.Success {
			fmt.Fprintf(&sb, "%d. [ok] %s: %s\n", i+1, inv.ToolName, clip(inv.Result.Payload, summaryPayloadRunes))
		} else {
			fmt.Fprintf(&sb, "%d. [failed] %s: %s\n", i+1, inv.ToolName, clip(inv.Result.Error, summaryPayloadRunes))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// BuildNarrativePrompt asks for a user-facing report of the results.
func BuildNarrativePrompt(taskText, summary string) string {
	return fmt.Sprintf(`The following task was executed.

Task:
%s

Results:
%s

Write a short report for the user: what was done, which files were produced, what failed and what to do next. Do not invent results that are not listed.`, strings.TrimSpace(taskText), summary)
}

// TemplateNarrative builds the narrative without a model.
func TemplateNarrative(task *ExecutionTask) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\n\n", clip(strings.TrimSpace(task.TaskText), 200))
	if task.Forced {
		sb.WriteString("The model proposed no tool calls, so a standard plan was executed.\n\n")
	}
	sb.WriteString(Summarize(task.Invocations))

	switch {
	case len(task.Invocations) == 0:
		sb.WriteString("\n\nNothing was produced.")
	case task.Succeeded() == 0:
		sb.WriteString("\n\nAll steps failed; check the errors above.")
	case task.Failed() > 0:
		sb.WriteString("\n\nThe task completed partially.")
	default:
		sb.WriteString("\n\nAll steps completed.")
	}
	return sb.String()
}

func clip(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
