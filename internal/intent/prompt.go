package intent

import (
	"fmt"
	"strings"
)

const (
	// maxContextRunes bounds the conversation context embedded in a prompt.
	maxContextRunes = 1000

	// maxPromptTasks bounds the active tasks listed in a prompt.
	maxPromptTasks = 3
)

// systemPrompt sets the classifier model's behavior.
const systemPrompt = `You are an intention classifier for a task-executing assistant.
You read one user message (English or Spanish) and answer with a single JSON object and nothing else.`

// classificationTemplate is filled with the message, context and tasks.
const classificationTemplate = `Classify the user's message into exactly ONE category.

Categories:
- casual_conversation: greetings, small talk, thanks
- information_request: questions that need an answer, not work
- simple_task: a single concrete action (write one file, look one thing up)
- complex_task: multi-step work (dashboards, reports, sites, analyses)
- task_management: status, pause, resume or cancel of an existing task
- agent_configuration: changing the assistant's settings, models or behavior
- unclear: not enough information to decide

Message:
%s

Conversation context:
%s

Active tasks:
%s

Respond with JSON only:
{
  "category": "<one category>",
  "confidence": <number between 0 and 1>,
  "reasoning": "<one sentence>",
  "extracted_entities": {"task_title": "<short title if a task>"},
  "suggested_action": "<next step>",
  "requires_clarification": <true|false>,
  "clarification_questions": ["<question>"]
}`

// BuildPrompt renders the classification prompt. Context is cut to its
// first 1000 runes and at most three active tasks are listed.
func BuildPrompt(message, context string, activeTasks []ActiveTask) string {
	ctx := strings.TrimSpace(truncate(context, maxContextRunes))
	if ctx == "" {
		ctx = "(none)"
	}

	var tasks strings.Builder
	for i, t := range activeTasks {
		if i == maxPromptTasks {
			break
		}
		status := t.Status
		if status == "" {
			status = "unknown"
		}
		fmt.Fprintf(&tasks, "- %s (%s)\n", t.Title, status)
	}
	taskList := strings.TrimRight(tasks.String(), "\n")
	if taskList == "" {
		taskList = "(none)"
	}

	return fmt.Sprintf(classificationTemplate, message, ctx, taskList)
}

func truncate(s string, limit int) string {
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
