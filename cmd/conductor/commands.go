package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/normanking/conductor/internal/catalog"
	"github.com/normanking/conductor/internal/config"
	"github.com/normanking/conductor/internal/intent"
	"github.com/normanking/conductor/internal/llm"
	"github.com/normanking/conductor/internal/metrics"
	"github.com/normanking/conductor/internal/router"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CLASSIFY COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func classifyCmd() *cobra.Command {
	var (
		contextText string
		tasks       []string
	)

	cmd := &cobra.Command{
		Use:   "classify [message]",
		Short: "Classify the intention behind a message",
		Long: `Classify a user message into one of the intention categories.

Examples:
  conductor classify "hola, ¿cómo estás?"
  conductor classify "Necesito crear un dashboard de ventas" --task "Weekly report:running"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()

			e, cleanup, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			res := e.Classify(ctx, strings.Join(args, " "), contextText, parseTasks(tasks))
			if pretty {
				return renderClassification(os.Stdout, res)
			}
			return writeJSON(os.Stdout, res)
		},
	}

	cmd.Flags().StringVar(&contextText, "context", "", "recent conversation context")
	cmd.Flags().StringArrayVar(&tasks, "task", nil, "active task as title[:status] (repeatable)")
	return cmd
}

func parseTasks(specs []string) []intent.ActiveTask {
	var out []intent.ActiveTask
	for _, s := range specs {
		title, status, _ := strings.Cut(s, ":")
		if strings.TrimSpace(title) == "" {
			continue
		}
		if status == "" {
			status = "running"
		}
		out = append(out, intent.ActiveTask{Title: strings.TrimSpace(title), Status: strings.TrimSpace(status)})
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════════
// EXECUTE COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func executeCmd() *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "execute [task]",
		Short: "Execute a task with tools",
		Long: `Plan and execute a task. When the model proposes no tool calls a
standard plan runs anyway, so every task leaves artifacts in the workspace.

Examples:
  conductor execute "Build a landing page for my bakery"
  conductor execute --id q3-report "Research Q3 churn drivers"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()

			e, cleanup, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			task := e.Execute(ctx, strings.Join(args, " "), taskID)
			if pretty {
				return renderTask(os.Stdout, task, e.Workspace())
			}
			return writeJSON(os.Stdout, task)
		},
	}

	cmd.Flags().StringVar(&taskID, "id", "", "task id (generated when empty)")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// MODEL COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models discovered on the configured providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()

			e, cleanup, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			models := e.Models()
			if pretty {
				return renderModels(os.Stdout, models, e.Router().ActiveModel())
			}
			return writeJSON(os.Stdout, models)
		},
	}
}

func selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select [task-type]",
		Short: "Show which model the router picks for a task type",
		Long: `Show the model selected for a task type.

Task types: general, code, chat, analysis, research`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskType := router.TaskGeneral
			if len(args) == 1 {
				taskType = router.TaskType(strings.ToLower(args[0]))
				if !taskType.IsValid() {
					return fmt.Errorf("unknown task type %q", args[0])
				}
			}

			ctx, cancel := commandContext()
			defer cancel()

			e, cleanup, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			m := e.Select(taskType)
			if m == nil {
				return fmt.Errorf("no model available for %s", taskType)
			}
			if pretty {
				return renderModels(os.Stdout, []catalog.ModelDescriptor{*m}, "")
			}
			return writeJSON(os.Stdout, m)
		},
	}
}

func generateCmd() *cobra.Command {
	var (
		model     string
		system    string
		maxTokens int
	)

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Send a prompt through the router",
		Long: `Send a prompt to a model. Without --model the active model or the
best general model answers. Reads the prompt from stdin when no argument is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if strings.TrimSpace(prompt) == "" {
				data, err := io.ReadAll(bufio.NewReader(os.Stdin))
				if err != nil {
					return fmt.Errorf("failed to read prompt: %w", err)
				}
				prompt = string(data)
			}
			if strings.TrimSpace(prompt) == "" {
				return fmt.Errorf("empty prompt")
			}

			ctx, cancel := commandContext()
			defer cancel()

			e, cleanup, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if model == "" && e.Router().ActiveModel() == "" {
				if m := e.Select(router.TaskGeneral); m != nil {
					model = m.ID
				}
			}

			c, err := e.Generate(ctx, prompt, model, llm.Options{SystemPrompt: system, MaxTokens: maxTokens})
			if err != nil {
				return err
			}
			if pretty {
				return renderMarkdown(os.Stdout, c.Text)
			}
			return writeJSON(os.Stdout, c)
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "catalog id (provider/model)")
	cmd.Flags().StringVar(&system, "system", "", "system prompt")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "response token limit (0 for provider default)")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// STATS COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func statsCmd() *cobra.Command {
	var (
		days    int
		compact bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show call ledger statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := metrics.Open(cfg.Metrics.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open metrics store: %w", err)
			}
			defer store.Close()

			report, err := store.BuildReport(ctx, days, 10)
			if err != nil {
				return err
			}
			if !pretty {
				return writeJSON(os.Stdout, report)
			}

			dash := metrics.NewDashboard()
			if compact {
				fmt.Println(dash.RenderCompact(summarize(report.Today)))
				return nil
			}
			fmt.Println(dash.Render(report))
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "days of per-provider history")
	cmd.Flags().BoolVar(&compact, "compact", false, "one-line summary (with --pretty)")
	return cmd
}

// summarize folds a day of ledger rows into the compact summary shape.
func summarize(t *metrics.DailyStats) metrics.Summary {
	s := metrics.Summary{
		TotalCalls:      t.TotalCalls,
		AvgLatencyMs:    t.AvgLatencyMs,
		LocalCallRate:   t.LocalCallRate,
		FallbackCalls:   t.FallbackCalls,
		Classifications: t.Classifications,
		Executions:      t.Executions,
	}
	if t.TotalCalls > 0 {
		s.SuccessRate = float64(t.SuccessfulCalls) / float64(t.TotalCalls) * 100
	}
	return s
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := getConfigPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Default().SaveToPath(path); err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			redacted := *cfg
			redacted.LLM.Providers = make([]config.ProviderConfig, len(cfg.LLM.Providers))
			for i, p := range cfg.LLM.Providers {
				if p.APIKey != "" {
					p.APIKey = "********"
				}
				redacted.LLM.Providers[i] = p
			}
			if redacted.Tools.TavilyAPIKey != "" {
				redacted.Tools.TavilyAPIKey = "********"
			}
			data, err := yaml.Marshal(&redacted)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(getConfigPath())
		},
	})

	return cmd
}
