// Package main is the entry point for the Conductor CLI.
// Conductor classifies requests, routes them to the best available model
// and executes tasks with tools.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/normanking/conductor/internal/config"
	"github.com/normanking/conductor/internal/engine"
	"github.com/normanking/conductor/internal/logging"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	pretty  bool
	timeout time.Duration
	logger  *logging.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "conductor",
		Short: "Conductor - intent classification, model routing and task execution",
		Long: `Conductor is an LLM agent core that:
  • Classifies user messages into intentions
  • Routes requests to the best local or remote model
  • Executes tasks with sandboxed file and web search tools

Classify a message:   conductor classify "necesito un dashboard de ventas"
Run a task:           conductor execute "build a landing page for my bakery"
List models:          conductor models`,
		PersistentPreRunE:  initLogging,
		PersistentPostRunE: closeLogging,
		SilenceUsage:       true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.conductor/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "render human-readable output instead of JSON")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall command timeout")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Conductor v%s\n", version)
		},
	})

	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(executeCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(selectCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOGGING INITIALIZATION
// ═══════════════════════════════════════════════════════════════════════════════

func initLogging(cmd *cobra.Command, args []string) error {
	lc := logging.DefaultConfig()
	lc.Console = verbose

	// Only an existing file is read here so `config init` can still create
	// it. A broken file is reported by the command that needs it.
	if _, err := os.Stat(getConfigPath()); err == nil {
		if cfg, err := loadConfig(); err == nil {
			lc.Level = cfg.Logging.Level
			lc.File = cfg.Logging.File
			lc.MaxSizeMB = cfg.Logging.MaxSizeMB
			lc.MaxBackups = cfg.Logging.MaxBackups
			lc.MaxAgeDays = cfg.Logging.MaxAgeDays
		}
	}
	if verbose {
		lc.Level = "debug"
	}

	l, err := logging.New(lc)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger = l

	logger.Debug().
		Str("command", cmd.Name()).
		Str("config", getConfigPath()).
		Msg("conductor session started")
	return nil
}

func closeLogging(cmd *cobra.Command, args []string) error {
	return logger.Close()
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func getConfigPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".conductor", "config.yaml")
}

func loadConfig() (*config.Config, error) {
	return config.LoadFromPath(getConfigPath())
}

// commandContext bounds a command by --timeout and cancels on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// openEngine loads the config, assembles the engine and probes providers.
func openEngine(ctx context.Context) (*engine.Engine, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	e, err := engine.New(cfg, engine.WithLogger(logger.Logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize: %w", err)
	}

	if !e.Refresh(ctx) {
		logger.Warn().Msg("no models available; falling back to heuristics and templates")
	}

	cleanup := func() {
		if err := e.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close engine")
		}
	}
	return e, cleanup, nil
}
