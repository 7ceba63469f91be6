// Command ascbridge compiles AssemblyScript projects for a web build, serves
// them, and verifies in a real browser that the page loads and runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ascbridge/internal/config"
	"ascbridge/internal/logging"
)

// app holds what every subcommand shares once flags are parsed.
type app struct {
	// Global flags
	configPath  string
	verbose     bool
	timeout     time.Duration
	projectRoot string
	entryFile   string
	webRoot     string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ascbridge",
		Short: "AssemblyScript build bridge with browser verification",
		Long: `ascbridge runs the AssemblyScript compiler as part of a web build.

A release build runs when a build starts, debug builds run whenever a file
under the project's watched folder changes, and the source map is copied
into the dist folder. The verify command serves the result through a live
dev server or a static bundle and checks in Chromium that the page logs
"PASS! (modernBrowser = <bool>)".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "ascbridge.yaml", "Config file (missing file means defaults)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 10*time.Minute, "Deadline for check, build and verify (0 disables)")
	root.PersistentFlags().StringVar(&a.projectRoot, "project-root", "", "AssemblyScript project root (overrides config)")
	root.PersistentFlags().StringVar(&a.entryFile, "entry", "", "Entry file relative to the project root (overrides config)")
	root.PersistentFlags().StringVar(&a.webRoot, "web-root", "", "Directory holding index.html (overrides config)")

	root.AddCommand(
		a.checkCmd(),
		a.buildCmd(),
		a.watchCmd(),
		a.devCmd(),
		a.serveCmd(),
		a.verifyCmd(),
	)
	return root
}

// init loads configuration, applies flag overrides and starts logging.
// Flags are the last override layer, after the file and the environment.
func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	cfg.Project = cfg.Project.Merge(config.ProjectConfig{
		SourceRoot: a.projectRoot,
		EntryFile:  a.entryFile,
	})
	if a.webRoot != "" {
		cfg.Serve.WebRoot = a.webRoot
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.Initialize(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Dir:        cfg.Logging.Dir,
		DebugMode:  cfg.Logging.DebugMode,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logging.L()
	a.logger.Debug("Configuration loaded",
		zap.String("config", a.configPath),
		zap.String("project_root", cfg.Project.SourceRoot),
		zap.String("entry", cfg.Project.EntryFile),
		zap.String("web_root", cfg.Serve.WebRoot))
	return nil
}

// boundedContext is cancelled on SIGINT/SIGTERM and, when the timeout flag
// is set, at the deadline.
func (a *app) boundedContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if a.timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, a.timeout)
	return tctx, func() {
		cancel()
		stop()
	}
}

// untilSignal is cancelled on SIGINT/SIGTERM only.
func (a *app) untilSignal() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
