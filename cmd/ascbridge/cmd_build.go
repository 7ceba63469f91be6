package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ascbridge/internal/bridge"
	"ascbridge/internal/build"
	"ascbridge/internal/host"
)

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the project layout",
		Long: `Checks that the project root is an existing folder and that the entry
file exists under it. Nothing is compiled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bridge.ValidateLayout(a.cfg.Project); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s\n", a.cfg.Project.EntryPath())
			return nil
		},
	}
}

func (a *app) buildCmd() *cobra.Command {
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile once and copy the source map",
		Long: `Runs the compiler once in the given mode. The source map, when the
compiler wrote one, is copied under the dist folder.

Examples:
  ascbridge build
  ascbridge build --mode debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := build.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			project := a.cfg.Project
			if err := bridge.ValidateLayout(project); err != nil {
				return err
			}

			ctx, cancel := a.boundedContext()
			defer cancel()

			inv := &build.Invoker{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
			res, err := inv.Invoke(ctx, project, mode)
			if err != nil {
				return err
			}
			copied, err := build.CopySourceMap(project)
			if err != nil {
				a.logger.Warn("Source map not copied", zap.Error(err))
			}
			a.logger.Info("Build finished",
				zap.String("mode", mode.String()),
				zap.Duration("duration", res.Duration),
				zap.Bool("source_map", copied))
			return nil
		},
	}
	cmd.Flags().StringVar(&modeFlag, "mode", string(build.ModeRelease), "Build mode: release or debug")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Rebuild in debug mode whenever a watched source changes",
		Long: `Runs a release build, then watches the project's watched folder and
compiles a debug build for every change until interrupted. No server is
started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plugin, err := bridge.New(a.cfg.Project)
			if err != nil {
				return err
			}

			ctx, cancel := a.untilSignal()
			defer cancel()

			if err := plugin.BuildStart(ctx); err != nil {
				return err
			}

			w, err := host.NewWatcher(plugin.WatchDirs(), func(ctx context.Context, path string) {
				if err := plugin.HandleFileChange(ctx, path); err != nil {
					a.logger.Warn("Rebuild failed", zap.String("path", path), zap.Error(err))
				}
			})
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer w.Stop()
			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "watching %s (Ctrl+C to stop)\n", plugin.Trigger().WatchRoot())
			<-ctx.Done()
			return nil
		},
	}
}
