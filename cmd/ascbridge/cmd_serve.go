package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ascbridge/internal/bridge"
	"ascbridge/internal/host"
	"ascbridge/internal/provision"
)

const shutdownGrace = 5 * time.Second

func (a *app) devCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dev",
		Short: "Run the live dev server",
		Long: `Compiles a release build, then serves the web root from disk. Changes
under the watched folder trigger a debug build and connected pages reload.
Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plugin, err := bridge.New(a.cfg.Project)
			if err != nil {
				return err
			}
			dev, err := host.NewDevServer(host.DevServerOptions{
				Root:         a.cfg.Serve.WebRoot,
				Host:         a.cfg.Serve.Host,
				Port:         a.cfg.Serve.Port,
				CacheEntries: a.cfg.Serve.CacheEntries,
				Plugins:      []host.Plugin{plugin},
			})
			if err != nil {
				return err
			}

			ctx, cancel := a.untilSignal()
			defer cancel()

			if err := dev.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dev server: %s (Ctrl+C to stop)\n", dev.URL())
			<-ctx.Done()

			return a.shutdown("dev server", dev.Close)
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Build a static bundle and serve it from memory",
		Long: `Runs one release build of the web root with the bridge installed and
serves the bundle through the artifact server until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.untilSignal()
			defer cancel()

			p := &provision.Static{
				Base:    a.cfg.Project,
				WebRoot: a.cfg.Serve.WebRoot,
				Host:    a.cfg.Serve.Host,
			}
			inst, err := p.Provision(ctx, a.cfg.Project)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "serving bundle: %s (Ctrl+C to stop)\n", inst.URL)
			<-ctx.Done()

			return a.shutdown("artifact server", inst.Close)
		},
	}
}

func (a *app) shutdown(what string, closeFn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := closeFn(ctx); err != nil {
		a.logger.Warn("Shutdown incomplete", zap.String("server", what), zap.Error(err))
		return err
	}
	a.logger.Info("Stopped", zap.String("server", what))
	return nil
}
