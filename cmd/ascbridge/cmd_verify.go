package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ascbridge/internal/harness"
	"ascbridge/internal/provision"
	"ascbridge/internal/verify"
)

func (a *app) verifyCmd() *cobra.Command {
	var (
		strategyFlag string
		browserFlag  string
		parallel     int
		strictRetry  bool
		layout       bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the build in a real browser",
		Long: `Runs the verification matrix: each scenario provisions a server, opens a
fresh Chromium, loads the page and waits for the first decisive signal.
A scenario passes when the page logs "PASS! (modernBrowser = <bool>)"
with no script error, failed request, crash or console error first.
Failed attempts are retried (verify.max_attempts, verify.backoff).

Legacy scenarios emulate a browser without ES module support.

Examples:
  ascbridge verify
  ascbridge verify --strategy static --browser modern
  ascbridge verify --parallel 4 --strict-retry`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			strategies, err := parseStrategies(strategyFlag)
			if err != nil {
				return err
			}
			modes, err := parseBrowsers(browserFlag)
			if err != nil {
				return err
			}

			cfg := a.cfg
			if strictRetry {
				cfg.Verify.ShortCircuit = true
			}
			if !cmd.Flags().Changed("parallel") {
				parallel = cfg.Verify.Parallel
			}

			driver := &verify.RodDriver{
				Bin:       cfg.Verify.BrowserBin,
				Headless:  cfg.Verify.Headless,
				NoSandbox: cfg.Verify.NoSandbox,
			}
			runner := harness.NewRunner(cfg, driver)
			scenarios := harness.DefaultMatrix(cfg.Project, harness.Filter{
				Strategies: strategies,
				Modern:     modes,
				Layout:     layout,
			})

			ctx, cancel := a.boundedContext()
			defer cancel()

			a.logger.Info("Running verification matrix",
				zap.Int("scenarios", len(scenarios)),
				zap.Int("parallel", parallel),
				zap.Bool("short_circuit", cfg.Verify.ShortCircuit))
			results := runner.RunMatrix(ctx, scenarios, parallel)
			harness.WriteReport(cmd.OutOrStdout(), results)

			if n := harness.Failed(results); n > 0 {
				return fmt.Errorf("%w: %d of %d scenarios", harness.ErrFailed, n, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&strategyFlag, "strategy", "all", "Provisioning strategy: live, static or all")
	cmd.Flags().StringVar(&browserFlag, "browser", "all", "Browser mode: modern, legacy or all")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "Scenarios run at once (default from verify.parallel)")
	cmd.Flags().BoolVar(&strictRetry, "strict-retry", false, "Only retry browser transport failures")
	cmd.Flags().BoolVar(&layout, "layout", true, "Include the layout-failure scenarios")
	return cmd
}

// parseStrategies maps "all" to nil, which selects every strategy.
func parseStrategies(s string) ([]provision.Strategy, error) {
	if strings.EqualFold(s, "all") {
		return nil, nil
	}
	st, err := provision.ParseStrategy(strings.ToLower(s))
	if err != nil {
		return nil, err
	}
	return []provision.Strategy{st}, nil
}

func parseBrowsers(s string) ([]bool, error) {
	switch strings.ToLower(s) {
	case "all":
		return nil, nil
	case "modern":
		return []bool{true}, nil
	case "legacy":
		return []bool{false}, nil
	}
	return nil, fmt.Errorf("unknown browser mode %q (want modern, legacy or all)", s)
}
