// Package harness runs end-to-end verification scenarios: provision a
// build, load it in a browser, and retry the whole attempt until the page
// reports the expected line.
package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ascbridge/internal/config"
	"ascbridge/internal/logging"
	"ascbridge/internal/provision"
	"ascbridge/internal/retry"
	"ascbridge/internal/verify"
)

// Scenario is one cell of the verification matrix.
type Scenario struct {
	Name      string
	Strategy  provision.Strategy
	Modern    bool
	Overrides config.ProjectConfig

	// WantErr, when set, is the exact error provisioning must fail with.
	// No browser is launched for such scenarios.
	WantErr string
}

// Result is the outcome of one scenario.
type Result struct {
	Scenario Scenario
	Verdict  verify.Verdict
	Err      error
	Attempts int
	Elapsed  time.Duration
}

// OK reports whether the scenario behaved as expected.
func (r Result) OK() bool {
	if r.Scenario.WantErr != "" {
		return r.Err != nil && r.Err.Error() == r.Scenario.WantErr
	}
	return r.Err == nil && r.Verdict.Passed
}

// Detail is a one-line description of the outcome.
func (r Result) Detail() string {
	switch {
	case r.Scenario.WantErr != "" && r.OK():
		return r.Err.Error()
	case r.Err != nil:
		return r.Err.Error()
	default:
		return r.Verdict.String()
	}
}

// Runner executes scenarios.
type Runner struct {
	Provisioners   map[provision.Strategy]provision.Provisioner
	Session        *verify.Session
	Policy         retry.Policy
	SessionTimeout time.Duration // per attempt; zero means no limit
}

// NewRunner wires a runner from configuration.
func NewRunner(cfg *config.Config, driver verify.Driver) *Runner {
	live := &provision.Live{
		Base:         cfg.Project,
		WebRoot:      cfg.Serve.WebRoot,
		Host:         cfg.Serve.Host,
		ReadyTimeout: cfg.GetReadyTimeout(),
		PollInterval: cfg.GetPollInterval(),
		CacheEntries: cfg.Serve.CacheEntries,
	}
	static := &provision.Static{
		Base:    cfg.Project,
		WebRoot: cfg.Serve.WebRoot,
		Host:    cfg.Serve.Host,
	}
	return &Runner{
		Provisioners: map[provision.Strategy]provision.Provisioner{
			provision.StrategyLive:   live,
			provision.StrategyStatic: static,
		},
		Session: verify.NewSession(driver),
		Policy: retry.Policy{
			MaxAttempts:  cfg.Verify.MaxAttempts,
			Backoff:      cfg.GetBackoff(),
			ShortCircuit: cfg.Verify.ShortCircuit,
		},
		SessionTimeout: cfg.GetSessionTimeout(),
	}
}

// Run executes one scenario. Every attempt provisions a fresh server and
// a fresh browser and tears both down before the next one.
func (r *Runner) Run(ctx context.Context, sc Scenario) Result {
	log := logging.Get(logging.CategoryHarness).With("scenario", sc.Name)
	started := time.Now()
	res := Result{Scenario: sc}

	prov, ok := r.Provisioners[sc.Strategy]
	if !ok {
		res.Err = fmt.Errorf("no provisioner for strategy %q", sc.Strategy)
		return res
	}

	sup := &retry.Supervisor{
		Policy:    r.Policy,
		OnAttempt: func(a retry.Attempt) { res.Attempts = a.Index },
	}
	res.Err = sup.Run(ctx, func(ctx context.Context, attempt int) error {
		log.Debug("Attempt %d", attempt)
		v, err := r.attempt(ctx, prov, sc)
		res.Verdict = v
		if err != nil {
			return err
		}
		return v.Err()
	})
	res.Elapsed = time.Since(started)

	if res.OK() {
		log.Info("OK after %d attempt(s) in %s", res.Attempts, res.Elapsed)
	} else {
		log.Warn("FAILED after %d attempt(s): %s", res.Attempts, res.Detail())
	}
	return res
}

func (r *Runner) attempt(ctx context.Context, prov provision.Provisioner, sc Scenario) (verify.Verdict, error) {
	inst, err := prov.Provision(ctx, sc.Overrides)
	if err != nil {
		return verify.Verdict{}, err
	}
	defer func() {
		if cerr := inst.Close(context.WithoutCancel(ctx)); cerr != nil {
			logging.HarnessDebug("Closing %s server: %v", inst.Strategy, cerr)
		}
	}()

	if sc.WantErr != "" {
		return verify.Verdict{}, &expectationError{want: sc.WantErr}
	}

	sctx := ctx
	if r.SessionTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, r.SessionTimeout)
		defer cancel()
	}
	return r.Session.Verify(sctx, inst.URL, sc.Modern)
}

// RunMatrix runs scenarios with at most parallel of them at once and
// returns results in scenario order.
func (r *Runner) RunMatrix(ctx context.Context, scenarios []Scenario, parallel int) []Result {
	if parallel < 1 {
		parallel = 1
	}
	results := make([]Result, len(scenarios))
	logging.Harness("Running %d scenario(s), %d at a time", len(scenarios), parallel)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			results[i] = r.Run(gctx, sc)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Failed counts results that did not behave as expected.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// expectationError reports that provisioning succeeded where it should
// have failed. Retrying cannot change that.
type expectationError struct {
	want string
}

func (e *expectationError) Error() string {
	return fmt.Sprintf("expected error %q, got none", e.want)
}

func (e *expectationError) Permanent() bool { return true }

// ErrFailed is returned by callers that turn a failing matrix into an exit
// status.
var ErrFailed = errors.New("verification failed")
