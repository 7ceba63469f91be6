package provision

import (
	"context"
	"time"

	"ascbridge/internal/bridge"
	"ascbridge/internal/config"
	"ascbridge/internal/host"
	"ascbridge/internal/logging"
)

// Live provisions through a dev server with the bridge plugin installed.
type Live struct {
	Base          config.ProjectConfig // merged onto the defaults before overrides
	WebRoot       string
	Host          string
	ReadyTimeout  time.Duration
	PollInterval  time.Duration
	CacheEntries  int
	PluginOptions []bridge.Option
}

func (l *Live) Strategy() Strategy { return StrategyLive }

// Provision validates the project, starts the dev server (which compiles a
// release build first) and waits until its port accepts connections.
// Layout errors come back as *bridge.ConfigError with no server started.
func (l *Live) Provision(ctx context.Context, overrides config.ProjectConfig) (*Instance, error) {
	timer := logging.StartTimer(logging.CategoryProvision, "live provision")
	defer timer.Stop()

	project := baseProject(l.Base).Merge(overrides)
	plugin, err := bridge.New(project, l.PluginOptions...)
	if err != nil {
		return nil, err
	}

	dev, err := host.NewDevServer(host.DevServerOptions{
		Root:         l.WebRoot,
		Host:         l.hostOrDefault(),
		CacheEntries: l.CacheEntries,
		Plugins:      []host.Plugin{plugin},
	})
	if err != nil {
		return nil, &Error{Strategy: StrategyLive, Op: "init", Err: err}
	}
	if err := dev.Start(ctx); err != nil {
		logging.Audit(logging.AuditEvent{Type: logging.AuditProvisionError, Target: string(StrategyLive), Error: err.Error()})
		return nil, &Error{Strategy: StrategyLive, Op: "start", Err: err}
	}

	timeout := l.ReadyTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if err := WaitPort(ctx, dev.Addr(), l.PollInterval, timeout); err != nil {
		_ = dev.Close(context.WithoutCancel(ctx))
		return nil, &Error{Strategy: StrategyLive, Op: "ready", Err: err}
	}

	url := dev.URL()
	logging.Provision("Live server ready at %s", url)
	logging.Audit(logging.AuditEvent{Type: logging.AuditProvisionReady, Target: url, Success: true})
	return &Instance{URL: url, Strategy: StrategyLive, close: dev.Close}, nil
}

func (l *Live) hostOrDefault() string {
	if l.Host == "" {
		return "127.0.0.1"
	}
	return l.Host
}
