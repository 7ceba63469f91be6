// Package provision turns a project into a URL a browser can load, either
// through a live dev server or through a one-shot release bundle served
// from memory.
package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ascbridge/internal/config"
)

// Strategy names a provisioning strategy.
type Strategy string

const (
	StrategyLive   Strategy = "live"
	StrategyStatic Strategy = "static"
)

// ParseStrategy accepts "live" or "static".
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyLive, StrategyStatic:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown strategy %q (want live or static)", s)
}

var (
	// ErrMalformedResult marks a build result that cannot be served.
	ErrMalformedResult = errors.New("malformed build result")
	// ErrNotReady marks a server that never accepted connections.
	ErrNotReady = errors.New("server not ready")
)

// Error is a provisioning failure. None of them are worth retrying.
type Error struct {
	Strategy Strategy
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provision %s: %s: %v", e.Strategy, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Permanent reports that the supervisor must not retry.
func (e *Error) Permanent() bool { return true }

// Provisioner makes a project reachable over HTTP.
type Provisioner interface {
	Strategy() Strategy
	Provision(ctx context.Context, overrides config.ProjectConfig) (*Instance, error)
}

// Instance is a running server. Close releases it; calling Close more than
// once is safe.
type Instance struct {
	URL      string
	Strategy Strategy

	once  sync.Once
	close func(context.Context) error
	err   error
}

// Close stops the server behind the instance.
func (i *Instance) Close(ctx context.Context) error {
	i.once.Do(func() {
		if i.close != nil {
			i.err = i.close(ctx)
		}
	})
	return i.err
}

func baseProject(base config.ProjectConfig) config.ProjectConfig {
	return config.DefaultProject().Merge(base)
}
