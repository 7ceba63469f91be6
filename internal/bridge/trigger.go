package bridge

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"ascbridge/internal/build"
	"ascbridge/internal/config"
	"ascbridge/internal/logging"
)

// State is the rebuild trigger state.
type State int

const (
	StateIdle State = iota
	StateCompiling
)

func (s State) String() string {
	if s == StateCompiling {
		return "compiling"
	}
	return "idle"
}

// Trigger decides whether a changed file warrants a debug rebuild and runs
// it. Events are not queued or coalesced: concurrent matches each run their
// own compile, and State reads Compiling while any of them is in flight.
type Trigger struct {
	project  config.ProjectConfig
	compiler Compiler
	watchAbs string
	inflight atomic.Int32
}

// NewTrigger resolves the watch directory against the working directory.
func NewTrigger(project config.ProjectConfig, compiler Compiler) (*Trigger, error) {
	abs, err := filepath.Abs(project.WatchPath())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch path: %w", err)
	}
	return &Trigger{project: project, compiler: compiler, watchAbs: abs}, nil
}

// State reports whether a compile is running.
func (t *Trigger) State() State {
	if t.inflight.Load() > 0 {
		return StateCompiling
	}
	return StateIdle
}

// WatchRoot is the absolute directory whose contents trigger rebuilds.
func (t *Trigger) WatchRoot() string { return t.watchAbs }

// Matches reports whether path is the watch directory or lies under it.
// Relative paths resolve against the working directory.
func (t *Trigger) Matches(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(t.watchAbs, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// OnFileChanged runs a debug compile plus source-map copy when path
// matches. Non-matching paths are ignored without a state change.
func (t *Trigger) OnFileChanged(ctx context.Context, path string) error {
	if !t.Matches(path) {
		logging.WatchDebug("Ignoring change outside %s: %s", t.watchAbs, path)
		logging.Audit(logging.AuditEvent{Type: logging.AuditRebuildIgnored, Target: path, Success: true,
			Fields: map[string]interface{}{"watch_root": t.watchAbs}})
		return nil
	}

	t.inflight.Add(1)
	defer t.inflight.Add(-1)

	logging.Watch("Source changed: %s, rebuilding (debug)", path)
	logging.Audit(logging.AuditEvent{Type: logging.AuditRebuildTriggered, Target: path, Success: true})

	if _, err := t.compiler.Invoke(ctx, t.project, build.ModeDebug); err != nil {
		return fmt.Errorf("rebuild after %s: %w", filepath.Base(path), err)
	}
	if _, err := build.CopySourceMap(t.project); err != nil {
		return fmt.Errorf("rebuild after %s: %w", filepath.Base(path), err)
	}
	return nil
}
