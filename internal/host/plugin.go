// Package host is the minimal build host the bridge plugs into: a one-shot
// Bundler that collects a web root into output files, and a DevServer that
// serves the web root live and forwards file changes to plugins.
package host

import "context"

// Plugin is the hook surface the host calls. BuildStart runs before any
// build or before the dev server accepts requests; an error aborts it.
// HandleFileChange runs for every changed path under a watched root.
type Plugin interface {
	Name() string
	BuildStart(ctx context.Context) error
	HandleFileChange(ctx context.Context, path string) error
}

// WatchTargeter is implemented by plugins that need extra watch roots.
type WatchTargeter interface {
	WatchDirs() []string
}

func buildStart(ctx context.Context, plugins []Plugin) error {
	for _, p := range plugins {
		if err := p.BuildStart(ctx); err != nil {
			return &PluginError{Plugin: p.Name(), Hook: "buildStart", Err: err}
		}
	}
	return nil
}

// PluginError wraps an error returned from a plugin hook.
type PluginError struct {
	Plugin string
	Hook   string
	Err    error
}

func (e *PluginError) Error() string {
	return "[plugin " + e.Plugin + "] " + e.Hook + ": " + e.Err.Error()
}

func (e *PluginError) Unwrap() error { return e.Err }
