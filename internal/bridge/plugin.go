// Package bridge connects a host build tool to the AssemblyScript compiler.
// A Plugin validates the project up front, compiles a release build when
// the host starts a build, and recompiles in debug mode when a watched
// source file changes.
package bridge

import (
	"context"
	"fmt"

	"ascbridge/internal/build"
	"ascbridge/internal/config"
	"ascbridge/internal/logging"
)

// Name is the plugin name reported to the host.
const Name = "vite-plugin-assemblyscript"

// Compiler runs one compile. *build.Invoker implements it.
type Compiler interface {
	Invoke(ctx context.Context, project config.ProjectConfig, mode build.Mode) (*build.Result, error)
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithCompiler replaces the default build.Invoker.
func WithCompiler(c Compiler) Option {
	return func(p *Plugin) { p.compiler = c }
}

// Plugin is the compile bridge installed into a host build tool.
type Plugin struct {
	project  config.ProjectConfig
	compiler Compiler
	trigger  *Trigger
}

// New validates project and returns a plugin for it. Layout errors are
// returned as *ConfigError before any compiler runs.
func New(project config.ProjectConfig, opts ...Option) (*Plugin, error) {
	if err := ValidateLayout(project); err != nil {
		return nil, err
	}

	p := &Plugin{project: project, compiler: &build.Invoker{}}
	for _, opt := range opts {
		opt(p)
	}

	trigger, err := NewTrigger(project, p.compiler)
	if err != nil {
		return nil, err
	}
	p.trigger = trigger
	return p, nil
}

func (p *Plugin) Name() string { return Name }

// Project returns the merged project configuration.
func (p *Plugin) Project() config.ProjectConfig { return p.project }

// Trigger exposes the rebuild trigger, e.g. to read its state.
func (p *Plugin) Trigger() *Trigger { return p.trigger }

// BuildStart compiles a release build and copies its source map.
func (p *Plugin) BuildStart(ctx context.Context) error {
	logging.Build("Build start: compiling %s (release)", p.project.EntryFile)
	if _, err := p.compiler.Invoke(ctx, p.project, build.ModeRelease); err != nil {
		return err
	}
	if _, err := build.CopySourceMap(p.project); err != nil {
		return fmt.Errorf("build start: %w", err)
	}
	return nil
}

// HandleFileChange forwards a host file-change notification to the trigger.
func (p *Plugin) HandleFileChange(ctx context.Context, path string) error {
	return p.trigger.OnFileChanged(ctx, path)
}

// WatchDirs asks the host to watch the AssemblyScript sources too.
func (p *Plugin) WatchDirs() []string {
	return []string{p.project.WatchPath()}
}
