package provision

import (
	"context"
	"fmt"
	"net"

	"ascbridge/internal/artifact"
	"ascbridge/internal/bridge"
	"ascbridge/internal/config"
	"ascbridge/internal/host"
	"ascbridge/internal/logging"
)

// Builder runs a one-shot build. *host.Bundler implements it.
type Builder interface {
	Build(ctx context.Context, root string, plugins ...host.Plugin) (*host.Result, error)
}

// Static provisions by running one release build and serving its output
// from memory.
type Static struct {
	Base          config.ProjectConfig
	WebRoot       string
	Host          string
	Builder       Builder // defaults to a host.Bundler skipping the dist folder
	PluginOptions []bridge.Option
}

func (s *Static) Strategy() Strategy { return StrategyStatic }

// Provision builds once, flattens the result and binds an artifact server.
func (s *Static) Provision(ctx context.Context, overrides config.ProjectConfig) (*Instance, error) {
	timer := logging.StartTimer(logging.CategoryProvision, "static provision")
	defer timer.Stop()

	project := baseProject(s.Base).Merge(overrides)
	plugin, err := bridge.New(project, s.PluginOptions...)
	if err != nil {
		return nil, err
	}

	builder := s.Builder
	if builder == nil {
		builder = &host.Bundler{Skip: []string{project.DistRoot}}
	}
	res, err := builder.Build(ctx, s.WebRoot, plugin)
	if err != nil {
		return nil, &Error{Strategy: StrategyStatic, Op: "build", Err: err}
	}

	files, err := Flatten(res)
	if err != nil {
		logging.ProvisionWarn("Unusable build result: %v", err)
		return nil, &Error{Strategy: StrategyStatic, Op: "flatten", Err: err}
	}

	bindHost := s.Host
	if bindHost == "" {
		bindHost = "127.0.0.1"
	}
	srv := artifact.NewServer(files)
	url, err := srv.Listen(net.JoinHostPort(bindHost, "0"))
	if err != nil {
		return nil, &Error{Strategy: StrategyStatic, Op: "listen", Err: err}
	}

	logging.Provision("Static bundle (%d files) served at %s", len(files), url)
	logging.Audit(logging.AuditEvent{Type: logging.AuditProvisionReady, Target: url, Success: true,
		Fields: map[string]interface{}{"files": len(files)}})
	return &Instance{URL: url, Strategy: StrategyStatic, close: srv.Close}, nil
}

// Flatten turns a build result, including nested per-target results, into
// an artifact map. Anything it cannot serve unambiguously is rejected with
// ErrMalformedResult.
func Flatten(res *host.Result) (artifact.Map, error) {
	files := make(map[string][]byte)
	if err := collect(res, files); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: build produced no files", ErrMalformedResult)
	}
	return artifact.NewMap(files)
}

func collect(res *host.Result, files map[string][]byte) error {
	if res == nil {
		return fmt.Errorf("%w: nil result", ErrMalformedResult)
	}
	if res.Watching {
		return fmt.Errorf("%w: internal error: got a watcher instead of build output", ErrMalformedResult)
	}

	for _, f := range res.Output {
		if f.FileName == "" {
			return fmt.Errorf("%w: output file without a name", ErrMalformedResult)
		}
		var content []byte
		switch f.Kind {
		case host.KindChunk:
			content = []byte(f.Code) // empty scripts are valid chunks
		case host.KindAsset:
			content = f.Source
		default:
			return fmt.Errorf("%w: %s has unknown kind %q", ErrMalformedResult, f.FileName, f.Kind)
		}

		key := artifact.NormalizePath(f.FileName)
		if _, dup := files[key]; dup {
			return fmt.Errorf("%w: duplicate output %s", ErrMalformedResult, key)
		}
		files[key] = content
	}

	for _, nested := range res.Outputs {
		if err := collect(nested, files); err != nil {
			return err
		}
	}
	return nil
}
