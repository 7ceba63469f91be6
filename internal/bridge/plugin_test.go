package bridge

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ascbridge/internal/build"
	"ascbridge/internal/config"
	"ascbridge/internal/testutil"
)

// recordingCompiler records modes and optionally blocks until released.
type recordingCompiler struct {
	mu      sync.Mutex
	calls   []build.Mode
	err     error
	started chan struct{}
	release chan struct{}
}

func (c *recordingCompiler) Invoke(ctx context.Context, project config.ProjectConfig, mode build.Mode) (*build.Result, error) {
	c.mu.Lock()
	c.calls = append(c.calls, mode)
	c.mu.Unlock()

	if c.started != nil {
		c.started <- struct{}{}
	}
	if c.release != nil {
		<-c.release
	}
	if c.err != nil {
		return nil, c.err
	}
	return &build.Result{Mode: mode}, nil
}

func (c *recordingCompiler) modes() []build.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]build.Mode(nil), c.calls...)
}

func quietInvoker() *build.Invoker {
	return &build.Invoker{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
}

func TestPluginName(t *testing.T) {
	p, err := New(testutil.NewProject(t), WithCompiler(&recordingCompiler{}))
	require.NoError(t, err)
	assert.Equal(t, "vite-plugin-assemblyscript", p.Name())
}

func TestBuildStartCompilesReleaseAndCopiesMap(t *testing.T) {
	project := testutil.NewProject(t)
	p, err := New(project, WithCompiler(quietInvoker()))
	require.NoError(t, err)

	require.NoError(t, p.BuildStart(context.Background()))

	wasm, err := os.ReadFile(project.ArtifactPath())
	require.NoError(t, err)
	assert.Equal(t, "wasm-release", string(wasm))

	data, err := os.ReadFile(project.DistSourceMapPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mode":"release"`)
}

func TestBuildStartPropagatesCompileError(t *testing.T) {
	project := testutil.WithEnv(testutil.NewProject(t), testutil.EnvExit, "1")
	p, err := New(project, WithCompiler(quietInvoker()))
	require.NoError(t, err)

	err = p.BuildStart(context.Background())
	var cerr *build.CompileError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, build.ModeRelease, cerr.Mode)
}

func TestHandleFileChangeRebuildsDebug(t *testing.T) {
	project := testutil.NewProject(t)
	p, err := New(project, WithCompiler(quietInvoker()))
	require.NoError(t, err)

	changed := filepath.Join(project.WatchPath(), "index.ts")
	require.NoError(t, p.HandleFileChange(context.Background(), changed))

	wasm, err := os.ReadFile(project.ArtifactPath())
	require.NoError(t, err)
	assert.Equal(t, "wasm-debug", string(wasm))
	_, err = os.Stat(project.DistSourceMapPath())
	assert.NoError(t, err)
}

func TestWatchDirs(t *testing.T) {
	project := testutil.NewProject(t)
	p, err := New(project, WithCompiler(&recordingCompiler{}))
	require.NoError(t, err)
	assert.Equal(t, []string{project.WatchPath()}, p.WatchDirs())
}
