package bridge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ascbridge/internal/build"
	"ascbridge/internal/config"
	"ascbridge/internal/logging"
)

func newTrigger(t *testing.T, compiler Compiler) (*Trigger, config.ProjectConfig) {
	t.Helper()
	project := config.DefaultProject().Merge(config.ProjectConfig{
		SourceRoot: filepath.Join(t.TempDir(), "engine"),
	})
	tr, err := NewTrigger(project, compiler)
	require.NoError(t, err)
	return tr, project
}

func TestTriggerMatches(t *testing.T) {
	tr, project := newTrigger(t, &recordingCompiler{})
	watch := project.WatchPath()

	assert.True(t, tr.Matches(watch))
	assert.True(t, tr.Matches(filepath.Join(watch, "index.ts")))
	assert.True(t, tr.Matches(filepath.Join(watch, "lib", "math.ts")))
	assert.True(t, tr.Matches(filepath.Join(watch, "..", "assembly", "index.ts")))

	assert.False(t, tr.Matches(filepath.Join(project.SourceRoot, "asconfig.json")))
	assert.False(t, tr.Matches(filepath.Join(project.SourceRoot, "assembly-old", "index.ts")))
	assert.False(t, tr.Matches(filepath.Join(project.SourceRoot, "..", "web", "assembly", "index.ts")))
}

func TestTriggerMatchesRelativePaths(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	tr, err := NewTrigger(config.DefaultProject(), &recordingCompiler{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(wd, "src", "engine", "assembly"), tr.WatchRoot())
	assert.True(t, tr.Matches(filepath.Join("src", "engine", "assembly", "index.ts")))
	assert.False(t, tr.Matches(filepath.Join("src", "web", "main.ts")))
}

func TestTriggerIgnoresNonMatching(t *testing.T) {
	compiler := &recordingCompiler{}
	tr, project := newTrigger(t, compiler)

	require.NoError(t, tr.OnFileChanged(context.Background(), filepath.Join(project.SourceRoot, "README.md")))

	assert.Empty(t, compiler.modes())
	assert.Equal(t, StateIdle, tr.State())
}

func TestTriggerAuditsIgnoredChange(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(nil) })

	tr, project := newTrigger(t, &recordingCompiler{})
	readme := filepath.Join(project.SourceRoot, "README.md")
	require.NoError(t, tr.OnFileChanged(context.Background(), readme))

	ignored := logs.FilterField(zap.String("event", string(logging.AuditRebuildIgnored))).All()
	require.Len(t, ignored, 1)
	assert.Equal(t, readme, ignored[0].ContextMap()["target"])
	assert.Equal(t, tr.WatchRoot(), ignored[0].ContextMap()["watch_root"])
	assert.Empty(t, logs.FilterField(zap.String("event", string(logging.AuditRebuildTriggered))).All())
}

func TestTriggerRunsDebugCompile(t *testing.T) {
	compiler := &recordingCompiler{}
	tr, project := newTrigger(t, compiler)

	require.NoError(t, tr.OnFileChanged(context.Background(), filepath.Join(project.WatchPath(), "index.ts")))

	assert.Equal(t, []build.Mode{build.ModeDebug}, compiler.modes())
	assert.Equal(t, StateIdle, tr.State())
}

func TestTriggerReturnsCompileFailure(t *testing.T) {
	boom := errors.New("boom")
	tr, project := newTrigger(t, &recordingCompiler{err: boom})

	err := tr.OnFileChanged(context.Background(), filepath.Join(project.WatchPath(), "index.ts"))

	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateIdle, tr.State())
}

func TestTriggerConcurrentEventsEachCompile(t *testing.T) {
	compiler := &recordingCompiler{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	tr, project := newTrigger(t, compiler)
	path := filepath.Join(project.WatchPath(), "index.ts")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tr.OnFileChanged(context.Background(), path))
		}()
	}

	<-compiler.started
	<-compiler.started
	assert.Equal(t, StateCompiling, tr.State())

	close(compiler.release)
	wg.Wait()

	assert.Equal(t, []build.Mode{build.ModeDebug, build.ModeDebug}, compiler.modes())
	assert.Equal(t, StateIdle, tr.State())
}
