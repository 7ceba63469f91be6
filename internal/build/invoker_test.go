package build

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ascbridge/internal/config"
	"ascbridge/internal/logging"
	"ascbridge/internal/testutil"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("debug")
	require.NoError(t, err)
	assert.Equal(t, ModeDebug, m)

	m, err = ParseMode("release")
	require.NoError(t, err)
	assert.Equal(t, ModeRelease, m)

	for _, bad := range []string{"", "Release", "prod"} {
		_, err := ParseMode(bad)
		assert.Error(t, err, "mode %q", bad)
	}
}

func TestNewInvocation(t *testing.T) {
	project := config.DefaultProject()

	inv := NewInvocation(project, ModeRelease)

	assert.Equal(t, filepath.Join("src", "engine", "node_modules", ".bin", "asc"), inv.Binary)
	assert.Equal(t, []string{
		filepath.Join("src", "engine", "assembly", "index.ts"),
		"--config", filepath.Join("src", "engine", "asconfig.json"),
		"--target", "release",
	}, inv.Args)
	assert.Contains(t, inv.String(), "--target release")
}

func TestInvokeRelease(t *testing.T) {
	project, logPath := testutil.InvocationLog(t, testutil.NewProject(t))
	var stdout, stderr bytes.Buffer
	inv := &Invoker{Stdout: &stdout, Stderr: &stderr}

	res, err := inv.Invoke(context.Background(), project, ModeRelease)
	require.NoError(t, err)

	assert.Equal(t, ModeRelease, res.Mode)
	assert.Greater(t, int64(res.Duration), int64(0))

	out := stdout.String()
	assert.Contains(t, out, "[AssemblyScript] Compiling...")
	assert.Contains(t, out, "compiled release")
	assert.Contains(t, out, "Done: ")

	wasm, err := os.ReadFile(project.ArtifactPath())
	require.NoError(t, err)
	assert.Equal(t, "wasm-release", string(wasm))

	assert.Equal(t, []string{project.EntryPath() + " release"}, testutil.Invocations(t, logPath))
}

func TestInvokeWarnsOnSlowCompile(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(nil) })

	project := testutil.NewProject(t)
	inv := &Invoker{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}, SlowAfter: time.Nanosecond}

	_, err := inv.Invoke(context.Background(), project, ModeDebug)
	require.NoError(t, err)

	slow := logs.FilterMessage("debug compile was slow").All()
	require.Len(t, slow, 1)
	assert.Equal(t, zapcore.WarnLevel, slow[0].Level)
	assert.Equal(t, time.Nanosecond, slow[0].ContextMap()["limit"])

	logs.TakeAll()
	_, err = (&Invoker{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}).Invoke(context.Background(), project, ModeDebug)
	require.NoError(t, err)
	assert.Empty(t, logs.FilterMessage("debug compile was slow").All(), "default limit is not reached")
}

func TestInvokeNonZeroExit(t *testing.T) {
	project := testutil.WithEnv(testutil.NewProject(t),
		testutil.EnvExit, "3",
		testutil.EnvStderr, "ERROR TS2304: Cannot find name 'foo'.",
	)
	var stderr bytes.Buffer
	inv := &Invoker{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	res, err := inv.Invoke(context.Background(), project, ModeDebug)
	require.Error(t, err)
	assert.Nil(t, res)

	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, ModeDebug, cerr.Mode)
	assert.Equal(t, 3, cerr.ExitCode)
	assert.Contains(t, cerr.StderrTail, "Cannot find name 'foo'")
	assert.Contains(t, stderr.String(), "Cannot find name 'foo'", "stderr is streamed as well as kept")
	assert.Contains(t, err.Error(), "exit 3")
}

func TestInvokeSpawnFailure(t *testing.T) {
	project := testutil.NewProject(t).Merge(config.ProjectConfig{CompilerBin: "no-such-asc"})
	inv := &Invoker{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}

	_, err := inv.Invoke(context.Background(), project, ModeRelease)

	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, -1, cerr.ExitCode)
	assert.Contains(t, err.Error(), "could not start")
}

func TestInvokeCancelledContextDoesNotSpawn(t *testing.T) {
	project, logPath := testutil.InvocationLog(t, testutil.NewProject(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Invoker{Stdout: &bytes.Buffer{}}).Invoke(ctx, project, ModeRelease)

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, testutil.Invocations(t, logPath))
}

func TestTailWriterKeepsLastBytes(t *testing.T) {
	tw := &tailWriter{max: 5}

	tw.Write([]byte("abc"))
	tw.Write([]byte("defg"))
	assert.Equal(t, "cdefg", tw.String())

	tw.Write([]byte("0123456789"))
	assert.Equal(t, "56789", tw.String())
}
