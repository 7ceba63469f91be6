package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ascbridge/internal/config"
	"ascbridge/internal/testutil"
)

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeConfig saves a config pointing at project and returns its path.
func writeConfig(t *testing.T, project config.ProjectConfig) string {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Project = project
	cfg.Logging.Level = "error"
	path := filepath.Join(t.TempDir(), "ascbridge.yaml")
	require.NoError(t, cfg.Save(path))
	return path
}

func TestCheck(t *testing.T) {
	project := testutil.NewProject(t)

	out, err := run(t, "--config", writeConfig(t, project), "check")
	require.NoError(t, err)
	assert.Contains(t, out, "ok: "+project.EntryPath())
}

func TestCheckReportsLayoutErrorsVerbatim(t *testing.T) {
	cfgPath := writeConfig(t, testutil.NewProject(t))

	_, err := run(t, "--config", cfgPath, "--project-root", "foobar", "check")
	require.Error(t, err)
	assert.Equal(t, "[vite-plugin-assemblyscript] projectRoot: foobar does not exist", err.Error())

	_, err = run(t, "--config", cfgPath, "--entry", "build/release.wasm", "check")
	require.Error(t, err)
	assert.Equal(t, "[vite-plugin-assemblyscript] srcEntryFile: build/release.wasm does not exist", err.Error())
}

func TestBuild(t *testing.T) {
	project, logPath := testutil.InvocationLog(t, testutil.NewProject(t))
	cfgPath := writeConfig(t, project)

	out, err := run(t, "--config", cfgPath, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "[AssemblyScript] Compiling...")
	assert.Contains(t, out, "Done: ")
	assert.Equal(t, []string{project.EntryPath() + " release"}, testutil.Invocations(t, logPath))
	assert.FileExists(t, project.DistSourceMapPath())

	_, err = run(t, "--config", cfgPath, "build", "--mode", "debug")
	require.NoError(t, err)
	assert.Equal(t, []string{project.EntryPath() + " release", project.EntryPath() + " debug"}, testutil.Invocations(t, logPath))
}

func TestBuildRejectsUnknownMode(t *testing.T) {
	_, err := run(t, "--config", writeConfig(t, testutil.NewProject(t)), "build", "--mode", "fast")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown compile mode")
}

func TestBuildCompileFailure(t *testing.T) {
	project := testutil.WithEnv(testutil.NewProject(t), testutil.EnvExit, "2", testutil.EnvStderr, "ERROR TS2304")

	_, err := run(t, "--config", writeConfig(t, project), "build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit 2")
}

func TestInvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ascbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("verify:\n  max_attempts: 0\n"), 0644))

	_, err := run(t, "--config", path, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_attempts")
}

func TestVerifyRejectsBadFlags(t *testing.T) {
	cfgPath := writeConfig(t, testutil.NewProject(t))

	_, err := run(t, "--config", cfgPath, "verify", "--strategy", "hybrid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hybrid")

	_, err = run(t, "--config", cfgPath, "verify", "--browser", "ancient")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ancient")
}

func TestParseFlags(t *testing.T) {
	st, err := parseStrategies("all")
	require.NoError(t, err)
	assert.Nil(t, st)

	st, err = parseStrategies("Static")
	require.NoError(t, err)
	require.Len(t, st, 1)
	assert.EqualValues(t, "static", st[0])

	modes, err := parseBrowsers("legacy")
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, modes)

	modes, err = parseBrowsers("all")
	require.NoError(t, err)
	assert.Nil(t, modes)
}
