// Package testutil builds on-disk fixtures shared by package tests: an
// AssemblyScript project with a fake compiler, and a small web root.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"ascbridge/internal/config"
)

// Env keys understood by the fake compiler. Set them through
// ProjectConfig.Env so they reach the child process.
const (
	EnvExit   = "FAKE_ASC_EXIT"   // non-zero makes the compiler fail
	EnvStderr = "FAKE_ASC_STDERR" // line written to stderr before exiting
	EnvLog    = "FAKE_ASC_LOG"    // file receiving one "<entry> <mode>" line per run
	EnvNoMap  = "FAKE_ASC_NO_MAP" // non-empty skips writing the source map
)

const fakeCompiler = `#!/bin/sh
entry="$1"
mode=""
while [ $# -gt 0 ]; do
	case "$1" in
	--target) mode="$2"; shift ;;
	esac
	shift
done
if [ -n "$FAKE_ASC_LOG" ]; then
	echo "$entry $mode" >> "$FAKE_ASC_LOG"
fi
if [ -n "$FAKE_ASC_STDERR" ]; then
	echo "$FAKE_ASC_STDERR" >&2
fi
if [ -n "$FAKE_ASC_EXIT" ] && [ "$FAKE_ASC_EXIT" != "0" ]; then
	exit "$FAKE_ASC_EXIT"
fi
out=%q
mkdir -p "$(dirname "$out")"
printf 'wasm-%%s' "$mode" > "$out"
if [ -z "$FAKE_ASC_NO_MAP" ]; then
	printf '{"version":3,"mode":"%%s"}' "$mode" > "$out.map"
fi
echo "compiled $mode"
`

// NewProject lays out a valid project under a temp dir and installs a
// fake asc compiler. SourceRoot and DistRoot are absolute. Tests on
// Windows are skipped since the compiler is a shell script.
func NewProject(t testing.TB) config.ProjectConfig {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler is a POSIX shell script")
	}

	dir := t.TempDir()
	project := config.DefaultProject().Merge(config.ProjectConfig{
		SourceRoot: filepath.Join(dir, "engine"),
		DistRoot:   filepath.Join(dir, "dist"),
	})

	WriteFile(t, project.EntryPath(), "export function add(a: i32, b: i32): i32 { return a + b; }\n")
	WriteFile(t, project.ConfigPath(), `{"targets":{"debug":{},"release":{}}}`+"\n")

	script := fmt.Sprintf(fakeCompiler, project.ArtifactPath())
	WriteFile(t, project.CompilerPath(), script)
	if err := os.Chmod(project.CompilerPath(), 0755); err != nil {
		t.Fatalf("chmod compiler: %v", err)
	}
	return project
}

// WithEnv returns project with extra compiler environment.
func WithEnv(project config.ProjectConfig, kv ...string) config.ProjectConfig {
	env := map[string]string{}
	for i := 0; i+1 < len(kv); i += 2 {
		env[kv[i]] = kv[i+1]
	}
	return project.Merge(config.ProjectConfig{Env: env})
}

// InvocationLog points the fake compiler at a fresh log file and returns
// the updated project plus the log path.
func InvocationLog(t testing.TB, project config.ProjectConfig) (config.ProjectConfig, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "asc.log")
	return WithEnv(project, EnvLog, path), path
}

// Invocations returns the lines recorded by the fake compiler.
func Invocations(t testing.TB, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read invocation log: %v", err)
	}
	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, string(data[start:i]))
			start = i + 1
		}
	}
	return lines
}

// WriteFile creates path with content, making parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
