package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"ascbridge/internal/config"
	"ascbridge/internal/logging"
)

// Mode selects the compiler target.
type Mode string

const (
	ModeDebug   Mode = "debug"
	ModeRelease Mode = "release"
)

// ParseMode accepts exactly "debug" or "release".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDebug, ModeRelease:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown compile mode %q (want debug or release)", s)
}

func (m Mode) String() string { return string(m) }

// Invocation is the resolved compiler command line.
type Invocation struct {
	Binary string
	Args   []string
}

// NewInvocation derives the command line for project and mode:
//
//	<root>/<bin dir>/<compiler> <root>/<entry> --config <root>/<config> --target <mode>
func NewInvocation(project config.ProjectConfig, mode Mode) Invocation {
	return Invocation{
		Binary: project.CompilerPath(),
		Args: []string{
			project.EntryPath(),
			"--config", project.ConfigPath(),
			"--target", string(mode),
		},
	}
}

// String renders the invocation for logs.
func (inv Invocation) String() string {
	return inv.Binary + " " + strings.Join(inv.Args, " ")
}

// Result describes a successful compile.
type Result struct {
	Mode       Mode
	Invocation Invocation
	Duration   time.Duration
}

// CompileError reports a compiler that could not be spawned or exited
// non-zero. ExitCode is -1 when the process never ran.
type CompileError struct {
	Mode       Mode
	ExitCode   int
	StderrTail string
	Err        error
}

func (e *CompileError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("asc %s build could not start: %v", e.Mode, e.Err)
	}
	msg := fmt.Sprintf("asc %s build failed (exit %d)", e.Mode, e.ExitCode)
	if tail := strings.TrimSpace(e.StderrTail); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *CompileError) Unwrap() error { return e.Err }

const (
	// DefaultStderrTail is how many trailing stderr bytes a CompileError keeps.
	DefaultStderrTail = 4096
	// DefaultSlowCompile is when a compile starts being logged as slow.
	DefaultSlowCompile = 30 * time.Second
)

// Invoker runs the compiler. The zero value streams to os.Stdout/os.Stderr.
type Invoker struct {
	Stdout io.Writer
	Stderr io.Writer
	// TailBytes bounds CompileError.StderrTail; zero means DefaultStderrTail.
	TailBytes int
	// SlowAfter is the compile duration that logs a warning; zero means
	// DefaultSlowCompile.
	SlowAfter time.Duration
}

// Invoke runs one blocking compile of project in mode. Child output streams
// straight to the invoker's writers. A context that is already done stops
// the spawn; a running compiler is never interrupted.
func (inv *Invoker) Invoke(ctx context.Context, project config.ProjectConfig, mode Mode) (*Result, error) {
	stdout, stderr := inv.writers()
	call := NewInvocation(project, mode)

	if err := ctx.Err(); err != nil {
		return nil, &CompileError{Mode: mode, ExitCode: -1, Err: err}
	}

	logging.BuildDebug("Executing: %s", call)
	fmt.Fprintln(stdout, "[AssemblyScript] Compiling...")
	logging.Audit(logging.AuditEvent{Type: logging.AuditCompileStart, Target: string(mode), Success: true})

	tailMax := inv.TailBytes
	if tailMax <= 0 {
		tailMax = DefaultStderrTail
	}
	tail := &tailWriter{max: tailMax}

	cmd := exec.Command(call.Binary, call.Args...)
	cmd.Env = CompilerEnv(project)
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, tail)

	slow := inv.SlowAfter
	if slow <= 0 {
		slow = DefaultSlowCompile
	}
	timer := logging.StartTimer(logging.CategoryBuild, mode.String()+" compile")
	err := cmd.Run()
	elapsed := timer.StopSlow(slow)

	if err != nil {
		cerr := &CompileError{Mode: mode, ExitCode: -1, StderrTail: tail.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cerr.ExitCode = exitErr.ExitCode()
		}
		logging.BuildError("%s build failed after %v: %v", mode, elapsed, cerr)
		logging.Audit(logging.AuditEvent{
			Type:     logging.AuditCompileError,
			Target:   string(mode),
			Duration: elapsed,
			Error:    cerr.Error(),
			Fields:   map[string]interface{}{"exit_code": cerr.ExitCode},
		})
		return nil, cerr
	}

	fmt.Fprintf(stdout, "Done: %v\n", elapsed)
	logging.Build("%s build done in %v", mode, elapsed)
	logging.Audit(logging.AuditEvent{Type: logging.AuditCompileComplete, Target: string(mode), Success: true, Duration: elapsed})

	return &Result{Mode: mode, Invocation: call, Duration: elapsed}, nil
}

func (inv *Invoker) writers() (io.Writer, io.Writer) {
	stdout, stderr := inv.Stdout, inv.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}

// tailWriter keeps the last max bytes written to it.
type tailWriter struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (tw *tailWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	n := len(p)
	if n >= tw.max {
		tw.buf = append(tw.buf[:0], p[n-tw.max:]...)
		return n, nil
	}
	tw.buf = append(tw.buf, p...)
	if over := len(tw.buf) - tw.max; over > 0 {
		tw.buf = append(tw.buf[:0], tw.buf[over:]...)
	}
	return n, nil
}

func (tw *tailWriter) String() string {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return string(tw.buf)
}
