// Package shell runs external processes on behalf of the build pipeline.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/hashicorp/go-hclog"

	"github.com/yugabyte/build-gcc/internal/codes"
)

// Command describes one external process invocation
type Command struct {
	Name string
	Args []string
	// Dir defaults to the current working directory
	Dir string
	// Env entries override the inherited environment
	Env map[string]string
}

// String renders the command line with each word shell-escaped
func (c Command) String() string {
	return shellescape.QuoteCommand(append([]string{c.Name}, c.Args...))
}

// Executor runs commands. Implementations return tool errors from internal/codes on failure.
type Executor interface {
	Run(ctx context.Context, c Command) error
	Output(ctx context.Context, c Command) (string, error)
}

// ExitError describes a command that ran and exited non-zero. Stderr holds
// the tail of the command's standard error.
type ExitError struct {
	Command Command
	Code    int
	Stderr  string
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %s exited with code %d", e.Command.String(), e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// StderrOf returns the captured standard error of a failed command, if any
func StderrOf(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Stderr
	}

	return ""
}

// Commander interface for testing
type Commander interface {
	Run() error
}

// Runner executes commands as child processes
type Runner struct {
	logger      hclog.Logger
	stdout      io.Writer
	stderr      io.Writer
	execCommand func(ctx context.Context, name string, args ...string) Commander
}

// NewRunner creates a runner that streams child output to the process's stdout and stderr
func NewRunner(logger hclog.Logger) *Runner {
	return &Runner{
		logger: logger,
		stdout: os.Stdout,
		stderr: os.Stderr,
		execCommand: func(ctx context.Context, name string, args ...string) Commander {
			return exec.CommandContext(ctx, name, args...)
		},
	}
}

// Run executes c, streaming its output
func (r *Runner) Run(ctx context.Context, c Command) error {
	return r.run(ctx, c, r.stdout)
}

// Output executes c and returns its standard output
func (r *Runner) Output(ctx context.Context, c Command) (string, error) {
	var buf bytes.Buffer
	if err := r.run(ctx, c, &buf); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (r *Runner) run(ctx context.Context, c Command, stdout io.Writer) error {
	dir := c.Dir
	if dir == "" {
		dir, _ = os.Getwd()
	}

	r.logger.Info("Running command", "command", c.String(), "dir", dir)

	tail := &tailWriter{max: stderrTailSize}

	cmd := r.execCommand(ctx, resolveName(c), c.Args...)
	if ec, ok := cmd.(*exec.Cmd); ok {
		ec.Dir = c.Dir
		ec.Stdout = stdout
		ec.Stderr = io.MultiWriter(r.stderr, tail)
		if len(c.Env) > 0 {
			ec.Env = MergeEnv(os.Environ(), c.Env)
		}
	}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return codes.Tool(c.Name, &ExitError{
				Command: c,
				Code:    exitErr.ExitCode(),
				Stderr:  string(tail.buf),
				Err:     err,
			})
		}

		return codes.Tool(c.Name, fmt.Errorf("command %s failed: %w", c.String(), err))
	}

	return nil
}

// resolveName looks a bare command name up on the command's own PATH, which
// exec would otherwise ignore in favour of the parent's
func resolveName(c Command) string {
	pathValue, ok := c.Env["PATH"]
	if !ok || strings.ContainsRune(c.Name, filepath.Separator) {
		return c.Name
	}

	if found := LookPath(c.Name, pathValue); found != "" {
		return found
	}

	return c.Name
}

// LookPath finds an executable named name in a PATH-style list
func LookPath(name, pathValue string) string {
	for _, dir := range filepath.SplitList(pathValue) {
		if dir == "" {
			continue
		}

		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err == nil && info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0 {
			return candidate
		}
	}

	return ""
}

const stderrTailSize = 64 * 1024

// tailWriter keeps the last max bytes written to it
type tailWriter struct {
	buf []byte
	max int
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	if over := len(w.buf) - w.max; over > 0 {
		w.buf = w.buf[over:]
	}

	return len(p), nil
}

// MergeEnv applies overrides to a KEY=VALUE environment, keeping unrelated entries
func MergeEnv(base []string, overrides map[string]string) []string {
	merged := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[k]; ok {
			continue
		}

		merged = append(merged, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	for _, k := range keys {
		merged = append(merged, k+"="+overrides[k])
	}

	return merged
}
