package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yugabyte/build-gcc/internal/codes"
)

// mockCommander implements Commander interface for testing
type mockCommander struct {
	runFunc func() error
}

func (m *mockCommander) Run() error {
	return m.runFunc()
}

func TestCommand_String(t *testing.T) {
	c := Command{Name: "hub", Args: []string{"release", "create", "v15.2.0", "-m", "Release v15.2.0"}}
	assert.Equal(t, `hub release create v15.2.0 -m 'Release v15.2.0'`, c.String())
}

func TestRunner_Run_Success(t *testing.T) {
	r := NewRunner(hclog.NewNullLogger())

	var gotName string
	var gotArgs []string
	r.execCommand = func(ctx context.Context, name string, args ...string) Commander {
		gotName, gotArgs = name, args
		return &mockCommander{runFunc: func() error { return nil }}
	}

	err := r.Run(context.Background(), Command{Name: "make", Args: []string{"-j", "8", "profiledbootstrap"}})
	require.NoError(t, err)
	assert.Equal(t, "make", gotName)
	assert.Equal(t, []string{"-j", "8", "profiledbootstrap"}, gotArgs)
}

func TestRunner_Run_NonExitError(t *testing.T) {
	r := NewRunner(hclog.NewNullLogger())
	r.execCommand = func(ctx context.Context, name string, args ...string) Commander {
		return &mockCommander{runFunc: func() error { return errors.New("executable file not found") }}
	}

	err := r.Run(context.Background(), Command{Name: "hub"})
	require.Error(t, err)
	assert.True(t, codes.IsTool(err))
	assert.Contains(t, err.Error(), "executable file not found")
}

func TestRunner_RealProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	r := NewRunner(hclog.NewNullLogger())
	r.stdout = &bytes.Buffer{}
	r.stderr = &bytes.Buffer{}

	out, err := r.Output(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", `printf '%s' "$BUILD_GCC_TEST_VAR"`},
		Env:  map[string]string{"BUILD_GCC_TEST_VAR": "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	dir := t.TempDir()
	out, err = r.Output(context.Background(), Command{Name: "pwd", Dir: dir})
	require.NoError(t, err)
	assert.Contains(t, out, dir[len(dir)-8:])

	err = r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "exit 3"}})
	require.Error(t, err)
	assert.True(t, codes.IsTool(err))
	assert.Contains(t, err.Error(), "exited with code 3")

	var exitErr *exec.ExitError
	if assert.ErrorAs(t, err, &exitErr) {
		assert.Equal(t, 3, exitErr.ExitCode())
	}

	err = r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo 'fatal: no such ref' >&2; exit 128"}})
	require.Error(t, err)
	assert.Contains(t, StderrOf(err), "fatal: no such ref")
	assert.Contains(t, r.stderr.(*bytes.Buffer).String(), "fatal: no such ref")
}

func TestRunner_ResolvesNameOnCommandPath(t *testing.T) {
	bin := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bin, "make"), []byte("#!/bin/sh\n"), 0o755))

	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "found on the overridden PATH",
			cmd:  Command{Name: "make", Env: map[string]string{"PATH": bin}},
			want: filepath.Join(bin, "make"),
		},
		{
			name: "missing from the overridden PATH",
			cmd:  Command{Name: "gmake", Env: map[string]string{"PATH": bin}},
			want: "gmake",
		},
		{
			name: "no PATH override",
			cmd:  Command{Name: "make", Env: map[string]string{"CC": "/usr/bin/gcc"}},
			want: "make",
		},
		{
			name: "explicit path",
			cmd:  Command{Name: "/usr/bin/make", Env: map[string]string{"PATH": bin}},
			want: "/usr/bin/make",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(hclog.NewNullLogger())

			var gotName string
			r.execCommand = func(ctx context.Context, name string, args ...string) Commander {
				gotName = name
				return &mockCommander{runFunc: func() error { return nil }}
			}

			require.NoError(t, r.Run(context.Background(), tt.cmd))
			assert.Equal(t, tt.want, gotName)
		})
	}
}

func TestRunner_RealProcess_OverriddenPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	bin := t.TempDir()
	tool := filepath.Join(bin, "build-gcc-test-tool")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\necho from-toolset\n"), 0o755))

	r := NewRunner(hclog.NewNullLogger())
	r.stderr = &bytes.Buffer{}

	out, err := r.Output(context.Background(), Command{
		Name: "build-gcc-test-tool",
		Env:  map[string]string{"PATH": bin},
	})
	require.NoError(t, err)
	assert.Equal(t, "from-toolset\n", out)
}

func TestLookPath_SkipsNonExecutable(t *testing.T) {
	bin := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bin, "gcc"), nil, 0o644))
	assert.Empty(t, LookPath("gcc", bin))

	require.NoError(t, os.Chmod(filepath.Join(bin, "gcc"), 0o755))
	assert.Equal(t, filepath.Join(bin, "gcc"), LookPath("gcc", "/nonexistent"+string(os.PathListSeparator)+bin))
}

func TestTailWriter(t *testing.T) {
	w := &tailWriter{max: 4}
	_, _ = w.Write([]byte("abc"))
	_, _ = w.Write([]byte("defg"))
	assert.Equal(t, "defg", string(w.buf))
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/usr/bin", "HOME=/root", "MANPATH=/old"}
	merged := MergeEnv(base, map[string]string{
		"PATH":    "/opt/rh/devtoolset-11/root/usr/bin:/usr/bin",
		"MANPATH": "/new",
	})

	assert.Equal(t, []string{
		"HOME=/root",
		"MANPATH=/new",
		"PATH=/opt/rh/devtoolset-11/root/usr/bin:/usr/bin",
	}, merged)

	assert.Equal(t, base, MergeEnv(base, nil))
}
