package arch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yugabyte/build-gcc/internal/codes"
	"github.com/yugabyte/build-gcc/internal/hostinfo"
	"github.com/yugabyte/build-gcc/internal/shell"
	"github.com/yugabyte/build-gcc/internal/shell/shelltest"
)

var macOS = hostinfo.Host{OS: "darwin", Arch: "arm64", Label: "macos"}

func TestSwitchPrefix(t *testing.T) {
	assert.Equal(t, []string{"arch", "-arm64"}, SwitchPrefix(macOS, "arm64"))
	assert.Nil(t, SwitchPrefix(hostinfo.Host{OS: "linux"}, "x86_64"))
	assert.Nil(t, SwitchPrefix(macOS, ""))
}

func TestOther(t *testing.T) {
	other, err := Other("x86_64")
	require.NoError(t, err)
	assert.Equal(t, "arm64", other)

	other, err = Other("arm64")
	require.NoError(t, err)
	assert.Equal(t, "x86_64", other)

	_, err = Other("aarch64")
	require.Error(t, err)
	assert.True(t, codes.IsConfig(err))
}

func TestParseFileOutput(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want []string
	}{
		{
			name: "thin dylib",
			out:  "/x/libgcc_s.1.dylib: Mach-O 64-bit dynamically linked shared library x86_64",
			want: []string{"x86_64"},
		},
		{
			name: "universal binary",
			out: strings.Join([]string{
				"/x/f: Mach-O universal binary with 3 architectures: [x86_64:Mach-O 64-bit executable x86_64]",
				"/x/f (for architecture x86_64): Mach-O 64-bit executable x86_64",
				"/x/f (for architecture x86_64h): Mach-O 64-bit executable x86_64h",
				"/x/f (for architecture arm64): Mach-O 64-bit executable arm64",
			}, "\n"),
			want: []string{"arm64", "x86_64"},
		},
		{
			name: "python script",
			out:  "/x/gdb.py: Python script text executable, ASCII text",
			want: nil,
		},
		{
			name: "shell script",
			out:  "/x/gcc-ar: POSIX shell script, ASCII text executable",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFileOutput(tt.out))
		})
	}
}

func makeInstallTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]os.FileMode{
		"bin/gcc15":             0o755,
		"lib/libstdc++.6.dylib": 0o644,
		"lib/gcc/crtbegin.o":    0o644,
		"share/doc/style.css":   0o755,
		"share/gdb/printers.py": 0o755,
		"include/stdio.h":       0o644,
	}
	for rel, mode := range files {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, nil, mode))
	}

	return dir
}

func TestFilesOfInterest(t *testing.T) {
	dir := makeInstallTree(t)

	files, err := FilesOfInterest(dir)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, _ := filepath.Rel(dir, f)
		rel = append(rel, r)
	}

	assert.ElementsMatch(t, []string{"bin/gcc15", "lib/libstdc++.6.dylib", "lib/gcc/crtbegin.o"}, rel)
}

func TestValidate(t *testing.T) {
	dir := makeInstallTree(t)

	fake := &shelltest.Fake{Handler: func(c shell.Command) (string, error) {
		file := c.Args[0]
		if strings.HasSuffix(file, ".dylib") {
			return file + ": Mach-O universal binary\n" + file + " (for architecture x86_64): x86_64\n" + file + " (for architecture arm64): arm64", nil
		}
		return file + ": Mach-O 64-bit object arm64", nil
	}}

	report, err := NewValidator(hclog.NewNullLogger(), fake).Validate(context.Background(), macOS, "arm64", dir)
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 3, SingleArch: 2, MultiArch: 1}, report)
}

func TestValidate_WrongArch(t *testing.T) {
	dir := makeInstallTree(t)

	fake := &shelltest.Fake{Handler: func(c shell.Command) (string, error) {
		return c.Args[0] + ": Mach-O 64-bit executable x86_64", nil
	}}

	report, err := NewValidator(hclog.NewNullLogger(), fake).Validate(context.Background(), macOS, "arm64", dir)
	require.Error(t, err)
	assert.True(t, codes.IsTool(err))
	assert.Equal(t, 3, report.Errors)
	assert.Contains(t, err.Error(), "found 3 files with the wrong architecture")
}

func TestValidate_NotMacOS(t *testing.T) {
	fake := &shelltest.Fake{}
	_, err := NewValidator(hclog.NewNullLogger(), fake).Validate(
		context.Background(), hostinfo.Host{OS: "linux"}, "x86_64", "/nonexistent")
	require.NoError(t, err)
	assert.Empty(t, fake.Commands)
}

func TestValidate_EmptyTree(t *testing.T) {
	report, err := NewValidator(hclog.NewNullLogger(), &shelltest.Fake{}).Validate(
		context.Background(), macOS, "x86_64", t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, report.Checked)
}
