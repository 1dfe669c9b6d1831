package buildconf

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yugabyte/build-gcc/internal/codes"
	"github.com/yugabyte/build-gcc/internal/hostinfo"
	"github.com/yugabyte/build-gcc/internal/naming"
)

var fixedNow = func() time.Time { return time.Unix(1700000000, 0) }

func baseOptions(parent string) Options {
	return Options{
		InstallParentDir: parent,
		VersionToken:     "15",
		Host:             hostinfo.Host{OS: "linux", Arch: "x86_64", Label: "almalinux8"},
		Now:              fixedNow,
	}
}

func TestNew_FreshBuild(t *testing.T) {
	parent := t.TempDir()

	c, err := New(baseOptions(parent))
	require.NoError(t, err)

	assert.Equal(t, "15.2.0", c.Version)
	assert.Equal(t, 15, c.MajorVersion)
	assert.Equal(t, "1700000000", c.TimestampForSuffix)
	assert.Empty(t, c.TagOverride)
	assert.Equal(t, "x86_64", c.TargetArch)
	assert.Positive(t, c.Parallelism)
	assert.True(t, c.AutoSuffix())

	id := c.Identity()
	assert.Equal(t, PhaseProvisional, id.Phase())

	paths := id.Paths()
	assert.True(t, strings.HasPrefix(paths.Tag, "v15.2.0-"))
	assert.Equal(t, "v15.2.0-1700000000-GIT_SHA1_PLACEHOLDER-almalinux8-x86_64", paths.Tag)
	assert.True(t, naming.HasPlaceholder(filepath.Base(paths.BuildParentDir)))
}

func TestNew_Validation(t *testing.T) {
	parent := t.TempDir()

	tests := []struct {
		name        string
		mutate      func(*Options)
		errContains string
	}{
		{
			name:        "major version too old",
			mutate:      func(o *Options) { o.VersionToken = "11.4.0" },
			errContains: "minimum is 12",
		},
		{
			name:        "unparseable version",
			mutate:      func(o *Options) { o.VersionToken = "trunk" },
			errContains: "invalid version",
		},
		{
			name:        "negative parallelism",
			mutate:      func(o *Options) { o.Parallelism = -1 },
			errContains: "parallelism must be positive",
		},
		{
			name: "architecture conflict",
			mutate: func(o *Options) {
				o.ArchFlag = "x86_64"
				o.Host.Arch = "aarch64"
			},
			errContains: "--target-arch is x86_64, YB_TARGET_ARCH is <unset>, uname -m is aarch64",
		},
		{
			name:        "unsupported architecture",
			mutate:      func(o *Options) { o.Host.Arch = "riscv64" },
			errContains: "unsupported target architecture",
		},
		{
			name:        "malformed existing build dir",
			mutate:      func(o *Options) { o.ExistingBuildDir = filepath.Join(parent, "yb-gcc-v12.5.0-1700000000-abcd1234") },
			errContains: `does not end with "-build"`,
		},
		{
			name:        "existing build dir under another parent",
			mutate:      func(o *Options) { o.ExistingBuildDir = "/elsewhere/yb-gcc-v12.5.0-build" },
			errContains: "build directory mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := baseOptions(parent)
			tt.mutate(&opts)

			c, err := New(opts)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, codes.IsConfig(err), "expected a configuration error, got %v", err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Empty(t, entries, "configuration errors must not touch the filesystem")
}

func TestNew_Resumption(t *testing.T) {
	parent := t.TempDir()
	existing := filepath.Join(parent, "yb-gcc-v12.5.0-1700000000-abcd1234-build")

	opts := baseOptions(parent)
	opts.ExistingBuildDir = existing

	c, err := New(opts)
	require.NoError(t, err)

	assert.Equal(t, "v12.5.0-1700000000-abcd1234", c.TagOverride)
	assert.Empty(t, c.TimestampForSuffix)
	assert.True(t, c.SkipAutoSuffix, "resumption forces auto-suffixing off")

	id := c.Identity()
	assert.Equal(t, PhaseResolved, id.Phase())
	assert.Equal(t, "v12.5.0-1700000000-abcd1234", id.Paths().Tag)
	assert.Equal(t, existing, id.Paths().BuildParentDir)
}

func TestNew_SkipAutoSuffix(t *testing.T) {
	opts := baseOptions(t.TempDir())
	opts.SkipAutoSuffix = true

	c, err := New(opts)
	require.NoError(t, err)

	id := c.Identity()
	assert.Equal(t, PhaseResolved, id.Phase())
	assert.Equal(t, "v15.2.0", id.Paths().Tag)
}

func TestReconcileArch(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		env     string
		host    string
		want    string
		wantErr bool
	}{
		{name: "none", want: ""},
		{name: "flag only", flag: "arm64", want: "arm64"},
		{name: "env only", env: "aarch64", want: "aarch64"},
		{name: "host only", host: "x86_64", want: "x86_64"},
		{name: "all agree", flag: "x86_64", env: "x86_64", host: "x86_64", want: "x86_64"},
		{name: "flag vs host", flag: "x86_64", host: "aarch64", wantErr: true},
		{name: "env vs host", env: "arm64", host: "x86_64", wantErr: true},
		{name: "flag vs env", flag: "arm64", env: "x86_64", wantErr: true},
		{name: "three way", flag: "arm64", env: "aarch64", host: "x86_64", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReconcileArch(tt.flag, tt.env, tt.host)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, codes.IsConfig(err))
				assert.Contains(t, err.Error(), "--target-arch")
				assert.Contains(t, err.Error(), "YB_TARGET_ARCH")
				assert.Contains(t, err.Error(), "uname -m")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReconcileArch_Commutative(t *testing.T) {
	values := []string{"x86_64", "aarch64"}
	for _, a := range values {
		for _, b := range values {
			_, err1 := ReconcileArch(a, b, "")
			_, err2 := ReconcileArch("", a, b)
			_, err3 := ReconcileArch(b, "", a)
			assert.Equal(t, a != b, err1 != nil)
			assert.Equal(t, a != b, err2 != nil)
			assert.Equal(t, a != b, err3 != nil)
		}
	}
}

func TestTransition(t *testing.T) {
	parent := t.TempDir()
	c, err := New(baseOptions(parent))
	require.NoError(t, err)

	id := c.Identity()
	before := id.Paths()
	require.NoError(t, os.MkdirAll(before.CloneDir, 0o755))

	resolved, err := Resolve(id, "abcd1234ef567890", nil)
	require.NoError(t, err)

	after := resolved.Paths()
	assert.Equal(t, PhaseResolved, after.Phase)
	assert.Equal(t, "abcd1234", after.Revision)
	assert.Equal(t, strings.Replace(before.Tag, naming.RevisionPlaceholder, "abcd1234", 1), after.Tag)

	// All derived paths move in lock-step with the tag
	for _, pair := range [][2]string{
		{before.BuildParentDir, after.BuildParentDir},
		{before.FinalInstallDir, after.FinalInstallDir},
		{before.CloneDir, after.CloneDir},
		{before.BuildInfoDir, after.BuildInfoDir},
	} {
		assert.Equal(t, strings.Replace(pair[0], naming.RevisionPlaceholder, "abcd1234", 1), pair[1])
	}

	assert.NoDirExists(t, before.BuildParentDir)
	assert.DirExists(t, after.CloneDir)

	_, err = Resolve(resolved, "abcd1234ef567890", nil)
	require.Error(t, err)
	assert.True(t, codes.IsInvariant(err))
}

func TestTransition_RenameFailureKeepsProvisional(t *testing.T) {
	c, err := New(baseOptions(t.TempDir()))
	require.NoError(t, err)

	id := c.Identity()
	failing := func(oldPath, newPath string) error { return errors.New("disk on fire") }

	got, err := Resolve(id, "abcd1234ef567890", failing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
	assert.Equal(t, PhaseProvisional, got.Phase())
	assert.Equal(t, id.Paths(), got.Paths())
}

func TestTransition_ShortRevision(t *testing.T) {
	c, err := New(baseOptions(t.TempDir()))
	require.NoError(t, err)

	got, err := Resolve(c.Identity(), "abc", func(string, string) error {
		t.Fatal("rename must not be attempted")
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, PhaseProvisional, got.Phase())
}

func TestPaths_Referential(t *testing.T) {
	c, err := New(baseOptions(t.TempDir()))
	require.NoError(t, err)

	id := c.Identity()
	assert.Equal(t, id.Paths(), id.Paths())
}
