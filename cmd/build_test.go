package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yugabyte/build-gcc/internal/codes"
	"github.com/yugabyte/build-gcc/internal/config"
	"github.com/yugabyte/build-gcc/internal/hostinfo"
	"github.com/yugabyte/build-gcc/internal/registry"
	"github.com/yugabyte/build-gcc/internal/remote"
	"github.com/yugabyte/build-gcc/internal/shell/shelltest"
)

var testHost = hostinfo.Host{OS: "linux", Arch: "x86_64", Label: "almalinux8"}

func stubHost(t *testing.T) {
	t.Helper()
	original := detectHost
	detectHost = func() (hostinfo.Host, error) { return testHost, nil }
	t.Cleanup(func() { detectHost = original })
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		InstallParentDir: t.TempDir(),
		GCCVersion:       "15",
		GitHubOrg:        config.DefaultGitHubOrg,
		RemoteCommand:    config.DefaultRemoteCommand,
		MinStage:         1,
	}
}

func TestNewRunner_Remote(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remotely = true
	cfg.RemoteServer = "build-host"
	cfg.RemoteBuildScriptsPath = "/home/yb/build-gcc"

	detectHost = func() (hostinfo.Host, error) {
		t.Fatal("remote builds must not inspect the local host")
		return hostinfo.Host{}, nil
	}
	t.Cleanup(func() { detectHost = hostinfo.Detect })

	runner, err := newRunner(cfg, hclog.NewNullLogger(), &shelltest.Fake{}, []string{"--gcc-version", "15"})
	require.NoError(t, err)
	assert.IsType(t, &remote.Remote{}, runner)
}

func TestNewRunner_RemoteMisconfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remotely = true

	_, err := newRunner(cfg, hclog.NewNullLogger(), &shelltest.Fake{}, nil)
	require.Error(t, err)
	assert.True(t, codes.IsConfig(err))
	assert.Equal(t, codes.ExitConfig, codes.ExitCode(err))
}

func TestNewRunner_LocalOverride(t *testing.T) {
	stubHost(t)
	cfg := testConfig(t)
	cfg.Remotely = true
	cfg.Local = true

	runner, err := newRunner(cfg, hclog.NewNullLogger(), &shelltest.Fake{}, nil)
	require.NoError(t, err)
	assert.IsType(t, remote.Local(nil), runner)
}

func TestNewPipeline_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "old version", mutate: func(c *config.Config) { c.GCCVersion = "11" }},
		{name: "arch conflict", mutate: func(c *config.Config) { c.TargetArch = "aarch64" }},
		{name: "incomplete S3 settings", mutate: func(c *config.Config) { c.S3 = config.S3Config{Bucket: "toolchains"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			_, err := newPipeline(cfg, testHost, hclog.NewNullLogger(), &shelltest.Fake{})
			require.Error(t, err)
			assert.True(t, codes.IsConfig(err), "expected a configuration error, got %v", err)
		})
	}
}

func TestNewPipeline(t *testing.T) {
	cfg := testConfig(t)
	cfg.S3 = config.S3Config{Endpoint: "localhost:9000", Bucket: "toolchains", AccessKey: "a", SecretKey: "s"}

	p, err := newPipeline(cfg, testHost, hclog.NewNullLogger(), &shelltest.Fake{})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestReportFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "configuration error",
			err:      codes.Configf("missing remote server"),
			wantCode: codes.ExitConfig,
			wantMsg:  "Configuration error (exit code 2)",
		},
		{
			name:     "invariant violation",
			err:      codes.Invariantf("bad basename"),
			wantCode: codes.ExitInvariant,
			wantMsg:  "Internal invariant violation (exit code 70)",
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			wantCode: codes.ExitGeneral,
			wantMsg:  "General failure (exit code 1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Equal(t, tt.wantCode, reportFailure(&buf, tt.err))
			assert.Equal(t, tt.wantMsg+"\n", buf.String())
		})
	}
}

func TestPrintEntries(t *testing.T) {
	var buf bytes.Buffer
	printEntries(&buf, []registry.Entry{
		{
			Tag:        "v15.2.0-1700000000-abcd1234-almalinux8-x86_64",
			Stages:     []string{"source", "revision"},
			InstallDir: "/opt/yb-build/gcc/yb-gcc-v15.2.0-1700000000-abcd1234-almalinux8-x86_64",
			UpdatedAt:  time.Unix(1700000000, 0),
		},
		{Tag: "v14.3.0", Published: true, Archive: "/opt/yb-build/gcc/yb-gcc-v14.3.0.tar.gz"},
	})

	output := buf.String()
	assert.Contains(t, output, "v15.2.0-1700000000-abcd1234-almalinux8-x86_64")
	assert.Contains(t, output, "not published")
	assert.Contains(t, output, "source, revision")
	assert.Contains(t, output, "published")
	assert.Contains(t, output, "yb-gcc-v14.3.0.tar.gz")
}

func TestListCommand(t *testing.T) {
	t.Cleanup(viper.Reset)

	parent := t.TempDir()
	reg := registry.New(parent)
	require.NoError(t, reg.MarkStage("v15.2.0", "source", nil))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"list", "--install-parent-dir", parent})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "v15.2.0")
	assert.Contains(t, out.String(), "1 builds, 0 B of archives")
}

func TestListCommand_ArchiveSize(t *testing.T) {
	t.Cleanup(viper.Reset)

	parent := t.TempDir()
	archive := filepath.Join(parent, "yb-gcc-v15.2.0.tar.gz")
	require.NoError(t, os.WriteFile(archive, make([]byte, 1536), 0o644))

	reg := registry.New(parent)
	require.NoError(t, reg.MarkStage("v15.2.0", "package", func(e *registry.Entry) { e.Archive = archive }))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"list", "--install-parent-dir", parent})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "1 builds, 1.5 KiB of archives")
}
