package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/yugabyte/build-gcc/internal/buildconf"
	"github.com/yugabyte/build-gcc/internal/codes"
	"github.com/yugabyte/build-gcc/internal/naming"
)

// Default configuration values
const (
	DefaultInstallParentDir = naming.DefaultInstallParentDir
	DefaultGCCVersion       = "15"
	DefaultGitHubOrg        = naming.DefaultGitHubOrg
	DefaultRemoteCommand    = "bin/build-gcc"
	DefaultTokenFile        = "~/.github-token"
	DefaultMinStage         = 1

	// NumStages is the number of pipeline stages addressable by min/max stage
	NumStages = 7
)

// S3Config describes the optional artifact mirror
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Enabled reports whether a mirror bucket is configured
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// Holds the configuration options for build-gcc
type Config struct {
	// Parent directory of the final installation directory
	InstallParentDir string

	// Force local execution even when remote execution is requested by the environment
	Local bool
	// Remote execution requested (BUILD_GCC_REMOTELY=1)
	Remotely               bool
	RemoteServer           string
	RemoteBuildScriptsPath string
	// Entry point invoked on the remote host, relative to RemoteBuildScriptsPath
	RemoteCommand string
	RemoteMkdir   bool

	// Delete the build directory before building
	Clean    bool
	MinStage int
	// Zero means no upper bound
	MaxStage int

	TopDirSuffix   string
	GCCVersion     string
	SkipAutoSuffix bool

	UploadEarlierBuild string
	ReuseTarball       bool
	ExistingBuildDir   string

	Parallelism int
	GitHubOrg   string
	SkipBuild   bool
	SkipUpload  bool

	// From --target-arch
	TargetArch string
	// From YB_TARGET_ARCH
	TargetArchEnv string

	// Directory holding this project's checkout; synced to remote hosts
	ProjectRoot string
	// File holding the GitHub token, read when GITHUB_TOKEN is unset
	TokenFile string

	Verbose    bool
	LogJSON    bool
	NoRegistry bool

	S3 S3Config
}

func Load() (*Config, error) {
	cfg := &Config{
		InstallParentDir:       viper.GetString("install_parent_dir"),
		Local:                  viper.GetBool("local"),
		Remotely:               viper.GetBool("remotely"),
		RemoteServer:           viper.GetString("remote_server"),
		RemoteBuildScriptsPath: viper.GetString("remote_build_scripts_path"),
		RemoteCommand:          viper.GetString("remote_command"),
		RemoteMkdir:            viper.GetBool("remote_mkdir"),
		Clean:                  viper.GetBool("clean"),
		MinStage:               viper.GetInt("min_stage"),
		MaxStage:               viper.GetInt("max_stage"),
		TopDirSuffix:           viper.GetString("top_dir_suffix"),
		GCCVersion:             viper.GetString("gcc_version"),
		SkipAutoSuffix:         viper.GetBool("skip_auto_suffix"),
		UploadEarlierBuild:     viper.GetString("upload_earlier_build"),
		ReuseTarball:           viper.GetBool("reuse_tarball"),
		ExistingBuildDir:       viper.GetString("existing_build_dir"),
		Parallelism:            viper.GetInt("parallelism"),
		GitHubOrg:              viper.GetString("github_org"),
		SkipBuild:              viper.GetBool("skip_build"),
		SkipUpload:             viper.GetBool("skip_upload"),
		TargetArch:             viper.GetString("target_arch"),
		TargetArchEnv:          viper.GetString("target_arch_env"),
		ProjectRoot:            viper.GetString("project_root"),
		TokenFile:              viper.GetString("github_token_file"),
		Verbose:                viper.GetBool("verbose"),
		LogJSON:                viper.GetBool("log_json"),
		NoRegistry:             viper.GetBool("no_registry"),
		S3: S3Config{
			Endpoint:  viper.GetString("s3_endpoint"),
			Region:    viper.GetString("s3_region"),
			Bucket:    viper.GetString("s3_bucket"),
			AccessKey: viper.GetString("s3_access_key"),
			SecretKey: viper.GetString("s3_secret_key"),
			UseSSL:    viper.GetBool("s3_use_ssl"),
		},
	}

	// Apply defaults if not set
	if cfg.InstallParentDir == "" {
		cfg.InstallParentDir = DefaultInstallParentDir
	}

	if cfg.GCCVersion == "" {
		cfg.GCCVersion = DefaultGCCVersion
	}

	if cfg.GitHubOrg == "" {
		cfg.GitHubOrg = DefaultGitHubOrg
	}

	if cfg.RemoteCommand == "" {
		cfg.RemoteCommand = DefaultRemoteCommand
	}

	if cfg.MinStage == 0 {
		cfg.MinStage = DefaultMinStage
	}

	if cfg.ProjectRoot == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.ProjectRoot = FindProjectRoot(cwd)
		}
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate normalises paths and rejects inconsistent options. All failures are configuration errors.
func (c *Config) Validate() error {
	if c.MinStage < 1 || c.MinStage > NumStages {
		return codes.Configf("--min-stage must be between 1 and %d, got %d", NumStages, c.MinStage)
	}

	if c.MaxStage != 0 && (c.MaxStage < c.MinStage || c.MaxStage > NumStages) {
		return codes.Configf("--max-stage must be between --min-stage (%d) and %d, got %d", c.MinStage, NumStages, c.MaxStage)
	}

	// Later stages find the clone by tag, which is only predictable without the automatic suffix
	if c.MinStage > 1 && c.ExistingBuildDir == "" && c.UploadEarlierBuild == "" && !c.SkipAutoSuffix {
		return codes.Configf("--min-stage %d requires --existing-build-dir, --upload-earlier-build or --skip-auto-suffix", c.MinStage)
	}

	if c.Parallelism < 0 {
		return codes.Configf("--parallelism must be positive, got %d", c.Parallelism)
	}

	if c.TargetArch != "" && !slices.Contains(buildconf.SupportedArchs, c.TargetArch) {
		return codes.Configf("invalid --target-arch %q, expected one of %v", c.TargetArch, buildconf.SupportedArchs)
	}

	for _, p := range []*string{&c.InstallParentDir, &c.ExistingBuildDir, &c.UploadEarlierBuild, &c.ProjectRoot} {
		if *p == "" {
			continue
		}

		abs, err := filepath.Abs(ExpandHome(*p))
		if err != nil {
			return codes.Configf("invalid path %q: %v", *p, err)
		}

		*p = abs
	}

	c.TokenFile = ExpandHome(c.TokenFile)

	return nil
}

// ExpandHome replaces a leading "~/" with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func (c *Config) String() string {
	return fmt.Sprintf("gcc %s into %s", c.GCCVersion, c.InstallParentDir)
}
