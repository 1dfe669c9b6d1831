package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// AppName names the global config directory and the local config file
const AppName = "build-gcc"

// flagKeys maps command-line flags to viper keys
var flagKeys = map[string]string{
	"install-parent-dir":        "install_parent_dir",
	"local":                     "local",
	"remote-server":             "remote_server",
	"remote-build-scripts-path": "remote_build_scripts_path",
	"clean":                     "clean",
	"min-stage":                 "min_stage",
	"max-stage":                 "max_stage",
	"top-dir-suffix":            "top_dir_suffix",
	"gcc-version":               "gcc_version",
	"skip-auto-suffix":          "skip_auto_suffix",
	"upload-earlier-build":      "upload_earlier_build",
	"reuse-tarball":             "reuse_tarball",
	"existing-build-dir":        "existing_build_dir",
	"parallelism":               "parallelism",
	"github-org":                "github_org",
	"skip-build":                "skip_build",
	"skip-upload":               "skip_upload",
	"target-arch":               "target_arch",
	"verbose":                   "verbose",
	"log-json":                  "log_json",
	"no-registry":               "no_registry",
}

// envKeys binds the environment variable names the build scripts have always used
var envKeys = map[string]string{
	"remotely":                  "BUILD_GCC_REMOTELY",
	"remote_server":             "BUILD_GCC_REMOTE_SERVER",
	"remote_build_scripts_path": "BUILD_GCC_REMOTE_BUILD_SCRIPTS_PATH",
	"target_arch_env":           "YB_TARGET_ARCH",
	"project_root":              "BUILD_GCC_SCRIPTS_ROOT_PATH",
}

// Loader handles configuration loading from various sources
type Loader struct {
	// globalDir returns the per-user configuration directory
	globalDir func() (string, error)
	// workDir is where the local config search starts
	workDir func() (string, error)
	// executable locates the running binary
	executable func() (string, error)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		globalDir:  os.UserConfigDir,
		workDir:    os.Getwd,
		executable: os.Executable,
	}
}

// LoadForBuild loads configuration specifically for build operations
func (l *Loader) LoadForBuild(cmd *cobra.Command) (*Config, error) {
	l.setupViperDefaults()
	l.setupProjectRoot()
	l.loadDotEnv()
	l.loadGlobalConfig()
	l.loadLocalConfig()
	l.bindEnv()
	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("install_parent_dir", DefaultInstallParentDir)
	viper.SetDefault("gcc_version", DefaultGCCVersion)
	viper.SetDefault("github_org", DefaultGitHubOrg)
	viper.SetDefault("remote_command", DefaultRemoteCommand)
	viper.SetDefault("remote_mkdir", true)
	viper.SetDefault("min_stage", DefaultMinStage)
	viper.SetDefault("github_token_file", DefaultTokenFile)
	viper.SetDefault("s3_region", "us-east-1")
	viper.SetDefault("s3_use_ssl", true)
}

// setupProjectRoot defaults project_root to the checkout the binary was built
// from, else to the checkout containing the working directory
func (l *Loader) setupProjectRoot() {
	if root := l.projectRoot(); root != "" {
		viper.SetDefault("project_root", root)
	}
}

func (l *Loader) projectRoot() string {
	if exe, err := l.executable(); err == nil {
		if root, ok := ScriptsRoot(exe); ok {
			return root
		}
	}

	if dir, err := l.workDir(); err == nil {
		return FindProjectRoot(dir)
	}

	return ""
}

// loadDotEnv loads a .env file from the project root into the process environment.
// Variables already set in the environment win.
func (l *Loader) loadDotEnv() {
	root := l.projectRoot()
	if root == "" {
		return
	}

	path := filepath.Join(root, ".env")
	if _, err := os.Stat(path); err == nil {
		_ = godotenv.Load(path)
	}
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	base, err := l.globalDir()
	if err != nil || base == "" {
		return
	}

	globalDir := filepath.Join(base, AppName)
	for _, ext := range configExts {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.ReadInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig merges the nearest .build-gcc.* file over the global configuration
func (l *Loader) loadLocalConfig() {
	dir, err := l.workDir()
	if err != nil {
		return // silently ignore, config.Load() will handle validation
	}

	localPath := FindLocalConfig(dir)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// bindEnv binds environment variables to viper keys
func (l *Loader) bindEnv() {
	viper.SetEnvPrefix("BUILD_GCC")
	viper.AutomaticEnv()

	for key, env := range envKeys {
		_ = viper.BindEnv(key, env)
	}
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}
