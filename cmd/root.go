package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/yugabyte/build-gcc/internal/codes"
	"github.com/yugabyte/build-gcc/internal/config"
	"github.com/yugabyte/build-gcc/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "build-gcc",
	Short: "Build GCC toolchains for YugabyteDB",
	Long: `Clone a GCC release, bootstrap-build it with LTO, package the installation
and publish it as a GitHub release. Set BUILD_GCC_REMOTELY=1 to run the build
on another host.`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(reportFailure(os.Stderr, err))
	}
}

// reportFailure prints the exit code description and returns the code
func reportFailure(w io.Writer, err error) int {
	code := codes.ExitCode(err)
	fmt.Fprintf(w, "%s (exit code %d)\n", codes.GetErrorMessage(code), code)

	return code
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)

	flags := rootCmd.PersistentFlags()
	flags.String("install-parent-dir", config.DefaultInstallParentDir, "Parent directory of the GCC installation directory")
	flags.Bool("local", false, "Build locally even if BUILD_GCC_REMOTELY=1 is set")
	flags.String("remote-server", "", "Host to build on when building remotely")
	flags.String("remote-build-scripts-path", "", "Absolute path of this checkout on the remote host")
	flags.Bool("clean", false, "Delete the build directory before building")
	flags.Int("min-stage", config.DefaultMinStage, "First stage to run (1-7)")
	flags.Int("max-stage", 0, "Last stage to run (1-7, 0 for all)")
	flags.String("top-dir-suffix", "", "Extra suffix for the installation directory name")
	flags.String("gcc-version", config.DefaultGCCVersion, "GCC version to build (12, 13, 14, 15 or a full version)")
	flags.Bool("skip-auto-suffix", false, "Do not add timestamp, revision, OS and architecture to the directory name")
	flags.String("upload-earlier-build", "", "Package and upload an existing installation directory")
	flags.Bool("reuse-tarball", false, "Reuse an existing archive instead of recreating it")
	flags.String("existing-build-dir", "", "Resume a build in this existing build directory")
	flags.IntP("parallelism", "j", 0, "Number of parallel jobs (defaults to the number of CPUs)")
	flags.String("github-org", config.DefaultGitHubOrg, "GitHub organization to clone GCC from")
	flags.Bool("skip-build", false, "Skip configure, make and make install")
	flags.Bool("skip-upload", false, "Do not create a GitHub release")
	flags.String("target-arch", "", "Target CPU architecture (x86_64, aarch64, arm64)")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.Bool("log-json", false, "Log in JSON format")
	flags.Bool("no-registry", false, "Do not record builds in the build registry")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(listCmd)
}
