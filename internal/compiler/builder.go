// Package compiler configures, bootstraps and installs GCC from a source checkout.
package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-hclog"

	"github.com/yugabyte/build-gcc/internal/arch"
	"github.com/yugabyte/build-gcc/internal/fsutil"
	"github.com/yugabyte/build-gcc/internal/hostinfo"
	"github.com/yugabyte/build-gcc/internal/shell"
	"github.com/yugabyte/build-gcc/internal/toolchain"
)

// Request describes one compilation
type Request struct {
	CloneDir     string
	BuildDir     string
	InstallDir   string
	MajorVersion int
	Parallelism  int
	TargetArch   string
	Clean        bool
	Activation   *toolchain.Activation
}

// Step is one command of the build with a short description for the log
type Step struct {
	Description string
	Command     shell.Command
}

// Validator checks the architecture of installed files
type Validator interface {
	Validate(ctx context.Context, host hostinfo.Host, target, topDir string) (arch.Report, error)
}

// CommandBuilder builds and runs the compiler build commands
type CommandBuilder struct {
	logger    hclog.Logger
	exec      shell.Executor
	host      hostinfo.Host
	validator Validator
}

// NewCommandBuilder creates a new command builder
func NewCommandBuilder(logger hclog.Logger, executor shell.Executor, host hostinfo.Host) *CommandBuilder {
	return &CommandBuilder{
		logger:    logger,
		exec:      executor,
		host:      host,
		validator: arch.NewValidator(logger.Named("arch"), executor),
	}
}

// Steps returns the commands of a build in order
func (cb *CommandBuilder) Steps(req Request) []Step {
	prefix := arch.SwitchPrefix(cb.host, req.TargetArch)

	var env map[string]string
	var compilers toolchain.Compilers
	if req.Activation != nil {
		env = req.Activation.Env
		compilers = req.Activation.Compilers
	}

	command := func(dir, name string, args ...string) shell.Command {
		words := append(append(append([]string{}, prefix...), name), args...)
		return shell.Command{Name: words[0], Args: words[1:], Dir: dir, Env: env}
	}

	return []Step{
		{
			Description: "Running download_prerequisites",
			Command:     command(req.CloneDir, filepath.Join(req.CloneDir, "contrib", "download_prerequisites")),
		},
		{
			Description: "Running configure",
			Command: command(req.BuildDir, filepath.Join(req.CloneDir, "configure"),
				ConfigureArgs(req.InstallDir, req.MajorVersion, compilers)...),
		},
		{
			Description: "Building GCC",
			Command:     command(req.BuildDir, "make", "-j", strconv.Itoa(req.Parallelism), MakeTarget),
		},
		{
			Description: "Installing GCC",
			Command:     command(req.BuildDir, "make", "install"),
		},
	}
}

// Build runs every step, then checks the architecture of the installed files
func (cb *CommandBuilder) Build(ctx context.Context, req Request) error {
	cb.PrintBuildInfo(req)

	if req.Clean {
		removed, err := fsutil.RemoveIfExists(req.BuildDir)
		if err != nil {
			return err
		}

		if removed {
			cb.logger.Info("Deleted build directory", "dir", req.BuildDir)
		}
	}

	for i, step := range cb.Steps(req) {
		// The build directory is needed from configure onwards
		if i == 1 {
			if err := os.MkdirAll(req.BuildDir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", req.BuildDir, err)
			}
		}

		cb.logger.Info(step.Description)
		if err := cb.exec.Run(ctx, step.Command); err != nil {
			return err
		}
	}

	_, err := cb.validator.Validate(ctx, cb.host, req.TargetArch, req.InstallDir)
	return err
}

// PrintBuildInfo logs the settings of a build at debug level
func (cb *CommandBuilder) PrintBuildInfo(req Request) {
	args := []any{
		"clone_dir", req.CloneDir,
		"build_dir", req.BuildDir,
		"install_dir", req.InstallDir,
		"parallelism", req.Parallelism,
		"target_arch", req.TargetArch,
		"clean", req.Clean,
	}

	if req.Activation != nil {
		args = append(args, "toolset", req.Activation.Toolset, "cc", req.Activation.Compilers.CC, "cxx", req.Activation.Compilers.CXX)
	}

	cb.logger.Debug("Build settings", args...)
}
