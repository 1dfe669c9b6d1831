// Package remote decides where a build runs and, for remote builds, syncs this
// checkout to the build host and re-runs the same command there.
package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/hashicorp/go-hclog"

	"github.com/yugabyte/build-gcc/internal/codes"
	"github.com/yugabyte/build-gcc/internal/shell"
)

// ExcludesFile is written inside the checkout's .git directory
const ExcludesFile = "ignores.tmp"

// EnvFile holds host-local settings and is never synced to the remote host
const EnvFile = ".env"

// Mode is where the pipeline executes
type Mode int

const (
	ModeLocal Mode = iota
	ModeRemote
)

func (m Mode) String() string {
	if m == ModeRemote {
		return "remote"
	}

	return "local"
}

// Settings carry everything the dispatcher needs
type Settings struct {
	// Remotely is set from BUILD_GCC_REMOTELY
	Remotely bool
	// Local forces local execution
	Local bool

	Server      string
	ScriptsPath string
	// Command is run from ScriptsPath on the remote host
	Command string
	Mkdir   bool

	// ProjectRoot is the checkout synced to the remote host
	ProjectRoot string
	// Args are passed to Command unchanged
	Args []string
}

// Decide returns the execution mode. Remote mode requires a server and an absolute scripts path.
func Decide(s Settings) (Mode, error) {
	if s.Local || !s.Remotely {
		return ModeLocal, nil
	}

	if s.Server == "" {
		return ModeLocal, codes.Configf("remote build requested but no remote server is set (--remote-server or BUILD_GCC_REMOTE_SERVER)")
	}

	if s.ScriptsPath == "" || !filepath.IsAbs(s.ScriptsPath) {
		return ModeLocal, codes.Configf("remote build scripts path must be absolute, got %q", s.ScriptsPath)
	}

	return ModeRemote, nil
}

// Runner executes the build in one place
type Runner interface {
	Run(ctx context.Context) error
}

// Local runs the pipeline in this process
type Local func(ctx context.Context) error

func (l Local) Run(ctx context.Context) error {
	return l(ctx)
}

// Remote syncs the checkout and runs the build over ssh. No local stage runs.
type Remote struct {
	logger   hclog.Logger
	exec     shell.Executor
	settings Settings
}

func NewRemote(logger hclog.Logger, executor shell.Executor, s Settings) *Remote {
	return &Remote{logger: logger, exec: executor, settings: s}
}

func (r *Remote) Run(ctx context.Context) error {
	s := r.settings
	quotedPath := shellescape.Quote(s.ScriptsPath)

	r.logger.Info("Building remotely", "server", s.Server, "path", s.ScriptsPath)

	if s.Mkdir {
		if err := r.ssh(ctx, "mkdir -p "+quotedPath); err != nil {
			return err
		}
	}

	excludes, err := r.writeExcludes(ctx)
	if err != nil {
		return err
	}

	err = r.exec.Run(ctx, shell.Command{
		Name: "rsync",
		Args: []string{
			"-avh",
			"--delete",
			"--exclude", ".git",
			"--exclude", "/" + EnvFile,
			"--exclude-from=" + excludes,
			".",
			s.Server + ":" + s.ScriptsPath,
		},
		Dir: s.ProjectRoot,
	})
	if err != nil {
		return err
	}

	return r.ssh(ctx, "bash", "-c", shellescape.Quote(Script(s.ScriptsPath, s.Command, s.Args)))
}

// Script is the remote shell command line: change to the scripts directory
// and run command with every argument quoted
func Script(scriptsPath, command string, args []string) string {
	words := make([]string, 0, len(args)+1)
	words = append(words, command)
	for _, a := range args {
		words = append(words, shellescape.Quote(a))
	}

	return strings.TrimSpace(fmt.Sprintf("cd %s && %s", shellescape.Quote(scriptsPath), strings.Join(words, " ")))
}

func (r *Remote) writeExcludes(ctx context.Context) (string, error) {
	root := r.settings.ProjectRoot

	gitDir := filepath.Join(root, ".git")
	if info, err := os.Stat(gitDir); err != nil || !info.IsDir() {
		return "", codes.Configf("%s is not a git checkout, cannot sync it to the remote host", root)
	}

	out, err := r.exec.Output(ctx, shell.Command{
		Name: "git",
		Args: []string{"-C", ".", "ls-files", "--exclude-standard", "-oi", "--directory"},
		Dir:  root,
	})
	if err != nil {
		return "", err
	}

	path := filepath.Join(gitDir, ExcludesFile)
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	return path, nil
}

func (r *Remote) ssh(ctx context.Context, args ...string) error {
	return r.exec.Run(ctx, shell.Command{
		Name: "ssh",
		Args: append([]string{r.settings.Server}, args...),
	})
}
