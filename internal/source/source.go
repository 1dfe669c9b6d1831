// Package source acquires the GCC source tree with git.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/yugabyte/build-gcc/internal/codes"
	"github.com/yugabyte/build-gcc/internal/fsutil"
	"github.com/yugabyte/build-gcc/internal/naming"
	"github.com/yugabyte/build-gcc/internal/shell"
)

// CloneDepth bounds both the clone history and the saved log
const CloneDepth = 10

// LogFileName is written into the build-info directory
const LogFileName = "gcc_git_log.txt"

const shallowCloneError = "attempt to fetch/clone from a shallow repository"

// Git runs the git operations the pipeline needs
type Git struct {
	logger hclog.Logger
	exec   shell.Executor
}

func New(logger hclog.Logger, executor shell.Executor) *Git {
	return &Git{logger: logger, exec: executor}
}

// ReferenceCandidates lists clone directories of earlier builds under
// installParentDir, followed by any extra directories not already listed.
func ReferenceCandidates(installParentDir string, extra []string) []string {
	matches, _ := filepath.Glob(filepath.Join(installParentDir, "*", naming.CloneRelPath))

	var candidates []string
	for _, dir := range append(matches, extra...) {
		if dir == "" || slices.Contains(candidates, dir) {
			continue
		}

		candidates = append(candidates, dir)
	}

	return candidates
}

// FindReference returns the first candidate whose HEAD carries tag. Candidates
// that are missing or that git cannot read are skipped.
func (g *Git) FindReference(ctx context.Context, candidates []string, tag string) (string, bool) {
	g.logger.Info("Searching for existing GCC source directories", "candidates", len(candidates), "tag", tag)

	for _, dir := range candidates {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			g.logger.Warn("Directory does not exist", "dir", dir)
			continue
		}

		out, err := g.exec.Output(ctx, shell.Command{
			Name: "git",
			Args: []string{"tag", "--points-at", "HEAD"},
			Dir:  dir,
		})
		if err != nil {
			g.logger.Debug("Cannot read tags, skipping", "dir", dir, "error", err)
			continue
		}

		for _, line := range strings.Split(out, "\n") {
			found := strings.TrimSpace(line)
			if found == "" {
				continue
			}

			g.logger.Debug("Found tag matching HEAD", "dir", dir, "tag", found)
			if found == tag {
				g.logger.Info("Found existing checkout of the wanted tag", "dir", dir, "tag", tag)
				return dir, true
			}
		}
	}

	g.logger.Info("Did not find an existing checkout", "tag", tag)
	return "", false
}

// CloneTag clones repo at tag into dest. It does nothing when dest already
// exists. A local shallow repository cannot be cloned from, so its tree is
// copied instead.
func (g *Git) CloneTag(ctx context.Context, repo, tag, dest string) error {
	dest, err := filepath.Abs(dest)
	if err != nil {
		return err
	}

	if fsutil.Exists(dest) {
		g.logger.Info("Clone directory already exists, not cloning", "dir", dest)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
	}

	err = g.exec.Run(ctx, shell.Command{
		Name: "git",
		Args: []string{"clone", repo, "--branch", tag, "--depth", strconv.Itoa(CloneDepth), dest},
	})
	if err == nil {
		return nil
	}

	if !strings.Contains(shell.StderrOf(err), shallowCloneError) || !filepath.IsAbs(repo) {
		return err
	}

	if info, statErr := os.Stat(repo); statErr != nil || !info.IsDir() {
		return err
	}

	g.logger.Info("git does not support cloning from a shallow repository, copying", "from", repo, "to", dest)

	// git may leave a partial destination behind
	if _, rmErr := fsutil.RemoveIfExists(dest); rmErr != nil {
		return rmErr
	}

	if err := fsutil.CopyTree(repo, dest); err != nil {
		return codes.Tool("copy", fmt.Errorf("failed to copy %s to %s: %w", repo, dest, err))
	}

	return nil
}

// HeadRevision returns the full revision checked out in dir
func (g *Git) HeadRevision(ctx context.Context, dir string) (string, error) {
	out, err := g.exec.Output(ctx, shell.Command{Name: "git", Args: []string{"rev-parse", "HEAD"}, Dir: dir})
	if err != nil {
		return "", err
	}

	revision := strings.TrimSpace(out)
	if revision == "" {
		return "", codes.Tool("git", fmt.Errorf("git rev-parse HEAD printed nothing in %s", dir))
	}

	return revision, nil
}

// SaveLog writes the most recent history of dir into destFile
func (g *Git) SaveLog(ctx context.Context, dir, destFile string) error {
	g.logger.Info("Saving the git log", "repo", dir, "file", destFile)

	out, err := g.exec.Output(ctx, shell.Command{
		Name: "git",
		Args: []string{"log", "-n", strconv.Itoa(CloneDepth)},
		Dir:  dir,
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destFile), 0o755); err != nil {
		return err
	}

	return os.WriteFile(destFile, []byte(out), 0o644)
}
