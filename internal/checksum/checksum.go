// Package checksum computes and persists SHA-256 digests of release archives.
package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/yugabyte/build-gcc/internal/codes"
	"github.com/yugabyte/build-gcc/internal/naming"
	"github.com/yugabyte/build-gcc/internal/shell"
)

// ToolFor returns the digest command line for an OS family
func ToolFor(goos string) []string {
	if goos == "darwin" {
		return []string{"shasum", "-a", "256"}
	}

	return []string{"sha256sum"}
}

// Digester computes hex-encoded SHA-256 digests using the platform tool,
// falling back to an in-process hash when the tool is not installed
type Digester struct {
	logger   hclog.Logger
	exec     shell.Executor
	goos     string
	lookPath func(string) (string, error)
}

func NewDigester(logger hclog.Logger, executor shell.Executor) *Digester {
	return &Digester{
		logger:   logger,
		exec:     executor,
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
	}
}

// Digest returns the hex SHA-256 of the file at path
func (d *Digester) Digest(ctx context.Context, path string) (string, error) {
	tool := ToolFor(d.goos)
	if _, err := d.lookPath(tool[0]); err != nil {
		d.logger.Warn("checksum tool not found, hashing in-process", "tool", tool[0])
		return HashFile(path)
	}

	out, err := d.exec.Output(ctx, shell.Command{Name: tool[0], Args: append(tool[1:], path)})
	if err != nil {
		return "", err
	}

	return ParseToolOutput(out)
}

// ParseToolOutput extracts the digest from "<hex>  <path>" output
func ParseToolOutput(out string) (string, error) {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return "", codes.Tool("checksum", fmt.Errorf("empty checksum output"))
	}

	sum := strings.ToLower(fields[0])
	if _, err := hex.DecodeString(sum); err != nil || len(sum) != sha256.Size*2 {
		return "", codes.Tool("checksum", fmt.Errorf("unexpected checksum output %q", out))
	}

	return sum, nil
}

// WriteFile digests archivePath and writes "<hex>  <archivePath>" to the checksum file beside it
func (d *Digester) WriteFile(ctx context.Context, archivePath string) (string, string, error) {
	sum, err := d.Digest(ctx, archivePath)
	if err != nil {
		return "", "", err
	}

	sumPath := naming.ChecksumPath(archivePath)
	if err := os.WriteFile(sumPath, []byte(Line(sum, archivePath)), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write %s: %w", sumPath, err)
	}

	return sumPath, sum, nil
}

// Line formats a digest the way sha256sum does
func Line(sum, path string) string {
	return sum + "  " + path + "\n"
}

// HashFile creates a hash of a file's content
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
