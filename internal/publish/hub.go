package publish

import (
	"context"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/yugabyte/build-gcc/internal/shell"
)

// TokenEnv carries the GitHub token to hub
const TokenEnv = "GITHUB_TOKEN"

// Hub creates GitHub releases with the hub CLI
type Hub struct {
	logger hclog.Logger
	exec   shell.Executor
	// Dir is the checkout hub runs in; it determines the target repository
	Dir       string
	TokenFile string
	getenv    func(string) string
}

func NewHub(logger hclog.Logger, executor shell.Executor, dir, tokenFile string) *Hub {
	return &Hub{
		logger:    logger,
		exec:      executor,
		Dir:       dir,
		TokenFile: tokenFile,
		getenv:    os.Getenv,
	}
}

func (h *Hub) Name() string { return "hub" }

// Publish creates the release with the archive and checksum attached
func (h *Hub) Publish(ctx context.Context, r Release) error {
	var env map[string]string
	if h.getenv(TokenEnv) == "" {
		token, err := LoadToken(h.TokenFile)
		if err != nil {
			return err
		}

		if token != "" {
			h.logger.Info("Reading GitHub token", "file", h.TokenFile)
			env = map[string]string{TokenEnv: token}
		}
	}

	return h.exec.Run(ctx, shell.Command{
		Name: "hub",
		Args: []string{
			"release",
			"create", r.Tag,
			"-m", "Release " + r.Tag,
			"-a", r.Archive,
			"-a", r.Checksum,
		},
		Dir: h.Dir,
		Env: env,
	})
}

// LoadToken reads a token file. A missing file yields an empty token.
func LoadToken(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}

	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}
