// Package cleanup removes a partially created directory when a build aborts.
package cleanup

import (
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/yugabyte/build-gcc/internal/fsutil"
)

// Guard owns a directory until disarmed. Release removes the directory only
// while the guard is armed; callers defer Release right after Arm.
type Guard struct {
	logger hclog.Logger
	remove func(string) (bool, error)

	mu    sync.Mutex
	path  string
	armed bool
}

func NewGuard(logger hclog.Logger) *Guard {
	return &Guard{logger: logger, remove: fsutil.RemoveIfExists}
}

// Arm takes ownership of path
func (g *Guard) Arm(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.path = path
	g.armed = true
	g.logger.Debug("Cleanup armed", "dir", path)
}

// Disarm gives up ownership, keeping the directory
func (g *Guard) Disarm() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.armed {
		g.logger.Debug("Cleanup disarmed", "dir", g.path)
	}

	g.armed = false
}

// Release removes the owned directory if still armed. Failures are logged. It is safe to call more than once.
func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.armed {
		return
	}

	g.armed = false

	removed, err := g.remove(g.path)
	switch {
	case err != nil:
		g.logger.Error("Failed to remove directory", "dir", g.path, "error", err)
	case removed:
		g.logger.Info("Removed directory", "dir", g.path)
	default:
		g.logger.Warn("Directory does not exist, nothing to remove", "dir", g.path)
	}
}
