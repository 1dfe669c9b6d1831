// Package toolchain selects the host C and C++ compilers used to bootstrap GCC.
package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/yugabyte/build-gcc/internal/codes"
	"github.com/yugabyte/build-gcc/internal/hostinfo"
	"github.com/yugabyte/build-gcc/internal/shell"
)

// EnvAllowList names the variables taken over from an activated toolset
var EnvAllowList = []string{
	"INFOPATH",
	"LD_LIBRARY_PATH",
	"MANPATH",
	"PATH",
	"PCP_DIR",
	"PERL5LIB",
	"PKG_CONFIG_PATH",
	"PYTHONPATH",
}

// ToolsetVersions are probed newest first
var ToolsetVersions = []int{14, 13, 12, 11, 10, 9}

// Compilers are the host compilers passed to configure. Empty means not found.
type Compilers struct {
	CC  string
	CXX string
}

// Activation is the environment a build runs with. Env holds only
// allow-listed variables and overrides the inherited environment.
type Activation struct {
	Toolset   string
	Env       map[string]string
	Compilers Compilers
}

// Selector activates toolsets and finds compilers. Root prefixes every probed
// absolute path.
type Selector struct {
	logger    hclog.Logger
	exec      shell.Executor
	Root      string
	AllowList []string
	Versions  []int
	getenv    func(string) string
}

func NewSelector(logger hclog.Logger, executor shell.Executor) *Selector {
	return &Selector{
		logger:    logger,
		exec:      executor,
		Root:      "/",
		AllowList: EnvAllowList,
		Versions:  ToolsetVersions,
		getenv:    os.Getenv,
	}
}

// Activate returns the build environment for host
func (s *Selector) Activate(ctx context.Context, host hostinfo.Host) (*Activation, error) {
	a := &Activation{Env: map[string]string{}}

	if host.IsLinux() && host.Label == "centos7" {
		if err := s.activateDevtoolset(ctx, a); err != nil {
			return nil, err
		}
	}

	a.Compilers = s.findCompilers(host, a.Env)
	s.logger.Info("Selected host compilers", "cc", a.Compilers.CC, "cxx", a.Compilers.CXX)

	return a, nil
}

func (s *Selector) activateDevtoolset(ctx context.Context, a *Activation) error {
	var script string
	for _, n := range s.Versions {
		candidate := s.path(fmt.Sprintf("/opt/rh/devtoolset-%d/enable", n))
		if _, err := os.Stat(candidate); err == nil {
			script = candidate
			a.Toolset = fmt.Sprintf("devtoolset-%d", n)
			break
		}
	}

	if script == "" {
		return codes.Tool("devtoolset", fmt.Errorf("could not find an acceptable devtoolset"))
	}

	out, err := s.exec.Output(ctx, shell.Command{Name: "bash", Args: []string{"-c", ". " + script + " && env"}})
	if err != nil {
		return err
	}

	a.Env = FilterEnv(out, s.AllowList)
	for _, k := range sortedKeys(a.Env) {
		s.logger.Info("Setting variable from devtoolset", "name", k, "value", a.Env[k])
	}

	return nil
}

// FilterEnv parses KEY=VALUE lines and keeps only allow-listed keys
func FilterEnv(out string, allow []string) map[string]string {
	env := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		k, v, ok := strings.Cut(line, "=")
		if !ok || !slices.Contains(allow, k) {
			continue
		}

		env[k] = v
	}

	return env
}

func (s *Selector) findCompilers(host hostinfo.Host, env map[string]string) Compilers {
	if host.IsLinux() && host.Label == "amzn2" {
		for _, n := range s.Versions {
			cc := s.path(fmt.Sprintf("/usr/bin/gcc%d-gcc", n))
			cxx := s.path(fmt.Sprintf("/usr/bin/gcc%d-g++", n))
			if isFile(cc) && isFile(cxx) {
				return Compilers{CC: cc, CXX: cxx}
			}
		}
	}

	pathValue, ok := env["PATH"]
	if !ok {
		pathValue = s.getenv("PATH")
	}

	return Compilers{
		CC:  shell.LookPath("gcc", pathValue),
		CXX: shell.LookPath("g++", pathValue),
	}
}

func (s *Selector) path(abs string) string {
	return filepath.Join(s.Root, abs)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)
	return keys
}
