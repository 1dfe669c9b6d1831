package config

import (
	"os"
	"path/filepath"
)

var configExts = []string{"yml", "yaml", "json", "toml"}

// FindLocalConfig finds local config file by walking up directories
func FindLocalConfig(dir string) string {
	found := ""
	walkUp(dir, func(d string) bool {
		for _, ext := range configExts {
			path := filepath.Join(d, "."+AppName+"."+ext)

			if _, err := os.Stat(path); err == nil {
				found = path
				return true
			}
		}

		return false
	})

	return found
}

// FindProjectRoot returns the nearest directory at or above dir that contains .git,
// or dir itself when there is none
func FindProjectRoot(dir string) string {
	found := dir
	walkUp(dir, func(d string) bool {
		if _, err := os.Stat(filepath.Join(d, ".git")); err == nil {
			found = d
			return true
		}

		return false
	})

	return found
}

// ScriptsRoot returns the checkout that holds executable when it was built by
// the entry script as <root>/build/build-gcc
func ScriptsRoot(executable string) (string, bool) {
	if resolved, err := filepath.EvalSymlinks(executable); err == nil {
		executable = resolved
	}

	dir := filepath.Dir(executable)
	if filepath.Base(dir) != "build" {
		return "", false
	}

	root := filepath.Dir(dir)
	if _, err := os.Stat(filepath.Join(root, DefaultRemoteCommand)); err != nil {
		return "", false
	}

	return root, true
}

// walkUp calls visit for dir and each parent until visit returns true
func walkUp(dir string, visit func(string) bool) {
	for {
		if visit(dir) {
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}

		dir = parent
	}
}
