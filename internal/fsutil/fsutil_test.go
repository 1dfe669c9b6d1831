package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyTree(t *testing.T) {
	src := filepath.Join(t.TempDir(), "gcc")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "contrib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "README"), []byte("GNU Compiler Collection"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "contrib", "download_prerequisites"), []byte("#!/bin/sh\n"), 0o755))
	if runtime.GOOS != "windows" {
		require.NoError(t, os.Symlink("README", filepath.Join(src, "README.link")))
	}

	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, CopyTree(src, dst))

	content, err := os.ReadFile(filepath.Join(dst, "README"))
	require.NoError(t, err)
	assert.Equal(t, "GNU Compiler Collection", string(content))

	info, err := os.Stat(filepath.Join(dst, "contrib", "download_prerequisites"))
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm(), "File permissions should be preserved")

		link, err := os.Readlink(filepath.Join(dst, "README.link"))
		require.NoError(t, err)
		assert.Equal(t, "README", link)
	}
}

func TestCopyTree_DestinationExists(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	err := CopyTree(src, dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRemoveIfExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "stale")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))

	removed, err := RemoveIfExists(dir)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.NoDirExists(t, dir)

	removed, err = RemoveIfExists(dir)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestExists(t *testing.T) {
	file := filepath.Join(t.TempDir(), "x")
	assert.False(t, Exists(file))
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.True(t, Exists(file))
}
