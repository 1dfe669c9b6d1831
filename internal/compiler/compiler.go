package compiler

import (
	"fmt"
	"path/filepath"

	"github.com/yugabyte/build-gcc/internal/toolchain"
)

// BuildDirName is the out-of-tree build directory inside the build parent directory
const BuildDirName = "build"

// MakeTarget is the bootstrap target built before installation
const MakeTarget = "profiledbootstrap"

// BuildDir returns the out-of-tree build directory for a build parent directory
func BuildDir(buildParentDir string) string {
	return filepath.Join(buildParentDir, BuildDirName)
}

// ConfigureArgs returns the arguments passed to GCC's configure script
func ConfigureArgs(installDir string, majorVersion int, cc toolchain.Compilers) []string {
	return []string{
		"--prefix=" + installDir,
		fmt.Sprintf("--program-suffix=%d", majorVersion),
		"--disable-multilib",
		"--disable-nls",
		"--enable-languages=c,c++,lto",
		"--enable-lto",
		"--with-build-config=bootstrap-O3 bootstrap-lto",
		"CC=" + cc.CC,
		"CXX=" + cc.CXX,
	}
}
