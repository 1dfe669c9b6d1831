// Package naming derives build tags, directory layouts and artifact names.
//
// Everything here is a pure function of its inputs. A tag computed before the
// source revision is known carries RevisionPlaceholder in place of the revision;
// recomputing it afterwards changes only that component.
package naming

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yugabyte/build-gcc/internal/codes"
)

const (
	// ArchivePrefix starts every install directory basename and archive name
	ArchivePrefix = "yb-gcc-"

	Separator = "-"

	// BuildDirSuffix ends every build parent directory basename
	BuildDirSuffix = Separator + "build"

	RevisionPlaceholder = "GIT_SHA1_PLACEHOLDER"

	// RevisionPrefixLength is the number of revision characters used in names
	RevisionPrefixLength = 8

	ArchiveExt     = ".tar.gz"
	ChecksumSuffix = ".sha256"

	// MinMajorVersion is the oldest GCC major version we know how to build
	MinMajorVersion = 12

	DefaultInstallParentDir = "/opt/yb-build/gcc"
	DefaultGitHubOrg        = "gcc-mirror"
)

// CloneRelPath is where the source is cloned, relative to the build parent directory
var CloneRelPath = filepath.Join("src", "gcc")

// BuildInfoRelPath is where build metadata lives, relative to the install directory
var BuildInfoRelPath = filepath.Join("etc", "yb-gcc-build-info")

// VersionMap maps major-only version tokens to the full release we build
var VersionMap = map[string]string{
	"12": "12.2.0",
	"13": "13.4.0",
	"14": "14.3.0",
	"15": "15.2.0",
}

// NormalizeVersion maps a short version token to a full version. Unknown tokens are returned unchanged.
func NormalizeVersion(token string) string {
	if full, ok := VersionMap[token]; ok {
		return full
	}

	return token
}

// MajorVersion returns the leading numeric component of a version string
func MajorVersion(version string) (int, error) {
	major, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", version, err)
	}

	return n, nil
}

// Components are the inputs of the automatic tag suffix, in order
type Components struct {
	Timestamp  string
	Revision   string
	UserSuffix string
	HostLabel  string
	Arch       string
}

// Suffix joins the non-empty components. An empty revision is rendered as the placeholder.
func (c Components) Suffix() string {
	revision := c.Revision
	if revision == "" {
		revision = RevisionPlaceholder
	}

	parts := make([]string, 0, 5)
	for _, p := range []string{c.Timestamp, revision, c.UserSuffix, c.HostLabel, c.Arch} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	return strings.Join(parts, Separator)
}

// Tag returns "v<version>" followed by the automatic suffix, unless auto-suffixing is disabled
func Tag(version string, autoSuffix bool, c Components) string {
	tag := "v" + version
	if !autoSuffix {
		return tag
	}

	if suffix := c.Suffix(); suffix != "" {
		tag += Separator + suffix
	}

	return tag
}

func InstallDirBasename(tag string) string {
	return ArchivePrefix + tag
}

func BuildParentDir(installParentDir, tag string) string {
	return filepath.Join(installParentDir, InstallDirBasename(tag)+BuildDirSuffix)
}

func FinalInstallDir(installParentDir, tag string) string {
	return filepath.Join(installParentDir, InstallDirBasename(tag))
}

func CloneDir(installParentDir, tag string) string {
	return filepath.Join(BuildParentDir(installParentDir, tag), CloneRelPath)
}

func BuildInfoDir(installParentDir, tag string) string {
	return filepath.Join(FinalInstallDir(installParentDir, tag), BuildInfoRelPath)
}

// HasPlaceholder reports whether a directory basename still carries the revision placeholder
func HasPlaceholder(basename string) bool {
	return strings.Contains(basename, Separator+RevisionPlaceholder+Separator)
}

// ArchivePath returns the tarball path that sits beside the install directory
func ArchivePath(installDir string) string {
	return filepath.Join(filepath.Dir(installDir), filepath.Base(installDir)+ArchiveExt)
}

func ChecksumPath(archivePath string) string {
	return archivePath + ChecksumSuffix
}

// ReleaseTag is the upstream git tag for a GCC release
func ReleaseTag(version string) string {
	return "releases/gcc-" + version
}

func RepoURL(org string) string {
	return fmt.Sprintf("https://github.com/%s/gcc.git", org)
}

// ParseBuildDirBasename extracts the tag embedded in an existing build directory name
func ParseBuildDirBasename(basename string) (string, error) {
	if !strings.HasSuffix(basename, BuildDirSuffix) {
		return "", codes.Configf(
			"invalid existing build directory basename: %q, does not end with %q", basename, BuildDirSuffix)
	}

	if !strings.HasPrefix(basename, ArchivePrefix) {
		return "", codes.Configf(
			"invalid existing build directory basename: %q, does not start with %q", basename, ArchivePrefix)
	}

	if len(basename) <= len(ArchivePrefix)+len(BuildDirSuffix) {
		return "", codes.Configf("invalid existing build directory basename: %q, empty tag", basename)
	}

	return basename[len(ArchivePrefix) : len(basename)-len(BuildDirSuffix)], nil
}

// TagFromInstallDirBasename recovers the release tag from an install directory name.
// A missing prefix means the identity derivation is broken, not that the user erred.
func TagFromInstallDirBasename(basename string) (string, error) {
	if !strings.HasPrefix(basename, ArchivePrefix) {
		return "", codes.Invariantf("install directory basename %q does not start with %q", basename, ArchivePrefix)
	}

	return strings.TrimPrefix(basename, ArchivePrefix), nil
}
