// Package buildconf validates raw build options into a Conf and exposes the
// build's identity as a two-phase value: Provisional while the source revision
// is unknown, Resolved afterwards.
package buildconf

import (
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"time"

	"github.com/yugabyte/build-gcc/internal/codes"
	"github.com/yugabyte/build-gcc/internal/hostinfo"
	"github.com/yugabyte/build-gcc/internal/naming"
)

// CreatedAtLayout formats Conf.CreatedAt
const CreatedAtLayout = "2006-01-02T15-04-05.000000"

// SupportedArchs is the closed set of target architectures
var SupportedArchs = []string{"x86_64", "aarch64", "arm64"}

// Options are the raw inputs to New
type Options struct {
	InstallParentDir string
	VersionToken     string
	UserSuffix       string
	SkipAutoSuffix   bool
	CleanBuild       bool
	ExistingBuildDir string
	Parallelism      int

	// Architecture signals. Empty means absent.
	ArchFlag string
	ArchEnv  string

	Host hostinfo.Host

	// Now defaults to time.Now
	Now func() time.Time
}

// Conf is the validated build configuration. It is not mutated after New returns.
type Conf struct {
	InstallParentDir string
	Version          string
	MajorVersion     int
	UserSuffix       string
	SkipAutoSuffix   bool
	CleanBuild       bool

	// CreatedAt records when the configuration was built
	CreatedAt string

	// Exactly one of TimestampForSuffix and TagOverride is set
	TimestampForSuffix string
	TagOverride        string

	ExistingBuildDir string
	Parallelism      int
	TargetArch       string
	HostLabel        string
}

// New validates opts. Every failure is a configuration error and nothing on disk is touched.
func New(opts Options) (*Conf, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	version := naming.NormalizeVersion(opts.VersionToken)
	major, err := naming.MajorVersion(version)
	if err != nil {
		return nil, codes.Configf("%v", err)
	}

	if major < naming.MinMajorVersion {
		return nil, codes.Configf("GCC major version %d is not supported, minimum is %d", major, naming.MinMajorVersion)
	}

	arch, err := ReconcileArch(opts.ArchFlag, opts.ArchEnv, opts.Host.Arch)
	if err != nil {
		return nil, err
	}

	if arch != "" && !slices.Contains(SupportedArchs, arch) {
		return nil, codes.Configf("unsupported target architecture %q, expected one of %v", arch, SupportedArchs)
	}

	parallelism := opts.Parallelism
	if parallelism < 0 {
		return nil, codes.Configf("parallelism must be positive, got %d", parallelism)
	}

	if parallelism == 0 {
		parallelism = runtime.NumCPU()
	}

	installParentDir, err := filepath.Abs(opts.InstallParentDir)
	if err != nil {
		return nil, codes.Configf("invalid install parent directory %q: %v", opts.InstallParentDir, err)
	}

	t := now()
	c := &Conf{
		InstallParentDir: installParentDir,
		Version:          version,
		MajorVersion:     major,
		UserSuffix:       opts.UserSuffix,
		SkipAutoSuffix:   opts.SkipAutoSuffix,
		CleanBuild:       opts.CleanBuild,
		CreatedAt:        t.Format(CreatedAtLayout),
		Parallelism:      parallelism,
		TargetArch:       arch,
		HostLabel:        opts.Host.Label,
	}

	if opts.ExistingBuildDir == "" {
		c.TimestampForSuffix = strconv.FormatInt(t.Unix(), 10)
		return c, nil
	}

	existing, err := filepath.Abs(opts.ExistingBuildDir)
	if err != nil {
		return nil, codes.Configf("invalid existing build directory %q: %v", opts.ExistingBuildDir, err)
	}

	tag, err := naming.ParseBuildDirBasename(filepath.Base(existing))
	if err != nil {
		return nil, err
	}

	// Resuming pins the tag, so the automatic suffix can no longer apply.
	c.TagOverride = tag
	c.SkipAutoSuffix = true
	c.ExistingBuildDir = existing

	if computed := naming.BuildParentDir(c.InstallParentDir, tag); computed != existing {
		return nil, codes.Configf(
			"build directory mismatch: user-specified %s, computed %s", existing, computed)
	}

	return c, nil
}

// ReconcileArch checks that every architecture signal present agrees.
// Zero or one distinct value succeeds; the result is that value.
func ReconcileArch(flag, env, host string) (string, error) {
	var distinct []string
	for _, v := range []string{flag, env, host} {
		if v != "" && !slices.Contains(distinct, v) {
			distinct = append(distinct, v)
		}
	}

	if len(distinct) > 1 {
		return "", codes.Configf(
			"target architecture is ambiguous: %v. --target-arch is %s, YB_TARGET_ARCH is %s, uname -m is %s",
			distinct, orUnset(flag), orUnset(env), orUnset(host))
	}

	if len(distinct) == 0 {
		return "", nil
	}

	return distinct[0], nil
}

func orUnset(v string) string {
	if v == "" {
		return "<unset>"
	}

	return v
}

// AutoSuffix reports whether tags carry the automatic suffix
func (c *Conf) AutoSuffix() bool {
	return !c.SkipAutoSuffix
}

// Identity returns the starting identity for this configuration. It is
// Provisional only when the tag depends on a revision not yet known.
func (c *Conf) Identity() Identity {
	if c.TagOverride == "" && c.AutoSuffix() {
		return Provisional{conf: c}
	}

	return Resolved{conf: c}
}

func (c *Conf) tag(revision string) string {
	if c.TagOverride != "" {
		return c.TagOverride
	}

	return naming.Tag(c.Version, c.AutoSuffix(), naming.Components{
		Timestamp:  c.TimestampForSuffix,
		Revision:   revision,
		UserSuffix: c.UserSuffix,
		HostLabel:  c.HostLabel,
		Arch:       c.TargetArch,
	})
}

func (c *Conf) paths(phase Phase, revision string) Paths {
	tag := c.tag(revision)

	return Paths{
		Phase:              phase,
		Revision:           revision,
		Tag:                tag,
		InstallDirBasename: naming.InstallDirBasename(tag),
		BuildParentDir:     naming.BuildParentDir(c.InstallParentDir, tag),
		FinalInstallDir:    naming.FinalInstallDir(c.InstallParentDir, tag),
		CloneDir:           naming.CloneDir(c.InstallParentDir, tag),
		BuildInfoDir:       naming.BuildInfoDir(c.InstallParentDir, tag),
	}
}

func (c *Conf) String() string {
	return fmt.Sprintf("gcc %s (%s, parent %s)", c.Version, c.TargetArch, c.InstallParentDir)
}
