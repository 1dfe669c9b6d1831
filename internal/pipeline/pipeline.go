// Package pipeline runs the build stages in order: source acquisition,
// revision capture, build log capture, compilation, packaging, checksumming
// and publication.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/yugabyte/build-gcc/internal/buildconf"
	"github.com/yugabyte/build-gcc/internal/cleanup"
	"github.com/yugabyte/build-gcc/internal/compiler"
	"github.com/yugabyte/build-gcc/internal/fsutil"
	"github.com/yugabyte/build-gcc/internal/hostinfo"
	"github.com/yugabyte/build-gcc/internal/logging"
	"github.com/yugabyte/build-gcc/internal/naming"
	"github.com/yugabyte/build-gcc/internal/publish"
	"github.com/yugabyte/build-gcc/internal/registry"
	"github.com/yugabyte/build-gcc/internal/source"
	"github.com/yugabyte/build-gcc/internal/toolchain"
)

// SourceControl acquires and inspects the source checkout
type SourceControl interface {
	FindReference(ctx context.Context, candidates []string, tag string) (string, bool)
	CloneTag(ctx context.Context, repo, tag, dest string) error
	HeadRevision(ctx context.Context, dir string) (string, error)
	SaveLog(ctx context.Context, dir, destFile string) error
}

// Toolchain prepares the host compilers
type Toolchain interface {
	Activate(ctx context.Context, host hostinfo.Host) (*toolchain.Activation, error)
}

// Compiler builds and installs GCC
type Compiler interface {
	Build(ctx context.Context, req compiler.Request) error
}

// PackageFunc writes a tarball of dir to dst
type PackageFunc func(ctx context.Context, dir, dst string) error

// Digester writes the checksum file beside an archive
type Digester interface {
	WriteFile(ctx context.Context, archivePath string) (sumPath, sum string, err error)
}

// Recorder stores build progress. Failures never fail the build.
type Recorder interface {
	MarkStage(tag, stage string, fn func(*registry.Entry)) error
	CloneDirs() ([]string, error)
}

// Options are the run-time switches of a pipeline run
type Options struct {
	GitHubOrg string

	// Stages outside [MinStage, MaxStage] are skipped. MaxStage zero means no bound.
	MinStage int
	MaxStage int

	SkipBuild    bool
	SkipUpload   bool
	ReuseTarball bool

	// UploadEarlierBuild is the install directory of a finished build to package and publish
	UploadEarlierBuild string

	Host hostinfo.Host
}

// Deps are the collaborators of a pipeline. Registry may be nil.
type Deps struct {
	Source    SourceControl
	Toolchain Toolchain
	Compiler  Compiler
	Package   PackageFunc
	Digester  Digester
	Publisher publish.Publisher
	Registry  Recorder

	// Rename defaults to os.Rename
	Rename buildconf.RenameFunc
}

// Result describes a finished run
type Result struct {
	Identity   buildconf.Identity
	InstallDir string
	Archive    string
	Checksum   string
	Sum        string
	Ran        []Stage
	Skipped    []Stage
}

// Pipeline runs the stages for one build configuration
type Pipeline struct {
	logger hclog.Logger
	conf   *buildconf.Conf
	opts   Options
	deps   Deps
	now    func() time.Time

	id       buildconf.Identity
	result   *Result
	recorded int
}

func New(logger hclog.Logger, conf *buildconf.Conf, opts Options, deps Deps) *Pipeline {
	return &Pipeline{
		logger: logger,
		conf:   conf,
		opts:   opts,
		deps:   deps,
		now:    time.Now,
	}
}

// Run executes the pipeline. The returned result is non-nil even on failure
// and holds the identity current at the time of the failure.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	p.id = p.conf.Identity()
	p.result = &Result{}
	p.recorded = 0

	guard := cleanup.NewGuard(p.logger.Named("cleanup"))
	defer guard.Release()

	err := p.run(ctx, guard)
	p.result.Identity = p.id

	return p.result, err
}

func (p *Pipeline) run(ctx context.Context, guard *cleanup.Guard) error {
	uploading := p.opts.UploadEarlierBuild != ""

	if uploading {
		for _, s := range Stages()[:StageCompile] {
			_ = p.stage(ctx, s, "uploading an earlier build", nil)
		}
	} else if err := p.buildStages(ctx, guard); err != nil {
		return err
	}

	installDir := p.id.Paths().FinalInstallDir
	if uploading {
		installDir = p.opts.UploadEarlierBuild
	}

	archivePath := naming.ArchivePath(installDir)
	p.result.InstallDir = installDir
	p.result.Archive = archivePath

	packageSkip := ""
	if p.opts.ReuseTarball && fsutil.Exists(archivePath) {
		packageSkip = "reusing existing archive " + archivePath
	}

	err := p.stage(ctx, StagePackage, packageSkip, func(ctx context.Context) error {
		if _, err := os.Stat(installDir); err != nil {
			return fmt.Errorf("install directory %s: %w", installDir, err)
		}

		p.removeStaleArchive(archivePath)
		return p.deps.Package(ctx, installDir, archivePath)
	})
	if err != nil {
		return err
	}

	err = p.stage(ctx, StageChecksum, "", func(ctx context.Context) error {
		sumPath, sum, err := p.deps.Digester.WriteFile(ctx, archivePath)
		if err != nil {
			return err
		}

		p.result.Checksum, p.result.Sum = sumPath, sum
		p.logger.Info("Wrote checksum", "file", sumPath, "sha256", sum)
		return nil
	})
	if err != nil {
		return err
	}

	// The release tag is derived even when the upload is skipped, so a broken
	// identity fails every run.
	release, err := publish.NewRelease(installDir, archivePath, naming.ChecksumPath(archivePath))
	if err != nil {
		return err
	}

	publishSkip := ""
	if p.opts.SkipUpload {
		publishSkip = "--skip-upload specified"
	}

	return p.stage(ctx, StagePublish, publishSkip, func(ctx context.Context) error {
		return p.deps.Publisher.Publish(ctx, release)
	})
}

func (p *Pipeline) buildStages(ctx context.Context, guard *cleanup.Guard) error {
	sourceSkip := ""
	if p.conf.ExistingBuildDir != "" {
		sourceSkip = "resuming in " + p.conf.ExistingBuildDir + ", assuming the code has been cloned"
	}

	err := p.stage(ctx, StageSource, sourceSkip, func(ctx context.Context) error {
		return p.acquireSource(ctx, guard)
	})
	if err != nil {
		return err
	}

	revisionSkip := ""
	if !p.conf.AutoSuffix() {
		revisionSkip = "the tag does not include the source revision"
	}

	err = p.stage(ctx, StageRevision, revisionSkip, func(ctx context.Context) error {
		return p.resolveRevision(ctx, guard)
	})
	if err != nil {
		return err
	}

	paths := p.id.Paths()
	p.logger.Info("GCC will be built and installed", "install_dir", paths.FinalInstallDir)

	err = p.stage(ctx, StageBuildLog, "", func(ctx context.Context) error {
		logFile := filepath.Join(paths.BuildInfoDir, source.LogFileName)
		if err := p.deps.Source.SaveLog(ctx, paths.CloneDir, logFile); err != nil {
			p.logger.Warn("Failed to save the git log, continuing", "error", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	compileSkip := ""
	if p.opts.SkipBuild {
		compileSkip = "--skip-build specified"
	}

	return p.stage(ctx, StageCompile, compileSkip, p.compile)
}

func (p *Pipeline) acquireSource(ctx context.Context, guard *cleanup.Guard) error {
	paths := p.id.Paths()

	if naming.HasPlaceholder(filepath.Base(paths.BuildParentDir)) && !fsutil.Exists(paths.BuildParentDir) {
		if err := os.MkdirAll(paths.BuildParentDir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", paths.BuildParentDir, err)
		}

		guard.Arm(paths.BuildParentDir)
	}

	wanted := naming.ReleaseTag(p.conf.Version)

	var extra []string
	if p.deps.Registry != nil {
		dirs, err := p.deps.Registry.CloneDirs()
		if err != nil {
			p.logger.Warn("Cannot read clone directories from the registry", "error", err)
		}
		extra = dirs
	}

	repo := naming.RepoURL(p.opts.GitHubOrg)
	candidates := source.ReferenceCandidates(p.conf.InstallParentDir, extra)
	if ref, ok := p.deps.Source.FindReference(ctx, candidates, wanted); ok {
		repo = ref
	}

	p.logger.Info("Cloning GCC code", "from", repo, "tag", wanted, "to", paths.CloneDir)
	return p.deps.Source.CloneTag(ctx, repo, wanted, paths.CloneDir)
}

func (p *Pipeline) resolveRevision(ctx context.Context, guard *cleanup.Guard) error {
	revision, err := p.deps.Source.HeadRevision(ctx, p.id.Paths().CloneDir)
	if err != nil {
		return err
	}

	rename := p.deps.Rename
	if rename == nil {
		rename = os.Rename
	}

	id, err := buildconf.Resolve(p.id, revision, rename)
	p.id = id
	if err != nil {
		return err
	}

	guard.Disarm()
	p.logger.Info("Final GCC code directory", "dir", id.Paths().CloneDir, "revision", revision)

	return nil
}

func (p *Pipeline) compile(ctx context.Context) error {
	activation, err := p.deps.Toolchain.Activate(ctx, p.opts.Host)
	if err != nil {
		return err
	}

	paths := p.id.Paths()
	return p.deps.Compiler.Build(ctx, compiler.Request{
		CloneDir:     paths.CloneDir,
		BuildDir:     compiler.BuildDir(paths.BuildParentDir),
		InstallDir:   paths.FinalInstallDir,
		MajorVersion: p.conf.MajorVersion,
		Parallelism:  p.conf.Parallelism,
		TargetArch:   p.conf.TargetArch,
		Clean:        p.conf.CleanBuild,
		Activation:   activation,
	})
}

func (p *Pipeline) removeStaleArchive(archivePath string) {
	if !fsutil.Exists(archivePath) {
		return
	}

	p.logger.Info("Removing existing archive", "file", archivePath)
	if err := os.Remove(archivePath); err != nil {
		p.logger.Warn("Failed to remove existing archive, ignoring", "file", archivePath, "error", err)
	}
}

// stage runs fn unless the stage is out of range or skip is non-empty
func (p *Pipeline) stage(ctx context.Context, s Stage, skip string, fn func(context.Context) error) error {
	if reason := p.rangeSkip(s); reason != "" {
		skip = reason
	}

	if skip != "" {
		p.logger.Info("Skipping stage", "stage", s.String(), "reason", skip)
		p.result.Skipped = append(p.result.Skipped, s)
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	logging.Heading(p.logger, fmt.Sprintf("Stage %d: %s", int(s), s))
	start := p.now()

	if err := fn(ctx); err != nil {
		p.logger.Error("Stage failed", "stage", s.String(), "elapsed", p.now().Sub(start).Round(time.Millisecond), "error", err)
		return err
	}

	p.logger.Info("Stage finished", "stage", s.String(), "elapsed", p.now().Sub(start).Round(time.Millisecond))
	p.result.Ran = append(p.result.Ran, s)
	p.record()

	return nil
}

func (p *Pipeline) rangeSkip(s Stage) string {
	if int(s) < p.opts.MinStage {
		return fmt.Sprintf("before --min-stage %d", p.opts.MinStage)
	}

	if p.opts.MaxStage > 0 && int(s) > p.opts.MaxStage {
		return fmt.Sprintf("after --max-stage %d", p.opts.MaxStage)
	}

	return ""
}

// record stores progress under the current tag once it is final
func (p *Pipeline) record() {
	if p.deps.Registry == nil {
		return
	}

	tag, ok := p.recordTag()
	if !ok {
		return
	}

	paths := p.id.Paths()
	fill := func(e *registry.Entry) {
		e.TargetArch = p.conf.TargetArch
		if p.opts.UploadEarlierBuild == "" {
			e.Version = p.conf.Version
			e.Revision = paths.Revision
			e.BuildParentDir = paths.BuildParentDir
			e.CloneDir = paths.CloneDir
		}
		e.InstallDir = p.result.InstallDir
		if e.InstallDir == "" {
			e.InstallDir = paths.FinalInstallDir
		}
		if p.result.Archive != "" && fsutil.Exists(p.result.Archive) {
			e.Archive = p.result.Archive
		}
		if p.result.Sum != "" {
			e.Checksum = p.result.Sum
		}
	}

	for _, s := range p.result.Ran[p.recorded:] {
		err := p.deps.Registry.MarkStage(tag, s.String(), func(e *registry.Entry) {
			fill(e)
			if s == StagePublish {
				e.Published = true
			}
		})
		if err != nil {
			p.logger.Warn("Failed to update the build registry", "tag", tag, "error", err)
			return
		}

		p.recorded++
	}
}

func (p *Pipeline) recordTag() (string, bool) {
	if p.opts.UploadEarlierBuild != "" {
		tag, err := naming.TagFromInstallDirBasename(filepath.Base(p.opts.UploadEarlierBuild))
		return tag, err == nil
	}

	if p.id.Phase() != buildconf.PhaseResolved {
		return "", false
	}

	return p.id.Paths().Tag, true
}
