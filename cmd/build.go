package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/yugabyte/build-gcc/internal/archive"
	"github.com/yugabyte/build-gcc/internal/buildconf"
	"github.com/yugabyte/build-gcc/internal/checksum"
	"github.com/yugabyte/build-gcc/internal/codes"
	"github.com/yugabyte/build-gcc/internal/compiler"
	"github.com/yugabyte/build-gcc/internal/config"
	"github.com/yugabyte/build-gcc/internal/hostinfo"
	"github.com/yugabyte/build-gcc/internal/logging"
	"github.com/yugabyte/build-gcc/internal/pipeline"
	"github.com/yugabyte/build-gcc/internal/publish"
	"github.com/yugabyte/build-gcc/internal/registry"
	"github.com/yugabyte/build-gcc/internal/remote"
	"github.com/yugabyte/build-gcc/internal/shell"
	"github.com/yugabyte/build-gcc/internal/source"
	"github.com/yugabyte/build-gcc/internal/toolchain"
)

var buildCmd = &cobra.Command{
	Use:          "build",
	Short:        "Build GCC",
	Long:         `Build, package and publish GCC. This is also what build-gcc does without a subcommand.`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

// detectHost is replaced in tests
var detectHost = hostinfo.Detect

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().LoadForBuild(cmd)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{Verbose: cfg.Verbose, JSON: cfg.LogJSON})
	executor := shell.NewRunner(logger.Named("shell"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := newRunner(cfg, logger, executor, os.Args[1:])
	if err != nil {
		return err
	}

	return runner.Run(ctx)
}

// newRunner picks local or remote execution for cfg
func newRunner(cfg *config.Config, logger hclog.Logger, executor shell.Executor, argv []string) (remote.Runner, error) {
	settings := remote.Settings{
		Remotely:    cfg.Remotely,
		Local:       cfg.Local,
		Server:      cfg.RemoteServer,
		ScriptsPath: cfg.RemoteBuildScriptsPath,
		Command:     cfg.RemoteCommand,
		Mkdir:       cfg.RemoteMkdir,
		ProjectRoot: cfg.ProjectRoot,
		Args:        argv,
	}

	mode, err := remote.Decide(settings)
	if err != nil {
		return nil, err
	}

	if mode == remote.ModeRemote {
		return remote.NewRemote(logger.Named("remote"), executor, settings), nil
	}

	host, err := detectHost()
	if err != nil {
		return nil, err
	}

	p, err := newPipeline(cfg, host, logger, executor)
	if err != nil {
		return nil, err
	}

	return remote.Local(func(ctx context.Context) error {
		res, err := p.Run(ctx)
		if err != nil {
			return err
		}

		logging.Heading(logger, "GCC build finished",
			"tag", res.Identity.Paths().Tag, "install_dir", res.InstallDir, "archive", res.Archive)
		return nil
	}), nil
}

// newPipeline validates the build configuration and wires the pipeline's collaborators
func newPipeline(cfg *config.Config, host hostinfo.Host, logger hclog.Logger, executor shell.Executor) (*pipeline.Pipeline, error) {
	conf, err := buildconf.New(buildconf.Options{
		InstallParentDir: cfg.InstallParentDir,
		VersionToken:     cfg.GCCVersion,
		UserSuffix:       cfg.TopDirSuffix,
		SkipAutoSuffix:   cfg.SkipAutoSuffix,
		CleanBuild:       cfg.Clean,
		ExistingBuildDir: cfg.ExistingBuildDir,
		Parallelism:      cfg.Parallelism,
		ArchFlag:         cfg.TargetArch,
		ArchEnv:          cfg.TargetArchEnv,
		Host:             host,
	})
	if err != nil {
		return nil, err
	}

	publisher := publish.Multi{publish.NewHub(logger.Named("hub"), executor, cfg.ProjectRoot, cfg.TokenFile)}
	if cfg.S3.Enabled() {
		mirror, err := publish.NewMirror(logger.Named("s3"), cfg.S3)
		if err != nil {
			return nil, codes.Configf("invalid S3 mirror settings: %v", err)
		}

		publisher = append(publisher, mirror)
	}

	var recorder pipeline.Recorder
	if !cfg.NoRegistry {
		recorder = registry.New(conf.InstallParentDir)
	}

	logger.Info("Build configuration",
		"version", conf.Version, "target_arch", conf.TargetArch, "host", host.Label,
		"install_parent_dir", conf.InstallParentDir, "parallelism", conf.Parallelism)

	opts := pipeline.Options{
		GitHubOrg:          cfg.GitHubOrg,
		MinStage:           cfg.MinStage,
		MaxStage:           cfg.MaxStage,
		SkipBuild:          cfg.SkipBuild,
		SkipUpload:         cfg.SkipUpload,
		ReuseTarball:       cfg.ReuseTarball,
		UploadEarlierBuild: cfg.UploadEarlierBuild,
		Host:               host,
	}

	deps := pipeline.Deps{
		Source:    source.New(logger.Named("git"), executor),
		Toolchain: toolchain.NewSelector(logger.Named("toolchain"), executor),
		Compiler:  compiler.NewCommandBuilder(logger.Named("compiler"), executor, host),
		Package: func(ctx context.Context, dir, dst string) error {
			return archive.Create(ctx, dir, dst, archive.Options{Progress: os.Stderr})
		},
		Digester:  checksum.NewDigester(logger.Named("checksum"), executor),
		Publisher: publisher,
		Registry:  recorder,
	}

	return pipeline.New(logger, conf, opts, deps), nil
}
