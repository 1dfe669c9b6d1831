// Package arch switches and verifies the CPU architecture of macOS builds.
package arch

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/yugabyte/build-gcc/internal/codes"
	"github.com/yugabyte/build-gcc/internal/hostinfo"
	"github.com/yugabyte/build-gcc/internal/shell"
)

// MacOSArchs are the CPU architectures macOS builds can target
var MacOSArchs = []string{"x86_64", "arm64"}

// SwitchPrefix returns the command prefix that runs a command under arch on macOS
func SwitchPrefix(host hostinfo.Host, arch string) []string {
	if !host.IsMacOS() || arch == "" {
		return nil
	}

	return []string{"arch", "-" + arch}
}

// Other returns the macOS architecture that is not arch
func Other(arch string) (string, error) {
	if !slices.Contains(MacOSArchs, arch) {
		return "", codes.Configf("not a valid CPU architecture for macOS: %q", arch)
	}

	for _, a := range MacOSArchs {
		if a != arch {
			return a, nil
		}
	}

	return "", codes.Invariantf("no other macOS architecture for %s", arch)
}

// ParseFileOutput extracts the architectures from the output of file(1).
// Universal binaries print one line per slice; the last word of each line
// names that slice's architecture.
func ParseFileOutput(out string) []string {
	if strings.Contains(out, "Python script") || strings.Contains(out, "ASCII") {
		return nil
	}

	var found []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		last := fields[len(fields)-1]
		for _, a := range MacOSArchs {
			if strings.HasPrefix(last, a) && !slices.Contains(found, a) {
				found = append(found, a)
			}
		}
	}

	slices.Sort(found)
	return found
}

// FilesOfInterest lists object files, dylibs and executables under dir,
// leaving out stylesheets and Python scripts
func FilesOfInterest(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}

		name := d.Name()
		if strings.HasSuffix(name, ".css") || strings.HasSuffix(name, ".py") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		if strings.HasSuffix(name, ".o") || strings.HasSuffix(name, ".dylib") || info.Mode().Perm()&0o111 != 0 {
			files = append(files, path)
		}

		return nil
	})

	return files, err
}

// Validator checks that installed binaries match the target architecture
type Validator struct {
	logger hclog.Logger
	exec   shell.Executor
}

func NewValidator(logger hclog.Logger, executor shell.Executor) *Validator {
	return &Validator{logger: logger, exec: executor}
}

// Report summarises a validation run
type Report struct {
	Checked    int
	SingleArch int
	MultiArch  int
	Errors     int
}

// Validate inspects every file of interest under topDir on macOS hosts. Other hosts pass trivially.
func (v *Validator) Validate(ctx context.Context, host hostinfo.Host, target, topDir string) (Report, error) {
	var report Report
	if !host.IsMacOS() {
		return report, nil
	}

	if _, err := Other(target); err != nil {
		return report, err
	}

	v.logger.Info("Verifying architecture of object files and libraries", "dir", topDir, "arch", target)

	files, err := FilesOfInterest(topDir)
	if err != nil {
		return report, fmt.Errorf("failed to list files in %s: %w", topDir, err)
	}

	for _, file := range files {
		out, err := v.exec.Output(ctx, shell.Command{Name: "file", Args: []string{file}})
		if err != nil {
			return report, err
		}

		report.Checked++

		archs := ParseFileOutput(out)
		if len(archs) == 0 {
			v.logger.Warn("File is not a native executable, skipping", "file", file)
			continue
		}

		if !slices.Contains(archs, target) {
			v.logger.Error("File is not built for the correct architecture",
				"file", file, "want", target, "found", archs, "output", strings.TrimSpace(out))
			report.Errors++
		}

		if len(archs) == 1 {
			report.SingleArch++
		} else {
			report.MultiArch++
		}
	}

	v.logger.Info("Verified architecture",
		"dir", topDir, "files", report.Checked, "single_arch", report.SingleArch,
		"multi_arch", report.MultiArch, "errors", report.Errors)

	if report.Errors > 0 {
		return report, codes.Tool("arch", fmt.Errorf(
			"found %d files with the wrong architecture in %s (target architecture: %s)",
			report.Errors, topDir, target))
	}

	return report, nil
}
