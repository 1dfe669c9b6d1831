// Package hostinfo detects the build host's architecture and a short OS label.
package hostinfo

import (
	"runtime"
	"strings"

	"github.com/joho/godotenv"
)

// OSReleasePath is read to label Linux hosts
var OSReleasePath = "/etc/os-release"

// Host describes the machine the build runs on
type Host struct {
	// GOOS of the running binary
	OS string
	// Architecture as reported by uname -m (x86_64, aarch64, arm64)
	Arch string
	// Short OS name and version, e.g. centos7, ubuntu22.04, macos
	Label string
}

func (h Host) IsMacOS() bool { return h.OS == "darwin" }
func (h Host) IsLinux() bool { return h.OS == "linux" }

// Detect inspects the running host
func Detect() (Host, error) {
	arch, err := machineArch()
	if err != nil {
		return Host{}, err
	}

	return Host{
		OS:    runtime.GOOS,
		Arch:  arch,
		Label: ShortOSLabel(runtime.GOOS, OSReleasePath),
	}, nil
}

// ShortOSLabel returns the OS label used in build tags. Unreadable os-release yields "linux".
func ShortOSLabel(goos, osReleasePath string) string {
	switch goos {
	case "darwin":
		return "macos"
	case "linux":
		values, err := godotenv.Read(osReleasePath)
		if err != nil {
			return "linux"
		}

		return labelFromOSRelease(values)
	default:
		return goos
	}
}

func labelFromOSRelease(values map[string]string) string {
	id := strings.ToLower(values["ID"])
	if id == "" {
		return "linux"
	}

	version := values["VERSION_ID"]
	if id != "ubuntu" {
		// Only the major version is significant for RHEL-like and other distros
		version, _, _ = strings.Cut(version, ".")
	}

	return id + version
}
