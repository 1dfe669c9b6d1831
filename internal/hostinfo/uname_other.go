//go:build !unix

package hostinfo

import "runtime"

var goarchToMachine = map[string]string{
	"amd64": "x86_64",
	"arm64": "aarch64",
}

func machineArch() (string, error) {
	if m, ok := goarchToMachine[runtime.GOARCH]; ok {
		return m, nil
	}

	return runtime.GOARCH, nil
}
