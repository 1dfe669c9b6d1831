//go:build unix

package hostinfo

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func machineArch() (string, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", fmt.Errorf("failed to query uname: %w", err)
	}

	return unix.ByteSliceToString(u.Machine[:]), nil
}
