//go:build !windows

package process

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsAlive reports whether a process with the given pid exists.
// EPERM means the process exists but belongs to another user.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
