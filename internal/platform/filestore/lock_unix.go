//go:build unix

package filestore

import (
	"os"

	"golang.org/x/sys/unix"
)

// flockExclusive attempts an exclusive non-blocking lock on f.
func flockExclusive(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == unix.EWOULDBLOCK {
		return errLockBusy
	}
	return err
}

func flockUnlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
