//go:build unix

package ledger

import (
	"os"

	"golang.org/x/sys/unix"
)

// tryLockFile attempts a non-blocking exclusive advisory lock on f.
// Returns unix.EAGAIN or unix.EACCES while another process holds the lock.
func tryLockFile(f *os.File) error {
	flock := unix.Flock_t{Type: unix.F_WRLCK, Whence: int16(0)}
	return unix.FcntlFlock(f.Fd(), unix.F_SETLK, &flock)
}

// unlockFile releases any advisory lock held on f.
func unlockFile(f *os.File) error {
	flock := unix.Flock_t{Type: unix.F_UNLCK, Whence: int16(0)}
	return unix.FcntlFlock(f.Fd(), unix.F_SETLK, &flock)
}
