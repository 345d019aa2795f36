//go:build !unix

package ledger

import "os"

// Advisory file locking is unix-only; elsewhere the in-process mutex is the
// only exclusion, which covers a single-process deployment.
func tryLockFile(f *os.File) error { return nil }

func unlockFile(f *os.File) error { return nil }
