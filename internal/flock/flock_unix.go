//go:build unix

package flock

import (
	"os"

	"github.com/alecthomas/errors"
	"golang.org/x/sys/unix"
)

func tryLock(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return ErrLocked
	}
	return errors.WithStack(err)
}

func unlock(f *os.File) error {
	return errors.WithStack(unix.Flock(int(f.Fd()), unix.LOCK_UN))
}
