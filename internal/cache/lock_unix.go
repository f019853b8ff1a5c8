//go:build unix

package cache

import (
	"os"

	"golang.org/x/sys/unix"
)

// tryLock attempts a non-blocking flock. busy is true when another process
// holds a conflicting lock.
func tryLock(f *os.File, exclusive bool) (busy bool, err error) {
	how := unix.LOCK_SH | unix.LOCK_NB
	if exclusive {
		how = unix.LOCK_EX | unix.LOCK_NB
	}
	err = unix.Flock(int(f.Fd()), how)
	if err == unix.EWOULDBLOCK || err == unix.EAGAIN {
		return true, nil
	}
	return false, err
}

func unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
