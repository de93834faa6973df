//go:build unix

package flock

import "syscall"

// tryLock takes the run lock on fd or fails at once with EWOULDBLOCK when
// another process holds it.
func tryLock(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_EX|syscall.LOCK_NB)
}

// unlock drops the run lock on fd.
func unlock(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_UN)
}
