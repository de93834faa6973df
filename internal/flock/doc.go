// Package flock provides the single-instance lock of the run command.
//
// Two schedulers driving the same outputs would fight over them, so
// `cadence run` holds an exclusive, non-blocking lock on a file in the
// cadence home directory for as long as it runs. The OS releases the lock
// when the process dies, so a crash never leaves a stale lock behind.
//
// Usage:
//
//	lock, err := flock.Acquire(path)
//	if err != nil {
//	    // another scheduler holds the lock
//	}
//	defer lock.Release()
package flock
