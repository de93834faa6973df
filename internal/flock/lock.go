package flock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/mrz1836/cadence/internal/errors"
)

// Lock is a held exclusive file lock.
type Lock struct {
	file *os.File
	once sync.Once
}

// Acquire creates path (and its directory) if needed and locks it without
// blocking. It fails with errors.ErrAlreadyRunning when another process
// holds the lock. The holder's pid is written to the file for operators.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 -- path is built from the cadence home
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := tryLock(f.Fd()); err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(errors.ErrAlreadyRunning, "lock %s held", path)
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &Lock{file: f}, nil
}

// Release unlocks and closes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	var err error
	l.once.Do(func() {
		if uerr := unlock(l.file.Fd()); uerr != nil {
			err = uerr
		}
		if cerr := l.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}
