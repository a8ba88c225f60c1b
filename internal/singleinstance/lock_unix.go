//go:build unix

package singleinstance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Lock holds an advisory flock on a per-user lock file. The kernel drops
// the lock when the process exits.
type Lock struct {
	file *os.File
}

func lockName(username string) string {
	return filepath.Join(os.TempDir(), "eveswitch-"+username+".lock")
}

// TryLock takes an exclusive non-blocking flock on name.
// Returns ErrAlreadyRunning if another process holds it.
func TryLock(name string) (*Lock, error) {
	if name == "" {
		return nil, errors.New("lock path is required")
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock %q: %w", name, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("flock %q: %w", name, err)
	}
	return &Lock{file: f}, nil
}

// Release unlocks and closes the lock file. Safe to call on nil receiver and idempotent.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := errors.Join(
		unix.Flock(int(l.file.Fd()), unix.LOCK_UN),
		l.file.Close(),
	)
	l.file = nil
	return err
}
