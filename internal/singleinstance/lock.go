// Package singleinstance keeps a second eveswitch process from registering
// the same global hotkeys as a running one.
package singleinstance

import (
	"errors"

	"eveswitch/internal/userutil"
)

// ErrAlreadyRunning is returned by TryLock when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// DefaultMutexName returns the per-user lock identifier.
func DefaultMutexName() string {
	return lockName(userutil.Current())
}
