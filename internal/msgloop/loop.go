// Package msgloop runs the single thread that owns global hotkey
// registrations and the low-level keyboard hook. Every callback of those
// facilities runs on this thread, so state touched only from it needs no
// locking.
package msgloop

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

var (
	ErrNotRunning     = errors.New("message loop is not running")
	ErrAlreadyRunning = errors.New("message loop is already running")
	ErrStopped        = errors.New("message loop stopped before the call ran")
)

// Options configures a Loop.
type Options struct {
	// OnHotkey receives the id of every WM_HOTKEY on the loop thread.
	OnHotkey func(id int32)
	// OnExit runs on the loop thread on every exit path, before the thread
	// is released. Use it to unregister hotkeys and uninstall hooks.
	OnExit func()
}

type call struct {
	fn   func()
	done chan struct{}
	err  error
}

type callQueue struct {
	mu      sync.Mutex
	pending []*call
}

func (q *callQueue) push(c *call) {
	q.mu.Lock()
	q.pending = append(q.pending, c)
	q.mu.Unlock()
}

func (q *callQueue) remove(c *call) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, p := range q.pending {
		if p == c {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

func (q *callQueue) drain() []*call {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// protect runs fn and converts a panic into an error so one faulty callback
// cannot take the loop thread down.
func protect(name string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", name, r)
			slog.Error("[ERROR-LOOP] panic recovered on message loop thread",
				"callback", name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
	return nil
}

func (c *call) run() {
	c.err = protect("Do", c.fn)
	close(c.done)
}

// wait blocks until c ran or the loop exited.
func (c *call) wait(doneCh <-chan struct{}) error {
	select {
	case <-c.done:
		return c.err
	case <-doneCh:
		select {
		case <-c.done:
			return c.err
		default:
			return ErrStopped
		}
	}
}
