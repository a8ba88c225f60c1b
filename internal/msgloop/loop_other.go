//go:build !windows

package msgloop

import (
	"sync"
)

// Loop serializes callbacks on one goroutine. Without a Win32 message queue
// no hotkey ever arrives from the OS; PostHotkey feeds ids by hand.
type Loop struct {
	opts  Options
	queue callQueue

	mu     sync.Mutex
	wake   chan struct{}
	quit   chan struct{}
	doneCh chan struct{}
}

// New creates a stopped loop.
func New(opts Options) *Loop {
	return &Loop{opts: opts}
}

// Start launches the loop goroutine.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.doneCh != nil {
		return ErrAlreadyRunning
	}
	l.wake = make(chan struct{}, 1)
	l.quit = make(chan struct{})
	l.doneCh = make(chan struct{})
	go l.run(l.wake, l.quit, l.doneCh)
	return nil
}

// Done is closed once the loop goroutine has exited. It is nil before Start.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doneCh
}

// Do runs fn on the loop goroutine and waits for it to return.
// It must not be called from inside a loop callback.
func (l *Loop) Do(fn func()) error {
	l.mu.Lock()
	wake, doneCh := l.wake, l.doneCh
	l.mu.Unlock()
	if doneCh == nil {
		return ErrNotRunning
	}
	c := &call{fn: fn, done: make(chan struct{})}
	l.queue.push(c)
	notify(wake)
	return c.wait(doneCh)
}

// PostHotkey delivers id to OnHotkey on the loop goroutine.
func (l *Loop) PostHotkey(id int32) error {
	l.mu.Lock()
	wake, doneCh := l.wake, l.doneCh
	l.mu.Unlock()
	if doneCh == nil {
		return ErrNotRunning
	}
	l.queue.push(&call{fn: func() {
		if l.opts.OnHotkey != nil {
			l.opts.OnHotkey(id)
		}
	}, done: make(chan struct{})})
	notify(wake)
	return nil
}

// Stop ends the loop and waits for OnExit to finish.
func (l *Loop) Stop() error {
	l.mu.Lock()
	quit, doneCh := l.quit, l.doneCh
	l.quit, l.doneCh, l.wake = nil, nil, nil
	l.mu.Unlock()
	if doneCh == nil {
		return nil
	}
	close(quit)
	<-doneCh
	return nil
}

func notify(wake chan struct{}) {
	select {
	case wake <- struct{}{}:
	default:
	}
}

func (l *Loop) run(wake <-chan struct{}, quit <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)
	if l.opts.OnExit != nil {
		defer func() {
			_ = protect("OnExit", l.opts.OnExit)
		}()
	}
	for {
		select {
		case <-quit:
			return
		case <-wake:
			for _, c := range l.queue.drain() {
				c.run()
			}
		}
	}
}
