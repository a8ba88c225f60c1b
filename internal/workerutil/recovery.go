// Package workerutil supervises eveswitch's background goroutines, such as the
// config/bindings file watcher. A panic in a worker is logged with its stack
// and the worker restarts with backoff, so a bad fsnotify event cannot take
// the hotkey service down with it.
package workerutil

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultMaxRetries     = 10
)

// RecoveryOptions tunes RunWithPanicRecovery. Zero values take the defaults.
type RecoveryOptions struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxRetries     int

	// OnPanic runs after each recovered panic; attempt starts at 1.
	OnPanic func(worker string, attempt int)
	// OnFatal runs once when the worker is abandoned.
	OnFatal func(worker string, maxRetries int)
	// IsShutdown suppresses restarts during App.shutdown.
	IsShutdown func() bool
}

func (opts RecoveryOptions) applyDefaults() RecoveryOptions {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		slog.Warn("[WARN-WORKER] max backoff below initial backoff, clamping",
			"initialBackoff", opts.InitialBackoff,
			"maxBackoff", opts.MaxBackoff,
		)
		opts.MaxBackoff = opts.InitialBackoff
	}
	return opts
}

// RunWithPanicRecovery starts fn on wg. fn returning or ctx ending stops the
// worker; a panic restarts it, at most MaxRetries times.
func RunWithPanicRecovery(
	ctx context.Context,
	name string,
	wg *sync.WaitGroup,
	fn func(ctx context.Context),
	opts RecoveryOptions,
) {
	opts = opts.applyDefaults()
	wg.Go(func() {
		supervise(ctx, name, fn, opts)
	})
}

func supervise(ctx context.Context, name string, fn func(ctx context.Context), opts RecoveryOptions) {
	delay := opts.InitialBackoff

	for attempt := range opts.MaxRetries {
		if !runOnce(ctx, name, fn) || ctx.Err() != nil {
			return
		}
		if opts.IsShutdown != nil && opts.IsShutdown() {
			slog.Info("[DEBUG-WORKER] shutting down, worker not restarted", "worker", name)
			return
		}

		slog.Warn("[WARN-WORKER] worker panicked, restarting",
			"worker", name,
			"delay", delay,
			"attempt", attempt+1,
		)
		if opts.OnPanic != nil {
			opts.OnPanic(name, attempt+1)
		}
		if attempt == opts.MaxRetries-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = nextBackoff(delay, opts.MaxBackoff)
	}

	slog.Error("[ERROR-WORKER] worker abandoned after repeated panics",
		"worker", name,
		"maxRetries", opts.MaxRetries,
	)
	if opts.OnFatal != nil {
		opts.OnFatal(name, opts.MaxRetries)
	}
}

// runOnce calls fn and reports whether it panicked.
func runOnce(ctx context.Context, name string, fn func(ctx context.Context)) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[ERROR-WORKER] recovered panic",
				"worker", name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			panicked = true
		}
	}()
	fn(ctx)
	return false
}

// nextBackoff doubles current up to maxBackoff.
func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	if current <= 0 {
		return defaultInitialBackoff
	}
	if current >= maxBackoff {
		return maxBackoff
	}
	next := current * 2
	if next > maxBackoff || next < current {
		return maxBackoff
	}
	return next
}
