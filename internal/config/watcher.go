package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the write/rename bursts an editor or AtomicWrite
// produces into one reload.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports changes to a fixed set of files. It watches the parent
// directories so that files replaced by rename are still seen.
type Watcher struct {
	watcher  *fsnotify.Watcher
	targets  map[string]struct{}
	debounce time.Duration
}

// NewWatcher starts watching the directories containing paths.
func NewWatcher(debounce time.Duration, paths ...string) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("watch config: no paths")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	targets := make(map[string]struct{}, len(paths))
	dirs := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		abs, absErr := filepath.Abs(p)
		if absErr != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch config: resolve %q: %w", p, absErr)
		}
		targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	slog.Debug("[DEBUG-CONFIG] watcher started", "files", len(targets), "dirs", len(dirs))

	return &Watcher{watcher: watcher, targets: targets, debounce: debounce}, nil
}

// Run delivers debounced change notifications to onChange until ctx is done
// or the watcher is closed. The changed paths are sorted.
func (w *Watcher) Run(ctx context.Context, onChange func(changed []string)) {
	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			name, forward := w.shouldForward(event)
			if !forward {
				continue
			}
			slog.Debug("[DEBUG-CONFIG] file change detected", "path", name, "op", event.Op.String())
			pending[name] = struct{}{}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				slog.Warn("[WARN-CONFIG] watcher error", "error", err)
			}
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, name)
			}
			clear(pending)
			slices.Sort(changed)
			if onChange != nil {
				onChange(changed)
			}
		}
	}
}

// Close stops the watcher. Run returns once its channels close.
func (w *Watcher) Close() error {
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("closing fsnotify watcher: %w", err)
	}
	return nil
}

// shouldForward reports whether event touches a watched file and returns
// its cleaned absolute name.
func (w *Watcher) shouldForward(event fsnotify.Event) (string, bool) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return "", false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return "", false
	}
	if _, ok := w.targets[name]; !ok {
		return "", false
	}
	return name, true
}
