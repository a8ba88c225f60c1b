// Package applog sets up the process logger. Records go to a per-run log
// file next to the config; warnings are also teed to a sink bound after
// startup, such as the event stream.
package applog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	logDirName  = "logs"
	logPrefix   = "eveswitch-"
	logSuffix   = ".log"
	maxLogFiles = 20
)

// Options configures Setup.
type Options struct {
	// Dir is the directory that will hold the logs/ subdirectory.
	// Empty disables the log file.
	Dir   string
	Level slog.Level
	// Stderr mirrors records to os.Stderr.
	Stderr bool
}

// Logger owns the log file and the tee target.
type Logger struct {
	level   slog.LevelVar
	forward atomic.Pointer[EntryCallback]

	mu   sync.Mutex
	file *os.File
	path string
}

// Setup builds the logger and installs it as the slog default. File errors
// are non-fatal: the logger falls back to stderr and the error is returned
// for the caller to report.
func Setup(opts Options) (*Logger, error) {
	l := &Logger{}
	l.level.Set(opts.Level)

	var (
		writers []io.Writer
		fileErr error
	)
	if opts.Dir != "" {
		fileErr = l.openFile(opts.Dir)
		if l.file != nil {
			writers = append(writers, l.file)
		}
	}
	if opts.Stderr || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	base := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: &l.level})
	slog.SetDefault(slog.New(NewTeeHandler(base, slog.LevelWarn, l.tee)))

	if l.path != "" {
		slog.Info("[DEBUG-LOG] log file opened", "path", l.path)
	}
	return l, fileErr
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level slog.Level) {
	if l.level.Level() != level {
		l.level.Set(level)
		slog.Info("[DEBUG-LOG] log level changed", "level", level)
	}
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Forward sets the callback receiving Warn+ records. nil disables forwarding.
func (l *Logger) Forward(cb EntryCallback) {
	if cb == nil {
		l.forward.Store(nil)
		return
	}
	l.forward.Store(&cb)
}

// Path returns the current log file, or "".
func (l *Logger) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// Close flushes and closes the log file. Later records go nowhere useful,
// so callers close last during shutdown.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := errors.Join(l.file.Sync(), l.file.Close())
	l.file = nil
	return err
}

func (l *Logger) tee(level slog.Level, msg string, group string) {
	if cb := l.forward.Load(); cb != nil {
		(*cb)(level, msg, group)
	}
}

func (l *Logger) openFile(dir string) error {
	logDir := filepath.Join(dir, logDirName)
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	// PID avoids collisions on sub-second restarts.
	name := fmt.Sprintf("%s%s-%d%s", logPrefix, time.Now().Format("20060102-150405"), os.Getpid(), logSuffix)
	fullPath := filepath.Join(logDir, name)
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	l.mu.Lock()
	l.file = f
	l.path = fullPath
	l.mu.Unlock()

	cleanupOldLogs(logDir, name, maxLogFiles)
	return nil
}

// cleanupOldLogs removes the oldest log files beyond keep, never touching
// current. Names sort by their timestamp prefix.
func cleanupOldLogs(dir, current string, keep int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[applog] read log directory %s: %v\n", dir, err)
		return
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, logPrefix) && strings.HasSuffix(name, logSuffix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	excess := len(names) - keep
	for _, name := range names {
		if excess <= 0 {
			break
		}
		if name == current {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			fmt.Fprintf(os.Stderr, "[applog] delete old log %s: %v\n", name, err)
			continue
		}
		excess--
	}
}
