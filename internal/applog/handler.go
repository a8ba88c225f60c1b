package applog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
)

// EntryCallback is invoked for each log record at or above the tee threshold.
// group is the accumulated dot-separated slog group, or "".
type EntryCallback func(level slog.Level, msg string, group string)

// TeeHandler wraps a base slog.Handler and tees records at or above minLevel
// to a callback. All records reach the base handler regardless of level.
type TeeHandler struct {
	base     slog.Handler
	callback EntryCallback
	minLevel slog.Level
	group    string
}

// NewTeeHandler creates a TeeHandler. A nil callback only delegates to base.
func NewTeeHandler(base slog.Handler, minLevel slog.Level, callback EntryCallback) *TeeHandler {
	return &TeeHandler{
		base:     base,
		callback: callback,
		minLevel: minLevel,
	}
}

// Enabled defers to the base handler; minLevel only gates the callback.
func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle forwards the record to the base handler, then invokes the callback
// if the record meets minLevel. The callback runs even when the base fails.
func (h *TeeHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.base.Handle(ctx, record)

	if h.callback != nil && record.Level >= h.minLevel {
		func() {
			defer func() {
				if r := recover(); r != nil {
					// stderr, not slog: logging here would re-enter this handler.
					fmt.Fprintf(os.Stderr, "[applog] callback panicked: %v\n%s\n", r, debug.Stack())
				}
			}()
			h.callback(record.Level, record.Message, h.group)
		}()
	}
	return err
}

// WithAttrs applies attrs to the base handler, keeping callback and group.
func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return &TeeHandler{
		base:     h.base.WithAttrs(attrs),
		callback: h.callback,
		minLevel: h.minLevel,
		group:    h.group,
	}
}

// WithGroup nests the base handler under name and extends the tee group.
func (h *TeeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroup := name
	if h.group != "" {
		newGroup = h.group + "." + name
	}
	return &TeeHandler{
		base:     h.base.WithGroup(name),
		callback: h.callback,
		minLevel: h.minLevel,
		group:    newGroup,
	}
}
