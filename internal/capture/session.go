// Package capture records a key chord for editing a binding by watching raw
// key events through a low-level keyboard hook.
package capture

import (
	"log/slog"

	"github.com/google/uuid"

	"eveswitch/internal/hotkeys"
)

// Change is the binding-changed notification of a capture session.
type Change struct {
	// SessionID names the emitting session. Consumers that outlive a
	// session compare it to Session.ID to drop stale changes.
	SessionID uuid.UUID
	Binding   hotkeys.Binding
	Label     string
}

// Coordinator enforces that at most one session captures at a time and
// owns the hook installation. It is single-threaded like the hook callback:
// use it only from the message loop thread.
type Coordinator struct {
	hook      Hook
	active    *Session
	installer *Session
}

// NewCoordinator creates a coordinator over hook.
func NewCoordinator(hook Hook) *Coordinator {
	return &Coordinator{hook: hook}
}

// NewSession creates an idle session for one capture target. onChange may be nil.
func (c *Coordinator) NewSession(onChange func(Change)) *Session {
	return &Session{
		id:       uuid.New(),
		coord:    c,
		onChange: onChange,
	}
}

// Active returns the capturing session, or nil.
func (c *Coordinator) Active() *Session { return c.active }

// Close ends any active session and makes sure the hook is released.
func (c *Coordinator) Close() error {
	if c.active != nil {
		c.active.FocusOut()
	}
	c.installer = nil
	return c.hook.Uninstall()
}

func (c *Coordinator) handleKey(ev KeyEvent) bool {
	if c.active == nil {
		return false
	}
	return c.active.handleKey(ev)
}

func (c *Coordinator) acquire(s *Session) error {
	if c.active != nil && c.active != s {
		c.active.FocusOut()
	}
	c.active = s
	if c.hook.Installed() {
		return nil
	}
	if err := c.hook.Install(c.handleKey); err != nil {
		return err
	}
	c.installer = s
	return nil
}

func (c *Coordinator) release(s *Session) {
	if c.active == s {
		c.active = nil
	}
	if c.installer != s {
		return
	}
	c.installer = nil
	if err := c.hook.Uninstall(); err != nil {
		slog.Warn("[WARN-CAPTURE] failed to uninstall keyboard hook", "session", s.id, "error", err)
	}
}

// Session is the capture state of one editable binding field.
type Session struct {
	id       uuid.UUID
	coord    *Coordinator
	onChange func(Change)

	text         string
	binding      hotkeys.Binding
	savedText    string
	savedBinding hotkeys.Binding

	capturing bool
	cancelled bool
	ctrl      bool
	alt       bool
	shift     bool
}

func (s *Session) ID() uuid.UUID            { return s.id }
func (s *Session) Text() string             { return s.text }
func (s *Session) Binding() hotkeys.Binding { return s.binding }
func (s *Session) Capturing() bool          { return s.capturing }

// Cancelled reports whether the last capture ended with Escape.
func (s *Session) Cancelled() bool { return s.cancelled }

// SetHotkey shows b without notifying.
func (s *Session) SetHotkey(b hotkeys.Binding) {
	s.binding = b
	s.text = b.Label()
}

// FocusIn starts capturing: the displayed text is saved and cleared and the
// hook is installed if needed. Another capturing session is ended first.
func (s *Session) FocusIn() error {
	if s.capturing {
		return nil
	}
	s.savedText = s.text
	s.savedBinding = s.binding
	s.text = ""
	s.capturing = true
	s.cancelled = false
	s.resetModifiers()

	if err := s.coord.acquire(s); err != nil {
		slog.Warn("[WARN-CAPTURE] failed to install keyboard hook", "session", s.id, "error", err)
		s.text = s.savedText
		s.capturing = false
		s.coord.release(s)
		return err
	}
	slog.Debug("[DEBUG-CAPTURE] capture started", "session", s.id)
	return nil
}

// MousePress starts capturing exactly like FocusIn.
func (s *Session) MousePress() error {
	return s.FocusIn()
}

// FocusOut stops capturing, releases the hook if this session installed it
// and shows the current binding.
func (s *Session) FocusOut() {
	if !s.capturing {
		return
	}
	s.stop()
	s.text = s.binding.Label()
}

// ClearHotkey unbinds the field, stops capturing and notifies.
func (s *Session) ClearHotkey() {
	s.stop()
	s.binding = hotkeys.Binding{}
	s.text = ""
	s.notify()
}

func (s *Session) stop() {
	s.capturing = false
	s.resetModifiers()
	s.coord.release(s)
	slog.Debug("[DEBUG-CAPTURE] capture stopped", "session", s.id, "cancelled", s.cancelled)
}

func (s *Session) cancel() {
	s.cancelled = true
	s.binding = s.savedBinding
	s.stop()
	s.text = s.savedText
}

func (s *Session) resetModifiers() {
	s.ctrl, s.alt, s.shift = false, false, false
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange(Change{SessionID: s.id, Binding: s.binding, Label: s.text})
	}
}

// handleKey runs inside the hook callback and reports whether to suppress ev.
func (s *Session) handleKey(ev KeyEvent) bool {
	if !s.capturing {
		return false
	}

	switch ev.Key {
	case hotkeys.VKControl, hotkeys.VKLControl, hotkeys.VKRControl:
		s.ctrl = ev.Down
		return false
	case hotkeys.VKMenu, hotkeys.VKLMenu, hotkeys.VKRMenu:
		s.alt = ev.Down
		return false
	case hotkeys.VKShift, hotkeys.VKLShift, hotkeys.VKRShift:
		s.shift = ev.Down
		return false
	}
	if hotkeys.IsModifierKey(ev.Key) {
		return false
	}

	if !ev.Down {
		return true
	}
	if ev.Key == hotkeys.VKEscape {
		s.cancel()
		return true
	}

	s.binding = hotkeys.Binding{
		Key:     ev.Key,
		Ctrl:    s.ctrl,
		Alt:     s.alt,
		Shift:   s.shift,
		Enabled: true,
	}
	s.text = s.binding.Label()
	slog.Debug("[DEBUG-CAPTURE] captured chord", "session", s.id, "binding", s.text)
	s.notify()
	return true
}
