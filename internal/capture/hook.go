package capture

import (
	"errors"

	"eveswitch/internal/hotkeys"
)

// ErrUnsupported is returned by Install on platforms without a low-level
// keyboard hook.
var ErrUnsupported = errors.New("low-level keyboard hook is not supported on this platform")

// KeyEvent is one physical key transition seen by the hook.
type KeyEvent struct {
	Key  hotkeys.VKey
	Down bool
}

// HookHandler inspects a key event and returns true to stop it from
// reaching the rest of the system.
type HookHandler func(KeyEvent) bool

// Hook is the process-wide low-level keyboard hook. Install and Uninstall
// are idempotent and must run on the message loop thread.
type Hook interface {
	Install(handler HookHandler) error
	Uninstall() error
	Installed() bool
}
