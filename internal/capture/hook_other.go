//go:build !windows

package capture

// LowLevelHook is unavailable on this platform; Install always fails.
type LowLevelHook struct{}

// NewLowLevelHook returns a hook that cannot be installed.
func NewLowLevelHook() *LowLevelHook {
	return &LowLevelHook{}
}

func (*LowLevelHook) Install(HookHandler) error { return ErrUnsupported }
func (*LowLevelHook) Uninstall() error          { return nil }
func (*LowLevelHook) Installed() bool           { return false }
