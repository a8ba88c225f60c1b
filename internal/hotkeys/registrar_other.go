//go:build !windows

package hotkeys

import "errors"

// SystemRegistrar is a placeholder on non-Windows targets. The constructor
// refuses to build one, so the service stops at startup instead of running
// with every binding inert.
type SystemRegistrar struct{}

// NewSystemRegistrar always fails with ErrUnsupported on this platform.
func NewSystemRegistrar() (*SystemRegistrar, error) {
	return nil, ErrUnsupported
}

func (*SystemRegistrar) RegisterHotKey(int32, Modifier, VKey) error { return ErrUnsupported }
func (*SystemRegistrar) UnregisterHotKey(int32) error               { return nil }

// SystemForeground cannot see foreground windows on this platform.
type SystemForeground struct{}

func (SystemForeground) ForegroundProcessName() (string, error) {
	return "", errors.New("foreground process lookup is not supported on this platform")
}
