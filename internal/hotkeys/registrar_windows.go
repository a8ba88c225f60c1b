//go:build windows

package hotkeys

import (
	"errors"
	"fmt"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/windows"
)

var (
	user32DLL = windows.NewLazySystemDLL("user32.dll")

	procRegisterHotKey   = user32DLL.NewProc("RegisterHotKey")
	procUnregisterHotKey = user32DLL.NewProc("UnregisterHotKey")
)

// SystemRegistrar registers thread hotkeys (NULL window) with Win32.
// WM_HOTKEY is posted to the queue of the thread that registered the id, so
// every call must come from the message loop thread.
type SystemRegistrar struct{}

// NewSystemRegistrar checks that user32.dll is loadable so failures produce
// clean errors instead of panics from LazyProc.Call.
func NewSystemRegistrar() (*SystemRegistrar, error) {
	if err := user32DLL.Load(); err != nil {
		return nil, fmt.Errorf("user32.dll is unavailable: %w", err)
	}
	return &SystemRegistrar{}, nil
}

func (*SystemRegistrar) RegisterHotKey(id int32, mods Modifier, key VKey) error {
	res, _, err := procRegisterHotKey.Call(
		0,
		uintptr(id),
		uintptr(mods),
		uintptr(key),
	)
	if res != 0 {
		return nil
	}
	if err == syscall.Errno(0) {
		return errors.New("RegisterHotKey failed")
	}
	return err
}

func (*SystemRegistrar) UnregisterHotKey(id int32) error {
	res, _, err := procUnregisterHotKey.Call(0, uintptr(id))
	if res != 0 {
		return nil
	}
	if err == syscall.Errno(0) {
		return errors.New("UnregisterHotKey failed")
	}
	return err
}

// SystemForeground resolves the foreground window's process via Win32.
type SystemForeground struct{}

func (SystemForeground) ForegroundProcessName() (string, error) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return "", errors.New("no foreground window")
	}
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return "", fmt.Errorf("GetWindowThreadProcessId: %w", err)
	}
	if pid == 0 {
		return "", errors.New("foreground window has no owning process")
	}

	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", fmt.Errorf("OpenProcess(%d): %w", pid, err)
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return "", fmt.Errorf("QueryFullProcessImageName(%d): %w", pid, err)
	}
	return filepath.Base(windows.UTF16ToString(buf[:size])), nil
}
