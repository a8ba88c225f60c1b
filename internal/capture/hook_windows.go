//go:build windows

package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"eveswitch/internal/hotkeys"
)

var (
	user32DLL = windows.NewLazySystemDLL("user32.dll")

	procSetWindowsHookExW   = user32DLL.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32DLL.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32DLL.NewProc("CallNextHookEx")
)

const (
	whKeyboardLL = 13
	wmKeyDown    = 0x0100
	wmKeyUp      = 0x0101
	wmSysKeyDown = 0x0104
	wmSysKeyUp   = 0x0105
)

// kbdllHookStruct mirrors KBDLLHOOKSTRUCT.
type kbdllHookStruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

var (
	// The hook procedure receives no user data, so the installed hook is
	// reachable only through this pointer. At most one LowLevelHook can be
	// installed per process.
	installedHook atomic.Pointer[LowLevelHook]

	hookCallbackOnce sync.Once
	hookCallback     uintptr
)

// LowLevelHook is a WH_KEYBOARD_LL hook. Install it from a thread that
// pumps messages; the hook procedure runs on that thread.
type LowLevelHook struct {
	handle  uintptr
	handler HookHandler
}

// NewLowLevelHook returns an uninstalled hook.
func NewLowLevelHook() *LowLevelHook {
	return &LowLevelHook{}
}

func (h *LowLevelHook) Installed() bool { return h.handle != 0 }

func (h *LowLevelHook) Install(handler HookHandler) error {
	if h.handle != 0 {
		return nil
	}
	if handler == nil {
		return errors.New("hook handler is required")
	}
	if err := user32DLL.Load(); err != nil {
		return fmt.Errorf("user32.dll is unavailable: %w", err)
	}
	if !installedHook.CompareAndSwap(nil, h) {
		return errors.New("another low-level keyboard hook is already installed")
	}

	hookCallbackOnce.Do(func() {
		hookCallback = windows.NewCallback(lowLevelKeyboardProc)
	})

	var module windows.Handle
	if err := windows.GetModuleHandleEx(0, nil, &module); err != nil {
		installedHook.Store(nil)
		return fmt.Errorf("GetModuleHandleEx: %w", err)
	}

	h.handler = handler
	handle, _, err := procSetWindowsHookExW.Call(
		whKeyboardLL,
		hookCallback,
		uintptr(module),
		0,
	)
	if handle == 0 {
		h.handler = nil
		installedHook.Store(nil)
		if err == syscall.Errno(0) {
			return errors.New("SetWindowsHookExW failed")
		}
		return fmt.Errorf("SetWindowsHookExW: %w", err)
	}
	h.handle = handle
	return nil
}

func (h *LowLevelHook) Uninstall() error {
	if h.handle == 0 {
		return nil
	}
	handle := h.handle
	h.handle = 0
	h.handler = nil
	installedHook.CompareAndSwap(h, nil)

	res, _, err := procUnhookWindowsHookEx.Call(handle)
	if res != 0 {
		return nil
	}
	if err == syscall.Errno(0) {
		return errors.New("UnhookWindowsHookEx failed")
	}
	return err
}

func lowLevelKeyboardProc(nCode, wParam, lParam uintptr) uintptr {
	if int32(nCode) >= 0 {
		if h := installedHook.Load(); h != nil && h.handler != nil {
			info := (*kbdllHookStruct)(unsafe.Pointer(lParam))
			var ev KeyEvent
			switch wParam {
			case wmKeyDown, wmSysKeyDown:
				ev = KeyEvent{Key: hotkeys.VKey(info.vkCode), Down: true}
			case wmKeyUp, wmSysKeyUp:
				ev = KeyEvent{Key: hotkeys.VKey(info.vkCode)}
			}
			if ev.Key != 0 && h.handler(ev) {
				return 1
			}
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return ret
}
