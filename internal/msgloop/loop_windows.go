//go:build windows

package msgloop

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32DLL = windows.NewLazySystemDLL("user32.dll")

	procGetMessageW        = user32DLL.NewProc("GetMessageW")
	procTranslateMessage   = user32DLL.NewProc("TranslateMessage")
	procDispatchMessageW   = user32DLL.NewProc("DispatchMessageW")
	procPostThreadMessageW = user32DLL.NewProc("PostThreadMessageW")
	procPeekMessageW       = user32DLL.NewProc("PeekMessageW")
)

const (
	wmQuit     = 0x0012
	wmHotkey   = 0x0312
	wmApp      = 0x8000
	wmInvoke   = wmApp + 1
	pmNoRemove = 0x0000
)

// point mirrors the Win32 POINT struct.
type point struct {
	x int32
	y int32
}

// winMsg mirrors the Win32 MSG struct (tagMSG from winuser.h).
// Field order and types must not be changed -- the layout must match
// the Win32 binary layout on both 32-bit and 64-bit Windows.
type winMsg struct {
	hWnd     uintptr
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	pt       point
	lPrivate uint32 // reserved by Windows; required for correct struct size
}

type loopReady struct {
	threadID uint32
	err      error
}

// Loop is a Win32 thread message loop on a locked OS thread.
type Loop struct {
	opts  Options
	queue callQueue

	mu       sync.Mutex
	threadID uint32
	doneCh   chan struct{}
}

// New creates a stopped loop.
func New(opts Options) *Loop {
	return &Loop{opts: opts}
}

// Start launches the loop thread and waits until its message queue exists.
func (l *Loop) Start() error {
	if err := user32DLL.Load(); err != nil {
		return fmt.Errorf("user32.dll is unavailable: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.doneCh != nil {
		return ErrAlreadyRunning
	}

	readyCh := make(chan loopReady, 1)
	doneCh := make(chan struct{})
	go l.run(readyCh, doneCh)

	ready := <-readyCh
	if ready.err != nil {
		return ready.err
	}
	l.threadID = ready.threadID
	l.doneCh = doneCh
	return nil
}

// Done is closed once the loop thread has exited. It is nil before Start.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doneCh
}

// Do runs fn on the loop thread and waits for it to return. Called from the
// loop thread itself, fn runs inline.
func (l *Loop) Do(fn func()) error {
	l.mu.Lock()
	threadID, doneCh := l.threadID, l.doneCh
	l.mu.Unlock()
	if doneCh == nil {
		return ErrNotRunning
	}
	if windows.GetCurrentThreadId() == threadID {
		return protect("Do", fn)
	}

	c := &call{fn: fn, done: make(chan struct{})}
	l.queue.push(c)
	if err := postThreadMessage(threadID, wmInvoke, 0); err != nil {
		l.queue.remove(c)
		return fmt.Errorf("post invoke message: %w", err)
	}
	return c.wait(doneCh)
}

// PostHotkey queues a WM_HOTKEY for id as if the OS had sent it.
func (l *Loop) PostHotkey(id int32) error {
	l.mu.Lock()
	threadID := l.threadID
	l.mu.Unlock()
	if threadID == 0 {
		return ErrNotRunning
	}
	return postThreadMessage(threadID, wmHotkey, uintptr(id))
}

// Stop asks the loop to quit and waits for OnExit to finish.
func (l *Loop) Stop() error {
	l.mu.Lock()
	threadID, doneCh := l.threadID, l.doneCh
	l.threadID, l.doneCh = 0, nil
	l.mu.Unlock()
	if doneCh == nil {
		return nil
	}

	stopErr := postThreadMessage(threadID, wmQuit, 0)
	if windows.GetCurrentThreadId() == threadID {
		// Waiting here would deadlock; the loop exits once this callback returns.
		return stopErr
	}

	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()

	select {
	case <-doneCh:
		// Loop exited cleanly.
	case <-timer.C:
		slog.Warn("[WARN-LOOP] message loop stop timed out, thread may leak", "threadID", threadID)
		stopErr = errors.Join(stopErr, fmt.Errorf("message loop stop timed out (threadID=%d)", threadID))
	}
	return stopErr
}

func (l *Loop) run(readyCh chan<- loopReady, doneCh chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(doneCh)

	threadID := windows.GetCurrentThreadId()

	// PeekMessageW forces Windows to create the thread message queue so that
	// PostThreadMessageW can deliver to it before the first GetMessageW.
	var qmsg winMsg
	ret, _, peekErr := procPeekMessageW.Call(
		uintptr(unsafe.Pointer(&qmsg)),
		0,
		0,
		0,
		pmNoRemove,
	)
	if ret == 0 && peekErr != syscall.Errno(0) {
		slog.Warn("[WARN-LOOP] PeekMessageW for queue init returned error", "error", peekErr)
	}

	if l.opts.OnExit != nil {
		defer func() {
			_ = protect("OnExit", l.opts.OnExit)
		}()
	}

	readyCh <- loopReady{threadID: threadID}

	for {
		var msg winMsg
		ret, _, lastErr := procGetMessageW.Call(
			uintptr(unsafe.Pointer(&msg)),
			0,
			0,
			0,
		)
		switch int32(ret) {
		case -1:
			slog.Warn("[WARN-LOOP] GetMessageW returned error, exiting loop", "error", lastErr)
			return
		case 0:
			slog.Debug("[DEBUG-LOOP] message loop received WM_QUIT, exiting normally")
			return
		}

		switch msg.message {
		case wmHotkey:
			if l.opts.OnHotkey != nil {
				id := int32(msg.wParam)
				_ = protect("OnHotkey", func() { l.opts.OnHotkey(id) })
			}
			continue
		case wmInvoke:
			for _, c := range l.queue.drain() {
				c.run()
			}
			continue
		}

		// TranslateMessage and DispatchMessageW return values are informational
		// and are not error indicators for a thread-level message loop.
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
	}
}

func postThreadMessage(threadID uint32, message uint32, wParam uintptr) error {
	if threadID == 0 {
		return errors.New("cannot post thread message: threadID is 0")
	}
	res, _, err := procPostThreadMessageW.Call(
		uintptr(threadID),
		uintptr(message),
		wParam,
		0,
	)
	if res != 0 {
		return nil
	}
	if err == syscall.Errno(0) {
		return errors.New("PostThreadMessageW failed")
	}
	return err
}
