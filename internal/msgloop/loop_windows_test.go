//go:build windows

package msgloop

import (
	"testing"
	"unsafe"
)

// TestWinMsgSize verifies that the winMsg struct matches the Win32 MSG layout.
func TestWinMsgSize(t *testing.T) {
	// On amd64 (64-bit): 48 bytes. On 386 (32-bit): 28 bytes.
	ptrSize := unsafe.Sizeof(uintptr(0))
	var expectedSize uintptr
	switch ptrSize {
	case 8: // 64-bit
		expectedSize = 48
	case 4: // 32-bit
		expectedSize = 28
	default:
		t.Skipf("unknown pointer size %d", ptrSize)
	}
	if got := unsafe.Sizeof(winMsg{}); got != expectedSize {
		t.Fatalf("unsafe.Sizeof(winMsg{}) = %d, want %d (pointer size=%d)", got, expectedSize, ptrSize)
	}
}
