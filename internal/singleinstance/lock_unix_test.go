//go:build unix

package singleinstance

import (
	"path/filepath"
	"testing"
)

func testLockName(t *testing.T, suffix string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "eveswitch-test-"+suffix+".lock")
}
