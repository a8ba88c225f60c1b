//go:build !windows

package ipc

import (
	"os"
	"path/filepath"
	"testing"
)

// testPipeName keeps socket paths short; t.TempDir can exceed sun_path limits.
func testPipeName(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "evs")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "eveswitch-test.sock")
}

func TestListenPipeReplacesStaleSocket(t *testing.T) {
	name := testPipeName(t)
	if err := os.WriteFile(name, nil, 0o600); err != nil {
		t.Fatalf("write stale file: %v", err)
	}
	listener, err := listenPipe(name)
	if err != nil {
		t.Fatalf("listenPipe() error = %v", err)
	}
	defer listener.Close()

	info, err := os.Stat(name)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		t.Fatalf("socket permissions = %o, want owner-only", info.Mode().Perm())
	}

	if _, err := listenPipe(name); err == nil {
		t.Fatal("listenPipe() on a live socket expected error")
	}
}
