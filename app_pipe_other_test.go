//go:build !windows

package main

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
	return filepath.Join(dir, "ctl.sock")
}
