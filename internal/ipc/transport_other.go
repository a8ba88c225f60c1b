//go:build !windows

package ipc

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"syscall"
	"time"
)

// Off Windows the control channel is a Unix socket with owner-only
// permissions.
var pipeNamePattern = regexp.MustCompile(`(?i)^/.*/eveswitch-[a-z0-9._-]{1,128}\.sock$`)

func defaultPipeName(username string) string {
	return filepath.Join(os.TempDir(), "eveswitch-"+username+".sock")
}

func dialPipe(name string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", name, timeout)
}

func listenPipe(name string) (net.Listener, error) {
	// A socket left behind by a crashed instance blocks bind; a live one
	// still answers dial.
	if conn, err := net.DialTimeout("unix", name, 200*time.Millisecond); err == nil {
		conn.Close()
		return nil, fmt.Errorf("socket %s already in use", name)
	}
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", name)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(name, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	return listener, nil
}

func isPipeNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}
