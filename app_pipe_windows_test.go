//go:build windows

package main

import (
	"testing"

	"github.com/google/uuid"
)

func testPipeName(t *testing.T) string {
	t.Helper()
	return `\\.\pipe\eveswitch-test-` + uuid.NewString()
}
