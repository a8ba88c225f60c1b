//go:build windows

package ipc

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func testPipeName(t *testing.T) string {
	t.Helper()
	return defaultPipePrefix + "test-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func TestPipeSecurityDescriptor(t *testing.T) {
	sddl, err := pipeSecurityDescriptor()
	if err != nil {
		t.Fatalf("pipeSecurityDescriptor() error = %v", err)
	}
	if !strings.HasPrefix(sddl, "D:P(A;;GA;;;SY)(A;;GA;;;S-1-") {
		t.Fatalf("sddl = %q", sddl)
	}
}
