// Package userutil derives the per-user suffix of the eveswitch control
// pipe (internal/ipc) and the single-instance lock (internal/singleinstance),
// so two Windows users on one machine each get their own hotkey service.
package userutil

import (
	"os"
	"os/user"
	"regexp"
	"strings"
)

// maxNameLen keeps pipe and mutex names well below the Win32 limits.
const maxNameLen = 64

var invalidNameRun = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Current returns the sanitized name of the logged-in user. %USERNAME% wins
// over the account database, matching what Windows shows in the session.
func Current() string {
	name := strings.TrimSpace(os.Getenv("USERNAME"))
	if name == "" {
		if u, err := user.Current(); err == nil {
			name = u.Username
		}
	}
	return SanitizeUsername(name)
}

// SanitizeUsername maps a username onto the characters allowed in pipe,
// mutex and lock-file names. Blank input yields "unknown".
func SanitizeUsername(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	value = invalidNameRun.ReplaceAllString(value, "_")
	if len(value) > maxNameLen {
		value = value[:maxNameLen]
	}
	return value
}
