// Package settings persists hotkey bindings in an INI file. Each binding
// group is an INI section; each key holds one serialized record.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/ini.v1"

	"eveswitch/internal/config"
)

const maxSettingsFileBytes = 1 << 20

var loadOptions = ini.LoadOptions{
	KeyValueDelimiters: "=",
	// Records never carry comments; keep '#' and ';' as part of the value.
	IgnoreInlineComment: true,
}

// File is an INI-backed hotkeys.Settings. It is safe for concurrent use.
type File struct {
	mu   sync.Mutex
	path string
	ini  *ini.File
}

// Load reads path. A missing file yields an empty settings file that will be
// created on the first Save.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("[DEBUG-SETTINGS] settings file missing, starting empty", "path", path)
			f := Empty()
			f.path = path
			return f, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if len(raw) > maxSettingsFileBytes {
		return nil, fmt.Errorf("read settings: %s exceeds %d bytes", path, maxSettingsFileBytes)
	}
	f, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	f.path = path
	return f, nil
}

// Empty returns a File with no groups that is not bound to a path.
func Empty() *File {
	return &File{ini: ini.Empty(loadOptions)}
}

// Parse builds a File from INI text that is not bound to a path.
func Parse(raw []byte) (*File, error) {
	parsed, err := ini.LoadSources(loadOptions, raw)
	if err != nil {
		return nil, err
	}
	return &File{ini: parsed}, nil
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Keys returns the keys stored in group in file order.
func (f *File) Keys(group string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	sec, err := f.ini.GetSection(group)
	if err != nil {
		return nil
	}
	return sec.KeyStrings()
}

// Value returns the stored record. Empty values are reported as absent.
func (f *File) Value(group, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sec, err := f.ini.GetSection(group)
	if err != nil || !sec.HasKey(key) {
		return "", false
	}
	v := sec.Key(key).String()
	if v == "" {
		return "", false
	}
	return v, true
}

// SetValue stores value under group/key, creating the section if needed.
func (f *File) SetValue(group, key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ini.Section(group).Key(key).SetValue(value)
}

// ClearGroup removes every key in group.
func (f *File) ClearGroup(group string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ini.DeleteSection(group)
}

// Bytes renders the current contents.
func (f *File) Bytes() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var buf bytes.Buffer
	if _, err := f.ini.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render settings: %w", err)
	}
	return buf.Bytes(), nil
}

// Save atomically writes the file to its path.
func (f *File) Save() error {
	if f.path == "" {
		return errors.New("save settings: no path")
	}
	raw, err := f.Bytes()
	if err != nil {
		return err
	}
	if err := config.AtomicWrite(f.path, raw); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	slog.Debug("[DEBUG-SETTINGS] settings saved", "path", f.path)
	return nil
}
