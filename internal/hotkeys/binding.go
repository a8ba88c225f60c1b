package hotkeys

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Modifier represents a Win32 hotkey modifier bitmask.
type Modifier uint32

// VKey represents a Win32 virtual-key code.
type VKey uint32

const (
	ModAlt      Modifier = 0x0001
	ModControl  Modifier = 0x0002
	ModShift    Modifier = 0x0004
	ModWin      Modifier = 0x0008
	ModNoRepeat Modifier = 0x4000
)

// ErrMalformedRecord marks a persisted binding or group record that could not be parsed.
var ErrMalformedRecord = errors.New("malformed persisted record")

// Binding describes one key combination and whether it is in use.
// The zero value is an unbound, disabled binding.
type Binding struct {
	Key     VKey
	Ctrl    bool
	Alt     bool
	Shift   bool
	Enabled bool
}

// NewBinding returns an enabled binding for key with the given modifier mask.
// Modifier bits other than Ctrl, Alt and Shift are ignored.
func NewBinding(key VKey, mods Modifier) Binding {
	return Binding{
		Key:     key,
		Ctrl:    mods&ModControl != 0,
		Alt:     mods&ModAlt != 0,
		Shift:   mods&ModShift != 0,
		Enabled: true,
	}
}

// Modifiers returns the Win32 modifier bitmask required by the binding.
func (b Binding) Modifiers() Modifier {
	var mods Modifier
	if b.Ctrl {
		mods |= ModControl
	}
	if b.Alt {
		mods |= ModAlt
	}
	if b.Shift {
		mods |= ModShift
	}
	return mods
}

// Compare orders bindings by key code, then ctrl, alt, shift and enabled.
// It returns -1, 0 or +1.
func (b Binding) Compare(other Binding) int {
	switch {
	case b.Key < other.Key:
		return -1
	case b.Key > other.Key:
		return 1
	}
	for _, pair := range [...][2]bool{
		{b.Ctrl, other.Ctrl},
		{b.Alt, other.Alt},
		{b.Shift, other.Shift},
		{b.Enabled, other.Enabled},
	} {
		if pair[0] == pair[1] {
			continue
		}
		if !pair[0] {
			return -1
		}
		return 1
	}
	return 0
}

// String returns the persisted form "enabled,keyCode,ctrl,alt,shift".
func (b Binding) String() string {
	return strings.Join([]string{
		boolField(b.Enabled),
		strconv.FormatUint(uint64(b.Key), 10),
		boolField(b.Ctrl),
		boolField(b.Alt),
		boolField(b.Shift),
	}, ",")
}

// Label renders the binding for display, e.g. "Ctrl+Alt+F3".
// An unbound binding renders as an empty string.
func (b Binding) Label() string {
	if b.Key == 0 {
		return ""
	}
	parts := make([]string, 0, 4)
	if b.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if b.Alt {
		parts = append(parts, "Alt")
	}
	if b.Shift {
		parts = append(parts, "Shift")
	}
	return strings.Join(append(parts, KeyName(b.Key)), "+")
}

// ParseBinding parses the persisted form produced by Binding.String.
func ParseBinding(text string) (Binding, error) {
	fields := strings.Split(strings.TrimSpace(text), ",")
	if len(fields) != 5 {
		return Binding{}, fmt.Errorf("%w: binding %q has %d fields, want 5", ErrMalformedRecord, text, len(fields))
	}

	var flags [4]bool
	for i, idx := range [...]int{0, 2, 3, 4} {
		v, err := strconv.Atoi(strings.TrimSpace(fields[idx]))
		if err != nil {
			return Binding{}, fmt.Errorf("%w: binding %q field %d: %v", ErrMalformedRecord, text, idx+1, err)
		}
		flags[i] = v != 0
	}

	key, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 32)
	if err != nil {
		return Binding{}, fmt.Errorf("%w: binding %q key code: %v", ErrMalformedRecord, text, err)
	}

	return Binding{
		Key:     VKey(key),
		Ctrl:    flags[1],
		Alt:     flags[2],
		Shift:   flags[3],
		Enabled: flags[0],
	}, nil
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
