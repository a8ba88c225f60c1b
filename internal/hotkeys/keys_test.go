package hotkeys

import (
	"strings"
	"testing"
)

func TestParseSpecSuccess(t *testing.T) {
	tests := []struct {
		name      string
		spec      string
		wantLabel string
		wantMods  Modifier
		wantKey   VKey
	}{
		{
			name:      "Ctrl+Shift+F12",
			spec:      "Ctrl+Shift+F12",
			wantLabel: "Ctrl+Shift+F12",
			wantMods:  ModControl | ModShift,
			wantKey:   VKF12,
		},
		{
			name:      "bare function key",
			spec:      "F5",
			wantLabel: "F5",
			wantKey:   VKF1 + 4,
		},
		{
			name:      "Ctrl+backtick",
			spec:      "Ctrl+`",
			wantLabel: "Ctrl+`",
			wantMods:  ModControl,
			wantKey:   VKOem3,
		},
		{
			name:      "letter key",
			spec:      "Ctrl+A",
			wantLabel: "Ctrl+A",
			wantMods:  ModControl,
			wantKey:   VKey('A'),
		},
		{
			name:      "digit key",
			spec:      "Alt+3",
			wantLabel: "Alt+3",
			wantMods:  ModAlt,
			wantKey:   VKey('3'),
		},
		{
			name:      "named key space",
			spec:      "Ctrl+Space",
			wantLabel: "Ctrl+Space",
			wantMods:  ModControl,
			wantKey:   VKSpace,
		},
		{
			name:      "return alias",
			spec:      "Ctrl+Return",
			wantLabel: "Ctrl+Enter",
			wantMods:  ModControl,
			wantKey:   VKReturn,
		},
		{
			name:      "page up",
			spec:      "Shift+PageUp",
			wantLabel: "Shift+PageUp",
			wantMods:  ModShift,
			wantKey:   VKPrior,
		},
		{
			name:      "numpad digit",
			spec:      "Ctrl+Num7",
			wantLabel: "Ctrl+Num7",
			wantMods:  ModControl,
			wantKey:   VKNumpad0 + 7,
		},
		{
			name:      "hex virtual-key code",
			spec:      "Ctrl+0x41",
			wantLabel: "Ctrl+A",
			wantMods:  ModControl,
			wantKey:   VKey(0x41),
		},
		{
			name:      "plus key",
			spec:      "Ctrl++",
			wantLabel: "Ctrl+=",
			wantMods:  ModControl,
			wantKey:   VKOemPlus,
		},
		{
			name:      "control alias and dedup",
			spec:      "Control+Ctrl+A",
			wantLabel: "Ctrl+A",
			wantMods:  ModControl,
			wantKey:   VKey('A'),
		},
		{
			name:      "modifier order normalized",
			spec:      "shift+alt+ctrl+f1",
			wantLabel: "Ctrl+Alt+Shift+F1",
			wantMods:  ModControl | ModAlt | ModShift,
			wantKey:   VKF1,
		},
		{
			name:      "whitespace padded",
			spec:      "  Ctrl + A  ",
			wantLabel: "Ctrl+A",
			wantMods:  ModControl,
			wantKey:   VKey('A'),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			binding, err := ParseSpec(tt.spec)
			if err != nil {
				t.Fatalf("ParseSpec(%q) returned unexpected error: %v", tt.spec, err)
			}
			if got := binding.Label(); got != tt.wantLabel {
				t.Errorf("Label() = %q, want %q", got, tt.wantLabel)
			}
			if binding.Modifiers() != tt.wantMods {
				t.Errorf("Modifiers() = 0x%X, want 0x%X", binding.Modifiers(), tt.wantMods)
			}
			if binding.Key != tt.wantKey {
				t.Errorf("Key = 0x%X, want 0x%X", binding.Key, tt.wantKey)
			}
			if !binding.Enabled {
				t.Error("parsed binding should be enabled")
			}
		})
	}
}

func TestParseSpecErrors(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantSub string
	}{
		{name: "empty spec", spec: "", wantSub: "empty"},
		{name: "whitespace-only spec", spec: "   ", wantSub: "empty"},
		{name: "modifier only", spec: "Ctrl", wantSub: "cannot be used as the key"},
		{name: "win modifier", spec: "Win+A", wantSub: "unknown modifier"},
		{name: "missing key token", spec: "Ctrl+", wantSub: "missing hotkey key token"},
		{name: "unknown key name", spec: "Ctrl+Banana", wantSub: "unknown key"},
		{name: "invalid hex key", spec: "Ctrl+0xZZ", wantSub: "invalid hex key"},
		{name: "hex key zero", spec: "Ctrl+0x00", wantSub: "not a valid virtual key"},
		{name: "leading plus", spec: "+A", wantSub: "unknown modifier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSpec(tt.spec)
			if err == nil {
				t.Fatalf("ParseSpec(%q) expected error, got nil", tt.spec)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestKeyName(t *testing.T) {
	tests := []struct {
		vk   VKey
		want string
	}{
		{VKF1, "F1"},
		{VKF24, "F24"},
		{VKey('Q'), "Q"},
		{VKey('0'), "0"},
		{VKNumpad0 + 9, "Num9"},
		{VKEscape, "Esc"},
		{VKOem5, "\\"},
		{VKey(0xE2), "0xE2"},
	}
	for _, tt := range tests {
		if got := KeyName(tt.vk); got != tt.want {
			t.Errorf("KeyName(0x%X) = %q, want %q", tt.vk, got, tt.want)
		}
	}
}

func TestIsModifierKey(t *testing.T) {
	for _, vk := range []VKey{VKShift, VKControl, VKMenu, VKLShift, VKRShift, VKLControl, VKRControl, VKLMenu, VKRMenu, VKLWin, VKRWin} {
		if !IsModifierKey(vk) {
			t.Errorf("IsModifierKey(0x%X) = false, want true", vk)
		}
	}
	for _, vk := range []VKey{VKF3, VKey('A'), VKEscape, VKSpace} {
		if IsModifierKey(vk) {
			t.Errorf("IsModifierKey(0x%X) = true, want false", vk)
		}
	}
}
