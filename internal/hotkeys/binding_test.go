package hotkeys

import (
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func bindingGen() *rapid.Generator[Binding] {
	return rapid.Custom(func(t *rapid.T) Binding {
		return Binding{
			Key:     VKey(rapid.Uint32().Draw(t, "key")),
			Ctrl:    rapid.Bool().Draw(t, "ctrl"),
			Alt:     rapid.Bool().Draw(t, "alt"),
			Shift:   rapid.Bool().Draw(t, "shift"),
			Enabled: rapid.Bool().Draw(t, "enabled"),
		}
	})
}

func TestBindingStringRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := bindingGen().Draw(t, "binding")
		got, err := ParseBinding(b.String())
		if err != nil {
			t.Fatalf("ParseBinding(%q) error: %v", b.String(), err)
		}
		if got != b {
			t.Fatalf("round trip = %+v, want %+v", got, b)
		}
	})
}

func TestBindingString(t *testing.T) {
	b := Binding{Key: VKF12, Ctrl: true, Alt: true, Shift: true, Enabled: true}
	if got, want := b.String(), "1,123,1,1,1"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if got, want := (Binding{}).String(), "0,0,0,0,0"; got != want {
		t.Fatalf("zero String() = %q, want %q", got, want)
	}
}

func TestParseBindingMalformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "too few fields", text: "1,112,1,0"},
		{name: "too many fields", text: "1,112,1,0,0,1"},
		{name: "non-numeric key", text: "1,F1,1,0,0"},
		{name: "non-numeric flag", text: "yes,112,1,0,0"},
		{name: "negative key", text: "1,-5,0,0,0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBinding(tt.text)
			if !errors.Is(err, ErrMalformedRecord) {
				t.Fatalf("ParseBinding(%q) error = %v, want ErrMalformedRecord", tt.text, err)
			}
		})
	}
}

func TestParseBindingTolerance(t *testing.T) {
	got, err := ParseBinding(" 1, 114 ,1,0, 2 ")
	if err != nil {
		t.Fatalf("ParseBinding error: %v", err)
	}
	want := Binding{Key: VKF3, Ctrl: true, Shift: true, Enabled: true}
	if got != want {
		t.Fatalf("ParseBinding = %+v, want %+v", got, want)
	}
}

func TestBindingCompare(t *testing.T) {
	base := Binding{Key: VKF1}
	tests := []struct {
		name  string
		a, b  Binding
		wantC int
	}{
		{name: "equal", a: base, b: base, wantC: 0},
		{name: "key first", a: Binding{Key: VKF1, Ctrl: true}, b: Binding{Key: VKF2}, wantC: -1},
		{name: "ctrl before alt", a: Binding{Key: VKF1, Alt: true}, b: Binding{Key: VKF1, Ctrl: true}, wantC: -1},
		{name: "shift", a: Binding{Key: VKF1, Shift: true}, b: base, wantC: 1},
		{name: "enabled last", a: Binding{Key: VKF1, Enabled: true}, b: base, wantC: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Compare(tt.b); got != tt.wantC {
				t.Fatalf("Compare = %d, want %d", got, tt.wantC)
			}
			if got := tt.b.Compare(tt.a); got != -tt.wantC {
				t.Fatalf("reverse Compare = %d, want %d", got, -tt.wantC)
			}
		})
	}
}

func TestBindingLabel(t *testing.T) {
	tests := []struct {
		b    Binding
		want string
	}{
		{Binding{Key: VKF3, Ctrl: true}, "Ctrl+F3"},
		{Binding{Key: VKF12, Ctrl: true, Alt: true, Shift: true}, "Ctrl+Alt+Shift+F12"},
		{Binding{Key: VKey('K'), Alt: true}, "Alt+K"},
		{Binding{}, ""},
	}
	for _, tt := range tests {
		if got := tt.b.Label(); got != tt.want {
			t.Errorf("Label(%+v) = %q, want %q", tt.b, got, tt.want)
		}
	}
}

func TestNewBindingIgnoresExtraModifiers(t *testing.T) {
	b := NewBinding(VKF1, ModControl|ModWin|ModNoRepeat)
	if b.Modifiers() != ModControl {
		t.Fatalf("Modifiers() = 0x%X, want 0x%X", b.Modifiers(), ModControl)
	}
}
