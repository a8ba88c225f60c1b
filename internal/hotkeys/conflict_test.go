package hotkeys

import (
	"testing"

	"pgregory.net/rapid"
)

func TestFindConflictSharedCharacterBinding(t *testing.T) {
	s := NewStore()
	shared := Binding{Key: VKF2, Enabled: true}
	s.SetCharacterHotkey("Alice", shared)
	s.SetCharacterHotkey("Bob", shared)

	if got := s.FindConflict(shared, "Bob"); got != "Character: Alice" {
		t.Fatalf("FindConflict = %q, want %q", got, "Character: Alice")
	}
	if !s.HasConflict(shared, "Bob") {
		t.Fatal("HasConflict = false, want true")
	}
}

func TestFindConflictLabels(t *testing.T) {
	s := NewStore()
	s.SetCharacterHotkey("Alice", Binding{Key: VKey('A'), Ctrl: true, Enabled: true})
	s.SetCycleGroup(CycleGroup{
		Name:     "fleet",
		Forward:  Binding{Key: VKey('F'), Alt: true, Enabled: true},
		Backward: Binding{Key: VKey('F'), Alt: true, Shift: true, Enabled: true},
	})
	s.SetNotLoggedInHotkeys(CyclePair{
		Forward:  Binding{Key: VKey('N'), Enabled: true},
		Backward: Binding{Key: VKey('N'), Shift: true, Enabled: true},
	})
	s.SetNonTargetHotkeys(CyclePair{
		Forward:  Binding{Key: VKey('O'), Enabled: true},
		Backward: Binding{Key: VKey('O'), Shift: true, Enabled: true},
	})
	s.SetCloseAllHotkey(Binding{Key: VKEnd, Ctrl: true, Enabled: true})
	s.SetProfileHotkeys(map[string]Binding{"pvp": {Key: VKF9, Enabled: true}})

	tests := []struct {
		name      string
		candidate Binding
		exclude   string
		want      string
	}{
		{name: "suspend", candidate: DefaultSuspendBinding, want: "Suspend/Resume Hotkey"},
		{name: "character", candidate: Binding{Key: VKey('A'), Ctrl: true, Enabled: true}, want: "Character: Alice"},
		{name: "cycle forward", candidate: Binding{Key: VKey('F'), Alt: true, Enabled: true}, want: "Cycle Group 'fleet' (Forward)"},
		{name: "cycle backward", candidate: Binding{Key: VKey('F'), Alt: true, Shift: true, Enabled: true}, want: "Cycle Group 'fleet' (Backward)"},
		{name: "not logged in forward", candidate: Binding{Key: VKey('N'), Enabled: true}, want: "Not Logged In Cycle (Forward)"},
		{name: "not logged in backward", candidate: Binding{Key: VKey('N'), Shift: true, Enabled: true}, want: "Not Logged In Cycle (Backward)"},
		{name: "non target forward", candidate: Binding{Key: VKey('O'), Enabled: true}, want: "Non-EVE Cycle (Forward)"},
		{name: "non target backward", candidate: Binding{Key: VKey('O'), Shift: true, Enabled: true}, want: "Non-EVE Cycle (Backward)"},
		{name: "close all", candidate: Binding{Key: VKEnd, Ctrl: true, Enabled: true}, want: "Close All Clients"},
		{name: "profile", candidate: Binding{Key: VKF9, Enabled: true}, want: "Profile: pvp"},
		{name: "profile excluded", candidate: Binding{Key: VKF9, Enabled: true}, exclude: "pvp", want: ""},
		{name: "modifier differs", candidate: Binding{Key: VKey('A'), Alt: true, Enabled: true}, want: ""},
		{name: "disabled candidate", candidate: Binding{Key: VKey('A'), Ctrl: true}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.FindConflict(tt.candidate, tt.exclude); got != tt.want {
				t.Fatalf("FindConflict = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindConflictIgnoresDisabledStoredBinding(t *testing.T) {
	s := emptyStore()
	s.SetCharacterHotkey("Alice", Binding{Key: VKF1})
	s.SetNonTargetHotkeys(CyclePair{Forward: Binding{Key: VKF1}})
	if got := s.FindConflict(Binding{Key: VKF1, Enabled: true}, ""); got != "" {
		t.Fatalf("FindConflict = %q, want none", got)
	}
}

func TestFindConflictFirstHitWins(t *testing.T) {
	s := NewStore()
	b := Binding{Key: VKF12, Ctrl: true, Alt: true, Shift: true, Enabled: true}
	s.SetCharacterHotkey("Alice", b)
	if got := s.FindConflict(b, ""); got != "Suspend/Resume Hotkey" {
		t.Fatalf("FindConflict = %q, want suspend label first", got)
	}
}

func TestFindConflictSymmetry(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := bindingGen().Draw(t, "candidate")
		b := bindingGen().Draw(t, "stored")

		s := emptyStore()
		s.SetCharacterHotkey("B", b)

		got := s.FindConflict(a, "")
		want := ""
		if a == b && b.Enabled {
			want = "Character: B"
		}
		if got != want {
			t.Fatalf("FindConflict(%+v) with stored %+v = %q, want %q", a, b, got, want)
		}
	})
}
