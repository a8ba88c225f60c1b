package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Persisted group and key names.
const (
	GroupHotkeys     = "hotkeys"
	GroupCharacters  = "characterHotkeys"
	GroupCycleGroups = "cycleGroups"
	GroupNotLoggedIn = "notLoggedInHotkeys"
	GroupNonTarget   = "nonEVEHotkeys"
	GroupCloseAll    = "closeAllHotkeys"

	KeySuspend  = "suspendHotkey"
	KeyForward  = "forward"
	KeyBackward = "backward"
	KeyCloseAll = "closeAllClients"
)

// DefaultSuspendBinding is Ctrl+Alt+Shift+F12.
var DefaultSuspendBinding = Binding{Key: VKF12, Ctrl: true, Alt: true, Shift: true, Enabled: true}

// Settings is the grouped key-value persistence collaborator.
type Settings interface {
	Keys(group string) []string
	Value(group, key string) (string, bool)
	SetValue(group, key, value string)
	ClearGroup(group string)
}

// CyclePair is a forward/backward binding pair.
type CyclePair struct {
	Forward  Binding
	Backward Binding
}

// CycleGroup is a named ordered set of targets stepped through with a
// forward and a backward binding.
type CycleGroup struct {
	Name               string
	Members            []string
	Forward            Binding
	Backward           Binding
	IncludeNotLoggedIn bool
	NoLoop             bool
}

// String returns the persisted form
// "member1,member2|forward|backward|includeNotLoggedIn|noLoop".
func (g CycleGroup) String() string {
	return strings.Join([]string{
		strings.Join(g.Members, ","),
		g.Forward.String(),
		g.Backward.String(),
		boolField(g.IncludeNotLoggedIn),
		boolField(g.NoLoop),
	}, "|")
}

// ParseCycleGroup parses the persisted form of a cycle group. The
// includeNotLoggedIn and noLoop fields are optional.
func ParseCycleGroup(name, text string) (CycleGroup, error) {
	fields := strings.Split(text, "|")
	if len(fields) < 3 {
		return CycleGroup{}, fmt.Errorf("%w: cycle group %q has %d fields, want at least 3", ErrMalformedRecord, name, len(fields))
	}

	g := CycleGroup{Name: name}
	for _, member := range strings.Split(fields[0], ",") {
		if member = strings.TrimSpace(member); member != "" {
			g.Members = append(g.Members, member)
		}
	}

	var err error
	if g.Forward, err = ParseBinding(fields[1]); err != nil {
		return CycleGroup{}, fmt.Errorf("cycle group %q forward: %w", name, err)
	}
	if g.Backward, err = ParseBinding(fields[2]); err != nil {
		return CycleGroup{}, fmt.Errorf("cycle group %q backward: %w", name, err)
	}
	if len(fields) > 3 {
		if g.IncludeNotLoggedIn, err = parseFlag(fields[3]); err != nil {
			return CycleGroup{}, fmt.Errorf("%w: cycle group %q includeNotLoggedIn: %v", ErrMalformedRecord, name, err)
		}
	}
	if len(fields) > 4 {
		if g.NoLoop, err = parseFlag(fields[4]); err != nil {
			return CycleGroup{}, fmt.Errorf("%w: cycle group %q noLoop: %v", ErrMalformedRecord, name, err)
		}
	}
	return g, nil
}

func parseFlag(text string) (bool, error) {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Store is the in-memory model of every configured binding.
// It is not safe for concurrent use; callers serialize access on the
// message loop thread.
type Store struct {
	suspend     Binding
	characters  map[string]Binding
	groups      map[string]CycleGroup
	notLoggedIn CyclePair
	nonTarget   CyclePair
	closeAll    Binding
	profiles    map[string]Binding
}

// NewStore returns a store holding only the default suspend binding.
func NewStore() *Store {
	return &Store{
		suspend:    DefaultSuspendBinding,
		characters: map[string]Binding{},
		groups:     map[string]CycleGroup{},
		profiles:   map[string]Binding{},
	}
}

func (s *Store) SuspendHotkey() Binding     { return s.suspend }
func (s *Store) SetSuspendHotkey(b Binding) { s.suspend = b }

// CharacterHotkey returns the binding assigned to a character.
func (s *Store) CharacterHotkey(name string) (Binding, bool) {
	b, ok := s.characters[name]
	return b, ok
}

func (s *Store) SetCharacterHotkey(name string, b Binding) { s.characters[name] = b }
func (s *Store) RemoveCharacterHotkey(name string)          { delete(s.characters, name) }

// CharacterNames returns the character names in sorted order.
func (s *Store) CharacterNames() []string {
	return slices.Sorted(maps.Keys(s.characters))
}

// CharacterForHotkey returns the first character (by name) whose binding
// equals b, or "" when none does.
func (s *Store) CharacterForHotkey(b Binding) string {
	for _, name := range s.CharacterNames() {
		if s.characters[name] == b {
			return name
		}
	}
	return ""
}

// CycleGroup returns the named cycle group.
func (s *Store) CycleGroup(name string) (CycleGroup, bool) {
	g, ok := s.groups[name]
	if !ok {
		return CycleGroup{}, false
	}
	g.Members = slices.Clone(g.Members)
	return g, true
}

// SetCycleGroup creates or replaces the cycle group named g.Name.
func (s *Store) SetCycleGroup(g CycleGroup) {
	g.Members = slices.Clone(g.Members)
	s.groups[g.Name] = g
}

func (s *Store) RemoveCycleGroup(name string) { delete(s.groups, name) }

// CycleGroupNames returns the cycle group names in sorted order.
func (s *Store) CycleGroupNames() []string {
	return slices.Sorted(maps.Keys(s.groups))
}

func (s *Store) NotLoggedInHotkeys() CyclePair     { return s.notLoggedIn }
func (s *Store) SetNotLoggedInHotkeys(p CyclePair) { s.notLoggedIn = p }
func (s *Store) NonTargetHotkeys() CyclePair       { return s.nonTarget }
func (s *Store) SetNonTargetHotkeys(p CyclePair)   { s.nonTarget = p }
func (s *Store) CloseAllHotkey() Binding           { return s.closeAll }
func (s *Store) SetCloseAllHotkey(b Binding)       { s.closeAll = b }

// SetProfileHotkeys replaces the externally supplied profile-switch bindings.
// They take part in conflict checks and registration but are never persisted.
func (s *Store) SetProfileHotkeys(profiles map[string]Binding) {
	s.profiles = maps.Clone(profiles)
	if s.profiles == nil {
		s.profiles = map[string]Binding{}
	}
}

// ProfileNames returns the profile names in sorted order.
func (s *Store) ProfileNames() []string {
	return slices.Sorted(maps.Keys(s.profiles))
}

// ProfileHotkey returns the binding of a profile.
func (s *Store) ProfileHotkey(name string) (Binding, bool) {
	b, ok := s.profiles[name]
	return b, ok
}

// Load replaces the store contents from settings. Malformed records are
// skipped and returned joined; every well-formed record is still applied.
// Profile bindings are left untouched.
func (s *Store) Load(settings Settings) error {
	profiles := s.profiles
	*s = *NewStore()
	s.profiles = profiles

	var errs []error
	readBinding := func(group, key string) (Binding, bool) {
		raw, ok := settings.Value(group, key)
		if !ok || strings.TrimSpace(raw) == "" {
			return Binding{}, false
		}
		b, err := ParseBinding(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", group, key, err))
			slog.Warn("[WARN-HOTKEY] skipping malformed binding", "group", group, "key", key, "error", err)
			return Binding{}, false
		}
		return b, true
	}

	if b, ok := readBinding(GroupHotkeys, KeySuspend); ok {
		s.suspend = b
	}

	for _, name := range settings.Keys(GroupCharacters) {
		if b, ok := readBinding(GroupCharacters, name); ok && b.Enabled {
			s.characters[name] = b
		}
	}

	for _, name := range settings.Keys(GroupCycleGroups) {
		raw, _ := settings.Value(GroupCycleGroups, name)
		g, err := ParseCycleGroup(name, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", GroupCycleGroups, name, err))
			slog.Warn("[WARN-HOTKEY] skipping malformed cycle group", "group", name, "error", err)
			continue
		}
		s.groups[name] = g
	}

	s.notLoggedIn.Forward, _ = readBinding(GroupNotLoggedIn, KeyForward)
	s.notLoggedIn.Backward, _ = readBinding(GroupNotLoggedIn, KeyBackward)
	s.nonTarget.Forward, _ = readBinding(GroupNonTarget, KeyForward)
	s.nonTarget.Backward, _ = readBinding(GroupNonTarget, KeyBackward)
	s.closeAll, _ = readBinding(GroupCloseAll, KeyCloseAll)

	return errors.Join(errs...)
}

// Save writes every persisted group to settings. Groups keyed by name are
// cleared first so removed entries do not linger.
func (s *Store) Save(settings Settings) {
	settings.SetValue(GroupHotkeys, KeySuspend, s.suspend.String())

	settings.ClearGroup(GroupCharacters)
	for _, name := range s.CharacterNames() {
		settings.SetValue(GroupCharacters, name, s.characters[name].String())
	}

	settings.ClearGroup(GroupCycleGroups)
	for _, name := range s.CycleGroupNames() {
		settings.SetValue(GroupCycleGroups, name, s.groups[name].String())
	}

	settings.SetValue(GroupNotLoggedIn, KeyForward, s.notLoggedIn.Forward.String())
	settings.SetValue(GroupNotLoggedIn, KeyBackward, s.notLoggedIn.Backward.String())
	settings.SetValue(GroupNonTarget, KeyForward, s.nonTarget.Forward.String())
	settings.SetValue(GroupNonTarget, KeyBackward, s.nonTarget.Backward.String())
	settings.SetValue(GroupCloseAll, KeyCloseAll, s.closeAll.String())
}
