package hotkeys

import (
	"errors"
	"fmt"
	"testing"
)

type chord struct {
	mods Modifier
	key  VKey
}

type registerCall struct {
	id   int32
	mods Modifier
	key  VKey
}

// fakeRegistrar mimics the OS: one live id per chord, ids must be unique.
type fakeRegistrar struct {
	live   map[int32]chord
	held   map[chord]int32
	reject map[chord]bool

	registerCalls   []registerCall
	unregisterCalls []int32
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{
		live:   map[int32]chord{},
		held:   map[chord]int32{},
		reject: map[chord]bool{},
	}
}

func (f *fakeRegistrar) RegisterHotKey(id int32, mods Modifier, key VKey) error {
	f.registerCalls = append(f.registerCalls, registerCall{id: id, mods: mods, key: key})
	c := chord{mods: mods &^ ModNoRepeat, key: key}
	if f.reject[c] {
		return errors.New("rejected by fake")
	}
	if _, dup := f.live[id]; dup {
		return fmt.Errorf("id %d already in use", id)
	}
	if _, taken := f.held[c]; taken {
		return errors.New("hot key is already registered")
	}
	f.live[id] = c
	f.held[c] = id
	return nil
}

func (f *fakeRegistrar) UnregisterHotKey(id int32) error {
	f.unregisterCalls = append(f.unregisterCalls, id)
	c, ok := f.live[id]
	if !ok {
		return fmt.Errorf("id %d not registered", id)
	}
	delete(f.live, id)
	delete(f.held, c)
	return nil
}

// chordOf returns the live chord of id.
func (f *fakeRegistrar) chordOf(t *testing.T, id int32) chord {
	t.Helper()
	c, ok := f.live[id]
	if !ok {
		t.Fatalf("id %d is not live", id)
	}
	return c
}

type eventRecorder struct {
	events []Event
}

func (r *eventRecorder) HandleEvent(ev Event) { r.events = append(r.events, ev) }

// emptyStore returns a store with the suspend binding disabled.
func emptyStore() *Store {
	s := NewStore()
	s.SetSuspendHotkey(Binding{})
	return s
}
