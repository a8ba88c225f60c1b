package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"eveswitch/internal/capture"
	"eveswitch/internal/hotkeys"
	"eveswitch/internal/ipc"
)

// keyArgPrefix carries an explicit chord ("key=Ctrl+F1") instead of an
// interactive capture.
const keyArgPrefix = "key="

var (
	captureTimeout      = 10 * time.Second
	capturePollInterval = 50 * time.Millisecond
)

var errCaptureCancelled = errors.New("capture cancelled")

// bindRequest is a parsed bind/unbind argument list.
type bindRequest struct {
	target hotkeys.Target
	spec   string
}

// parseBindArgs accepts
//
//	suspend | close-all
//	character <name>
//	cycle-group <name> forward|backward
//	not-logged-in forward|backward
//	non-target forward|backward
//
// optionally followed by key=<chord>.
func parseBindArgs(args []string) (bindRequest, error) {
	var req bindRequest
	positional := make([]string, 0, len(args))
	for _, arg := range args {
		if spec, ok := strings.CutPrefix(arg, keyArgPrefix); ok {
			req.spec = spec
			continue
		}
		positional = append(positional, arg)
	}
	if len(positional) == 0 {
		return req, errors.New("missing binding target")
	}

	kind, rest := positional[0], positional[1:]
	want := func(n int) error {
		if len(rest) != n {
			return fmt.Errorf("%s: expected %d argument(s), got %d", kind, n, len(rest))
		}
		return nil
	}
	direction := func(raw string) (hotkeys.Direction, error) {
		switch strings.ToLower(raw) {
		case "forward":
			return hotkeys.Forward, nil
		case "backward":
			return hotkeys.Backward, nil
		}
		return hotkeys.NoDirection, fmt.Errorf("direction must be forward or backward, got %q", raw)
	}

	var err error
	switch kind {
	case hotkeys.CategorySuspend.String():
		req.target = hotkeys.Target{Category: hotkeys.CategorySuspend}
		err = want(0)
	case hotkeys.CategoryCloseAll.String():
		req.target = hotkeys.Target{Category: hotkeys.CategoryCloseAll}
		err = want(0)
	case hotkeys.CategoryCharacter.String():
		if err = want(1); err == nil {
			req.target = hotkeys.Target{Category: hotkeys.CategoryCharacter, Name: rest[0]}
		}
	case hotkeys.CategoryCycleGroup.String():
		if err = want(2); err == nil {
			req.target = hotkeys.Target{Category: hotkeys.CategoryCycleGroup, Name: rest[0]}
			req.target.Direction, err = direction(rest[1])
		}
	case hotkeys.CategoryNotLoggedIn.String():
		if err = want(1); err == nil {
			req.target = hotkeys.Target{Category: hotkeys.CategoryNotLoggedIn}
			req.target.Direction, err = direction(rest[0])
		}
	case hotkeys.CategoryNonTarget.String():
		if err = want(1); err == nil {
			req.target = hotkeys.Target{Category: hotkeys.CategoryNonTarget}
			req.target.Direction, err = direction(rest[0])
		}
	case hotkeys.CategoryProfile.String():
		err = errors.New("profile bindings are read from the config file")
	default:
		err = fmt.Errorf("unknown binding target %q", kind)
	}
	if err == nil && req.target.Category == hotkeys.CategoryCharacter && strings.TrimSpace(req.target.Name) == "" {
		err = errors.New("character name is empty")
	}
	return req, err
}

// storedBinding returns the binding currently stored for t.
func storedBinding(s *hotkeys.Store, t hotkeys.Target) hotkeys.Binding {
	switch t.Category {
	case hotkeys.CategorySuspend:
		return s.SuspendHotkey()
	case hotkeys.CategoryCharacter:
		b, _ := s.CharacterHotkey(t.Name)
		return b
	case hotkeys.CategoryCycleGroup:
		g, _ := s.CycleGroup(t.Name)
		if t.Direction == hotkeys.Backward {
			return g.Backward
		}
		return g.Forward
	case hotkeys.CategoryNotLoggedIn:
		return pick(s.NotLoggedInHotkeys(), t.Direction)
	case hotkeys.CategoryNonTarget:
		return pick(s.NonTargetHotkeys(), t.Direction)
	case hotkeys.CategoryCloseAll:
		return s.CloseAllHotkey()
	}
	return hotkeys.Binding{}
}

func pick(p hotkeys.CyclePair, d hotkeys.Direction) hotkeys.Binding {
	if d == hotkeys.Backward {
		return p.Backward
	}
	return p.Forward
}

func withDirection(p hotkeys.CyclePair, d hotkeys.Direction, b hotkeys.Binding) hotkeys.CyclePair {
	if d == hotkeys.Backward {
		p.Backward = b
	} else {
		p.Forward = b
	}
	return p
}

// storeBinding writes b for t. An unbound b removes a character entry.
func storeBinding(s *hotkeys.Store, t hotkeys.Target, b hotkeys.Binding) error {
	switch t.Category {
	case hotkeys.CategorySuspend:
		s.SetSuspendHotkey(b)
	case hotkeys.CategoryCharacter:
		if b.Key == 0 {
			s.RemoveCharacterHotkey(t.Name)
		} else {
			s.SetCharacterHotkey(t.Name, b)
		}
	case hotkeys.CategoryCycleGroup:
		g, ok := s.CycleGroup(t.Name)
		if !ok {
			return fmt.Errorf("cycle group %q does not exist", t.Name)
		}
		if t.Direction == hotkeys.Backward {
			g.Backward = b
		} else {
			g.Forward = b
		}
		s.SetCycleGroup(g)
	case hotkeys.CategoryNotLoggedIn:
		s.SetNotLoggedInHotkeys(withDirection(s.NotLoggedInHotkeys(), t.Direction, b))
	case hotkeys.CategoryNonTarget:
		s.SetNonTargetHotkeys(withDirection(s.NonTargetHotkeys(), t.Direction, b))
	case hotkeys.CategoryCloseAll:
		s.SetCloseAllHotkey(b)
	default:
		return fmt.Errorf("%s bindings cannot be edited", t.Category)
	}
	return nil
}

// conflictFor returns the label of another owner of b, or "".
func conflictFor(s *hotkeys.Store, t hotkeys.Target, b hotkeys.Binding) string {
	label := s.FindConflict(b, "")
	if label == t.Label() {
		return ""
	}
	return label
}

// bind assigns a chord to a target, either the explicit key= chord or one
// captured through the keyboard hook, then persists the bindings file.
func (a *App) bind(args []string) ipc.Response {
	req, err := parseBindArgs(args)
	if err != nil {
		return ipc.Errorf("bind: %v", err)
	}

	var binding hotkeys.Binding
	if req.spec != "" {
		binding, err = hotkeys.ParseSpec(req.spec)
	} else {
		binding, err = a.captureChord(req.target)
	}
	if errors.Is(err, errCaptureCancelled) {
		return ipc.Response{ExitCode: 1, Stdout: "capture cancelled, binding unchanged\n"}
	}
	if err != nil {
		return ipc.Errorf("bind: %v", err)
	}

	owner, err := a.applyBinding(req.target, binding)
	if err != nil {
		return ipc.Errorf("bind: %v", err)
	}
	var out strings.Builder
	if owner != "" {
		fmt.Fprintf(&out, "warning: %s is also used by %s\n", binding.Label(), owner)
	}
	fmt.Fprintf(&out, "%s bound to %s\n", req.target.Label(), binding.Label())
	return ipc.Response{Stdout: out.String()}
}

func (a *App) unbind(args []string) ipc.Response {
	req, err := parseBindArgs(args)
	if err != nil {
		return ipc.Errorf("unbind: %v", err)
	}
	if req.spec != "" {
		return ipc.Errorf("unbind: key= is not accepted")
	}
	if _, err := a.applyBinding(req.target, hotkeys.Binding{}); err != nil {
		return ipc.Errorf("unbind: %v", err)
	}
	return ipc.Response{Stdout: fmt.Sprintf("%s unbound\n", req.target.Label())}
}

// applyBinding stores b, rebuilds and saves. A conflict does not block the
// edit; the other owner's label is returned so the caller can report it.
func (a *App) applyBinding(t hotkeys.Target, b hotkeys.Binding) (string, error) {
	var (
		owner    string
		applyErr error
	)
	if err := a.loop.Do(func() {
		store := a.manager.Store()
		owner = conflictFor(store, t, b)
		a.manager.Update(func(s *hotkeys.Store) {
			applyErr = storeBinding(s, t, b)
		})
		if applyErr != nil {
			return
		}
		a.publishState()
		store.Save(a.settingsFile)
		applyErr = a.settingsFile.Save()
	}); err != nil {
		return "", err
	}
	if applyErr != nil {
		return "", applyErr
	}
	if owner != "" {
		slog.Warn("[WARN-HOTKEY] binding conflicts with another owner", "owner", t.Label(), "binding", b.Label(), "conflictsWith", owner)
	}
	slog.Info("[DEBUG-CAPTURE] binding updated", "owner", t.Label(), "binding", b.Label())
	return owner, nil
}

// captureChord runs one capture session and returns the first chord
// pressed. Escape cancels; so does another session taking over.
func (a *App) captureChord(t hotkeys.Target) (hotkeys.Binding, error) {
	changes := make(chan capture.Change, 1)
	var (
		session  *capture.Session
		startErr error
	)
	if err := a.loop.Do(func() {
		session = a.coordinator.NewSession(func(ch capture.Change) {
			select {
			case changes <- ch:
			default:
			}
		})
		session.SetHotkey(storedBinding(a.manager.Store(), t))
		startErr = session.FocusIn()
	}); err != nil {
		return hotkeys.Binding{}, err
	}
	if startErr != nil {
		return hotkeys.Binding{}, fmt.Errorf("start capture: %w", startErr)
	}
	slog.Info("[DEBUG-CAPTURE] waiting for chord", "owner", t.Label(), "session", session.ID())

	stop := func() {
		if err := a.loop.Do(session.FocusOut); err != nil {
			slog.Debug("[DEBUG-CAPTURE] stop after loop exit", "error", err)
		}
	}

	deadline := time.NewTimer(captureTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(capturePollInterval)
	defer ticker.Stop()

	for {
		select {
		case ch := <-changes:
			b, ok := sessionChord(ch, session.ID())
			if !ok {
				slog.Debug("[DEBUG-CAPTURE] dropped change from another session", "session", ch.SessionID)
				continue
			}
			stop()
			return b, nil
		case <-deadline.C:
			stop()
			return hotkeys.Binding{}, fmt.Errorf("no key pressed within %s", captureTimeout)
		case <-ticker.C:
			var capturing bool
			if err := a.loop.Do(func() { capturing = session.Capturing() }); err != nil {
				return hotkeys.Binding{}, err
			}
			if !capturing {
				return hotkeys.Binding{}, errCaptureCancelled
			}
		}
	}
}

// sessionChord accepts ch only when it came from the session with id.
func sessionChord(ch capture.Change, id uuid.UUID) (hotkeys.Binding, bool) {
	if ch.SessionID != id {
		return hotkeys.Binding{}, false
	}
	return ch.Binding, true
}
