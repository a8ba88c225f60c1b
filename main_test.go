package main

import (
	"bytes"
	"errors"
	"net"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"

	"eveswitch/internal/capture"
	"eveswitch/internal/hotkeys"
	"eveswitch/internal/ipc"
	"eveswitch/internal/singleinstance"
)

// NOTE: these tests replace sendFn/tryLockFn. Do not use t.Parallel() here.

func stubSend(t *testing.T, fn func(ipc.Request) (ipc.Response, error)) *[]ipc.Request {
	t.Helper()
	orig := sendFn
	t.Cleanup(func() { sendFn = orig })
	var sent []ipc.Request
	sendFn = func(_ string, req ipc.Request) (ipc.Response, error) {
		sent = append(sent, req)
		return fn(req)
	}
	return &sent
}

func executeRoot(args ...string) (stdout, stderr string, err error) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestControlCommandsForwardToRunningInstance(t *testing.T) {
	tests := []struct {
		args []string
		want ipc.Request
	}{
		{[]string{"toggle"}, ipc.Request{Command: ipc.CommandToggleSuspend}},
		{[]string{"suspend"}, ipc.Request{Command: ipc.CommandSuspend}},
		{[]string{"resume"}, ipc.Request{Command: ipc.CommandResume}},
		{[]string{"reload"}, ipc.Request{Command: ipc.CommandReload}},
		{[]string{"status"}, ipc.Request{Command: ipc.CommandStatus}},
		{[]string{"save"}, ipc.Request{Command: ipc.CommandSave}},
		{
			[]string{"bind", "character", "Alice", "--key", "Ctrl+F1"},
			ipc.Request{Command: ipc.CommandBind, Args: []string{"character", "Alice", "key=Ctrl+F1"}},
		},
		{
			[]string{"unbind", "cycle-group", "fleet", "backward"},
			ipc.Request{Command: ipc.CommandUnbind, Args: []string{"cycle-group", "fleet", "backward"}},
		},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			sent := stubSend(t, func(ipc.Request) (ipc.Response, error) {
				return ipc.Response{Stdout: "ok\n"}, nil
			})
			stdout, _, err := executeRoot(tt.args...)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if len(*sent) != 1 || !reflect.DeepEqual((*sent)[0], tt.want) {
				t.Fatalf("sent = %+v, want %+v", *sent, tt.want)
			}
			if !strings.HasSuffix(stdout, "ok\n") {
				t.Fatalf("stdout = %q", stdout)
			}
		})
	}
}

func TestBindWithoutKeyPromptsForChord(t *testing.T) {
	stubSend(t, func(ipc.Request) (ipc.Response, error) {
		return ipc.Response{Stdout: "Character: Alice bound to F1\n"}, nil
	})
	stdout, _, err := executeRoot("bind", "character", "Alice")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(stdout, "Press the new chord") {
		t.Fatalf("stdout = %q, want capture prompt first", stdout)
	}
}

func TestForwardRelaysFailure(t *testing.T) {
	stubSend(t, func(ipc.Request) (ipc.Response, error) {
		return ipc.Errorf("bind: cycle group \"fleet\" does not exist"), nil
	})
	_, stderr, err := executeRoot("bind", "cycle-group", "fleet", "forward", "--key", "F1")
	var exitErr *exitCodeError
	if !errors.As(err, &exitErr) || exitErr.code != 1 {
		t.Fatalf("Execute() error = %v, want exit code 1", err)
	}
	if !strings.Contains(stderr, "does not exist") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestForwardReportsNotRunning(t *testing.T) {
	stubSend(t, func(ipc.Request) (ipc.Response, error) {
		return ipc.Response{}, &net.OpError{Op: "dial", Err: errors.New("refused")}
	})
	_, _, err := executeRoot("status")
	if err == nil || err.Error() != "eveswitch is not running" {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestForwardWrapsOtherErrors(t *testing.T) {
	stubSend(t, func(ipc.Request) (ipc.Response, error) {
		return ipc.Response{}, errors.New("frame exceeds 65536 bytes")
	})
	_, _, err := executeRoot("status")
	if err == nil || !strings.HasPrefix(err.Error(), "status: ") {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestControlCommandsRejectExtraArgs(t *testing.T) {
	sent := stubSend(t, func(ipc.Request) (ipc.Response, error) { return ipc.Response{}, nil })
	if _, _, err := executeRoot("status", "extra"); err == nil {
		t.Fatal("Execute() expected argument error")
	}
	if _, _, err := executeRoot("bind"); err == nil {
		t.Fatal("bind without target expected argument error")
	}
	if len(*sent) != 0 {
		t.Fatalf("sent = %+v, want nothing", *sent)
	}
}

func TestRunWhileAnotherInstanceRunsShowsStatus(t *testing.T) {
	origLock := tryLockFn
	t.Cleanup(func() { tryLockFn = origLock })
	tryLockFn = func(string) (*singleinstance.Lock, error) {
		return nil, singleinstance.ErrAlreadyRunning
	}
	sent := stubSend(t, func(ipc.Request) (ipc.Response, error) {
		return ipc.Response{Stdout: "suspended: false\n"}, nil
	})

	stdout, stderr, err := executeRoot("run")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(stderr, "already running") {
		t.Fatalf("stderr = %q", stderr)
	}
	if stdout != "suspended: false\n" {
		t.Fatalf("stdout = %q", stdout)
	}
	if len(*sent) != 1 || (*sent)[0].Command != ipc.CommandStatus {
		t.Fatalf("sent = %+v, want one status request", *sent)
	}
}

func TestParseBindArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    bindRequest
		wantErr bool
	}{
		{"suspend", []string{"suspend"}, bindRequest{target: hotkeys.Target{Category: hotkeys.CategorySuspend}}, false},
		{"close all with key", []string{"close-all", "key=Ctrl+Q"}, bindRequest{target: hotkeys.Target{Category: hotkeys.CategoryCloseAll}, spec: "Ctrl+Q"}, false},
		{"character", []string{"character", "Bob Smith"}, bindRequest{target: hotkeys.Target{Category: hotkeys.CategoryCharacter, Name: "Bob Smith"}}, false},
		{"cycle group", []string{"cycle-group", "fleet", "Backward"}, bindRequest{target: hotkeys.Target{Category: hotkeys.CategoryCycleGroup, Name: "fleet", Direction: hotkeys.Backward}}, false},
		{"not logged in", []string{"not-logged-in", "forward"}, bindRequest{target: hotkeys.Target{Category: hotkeys.CategoryNotLoggedIn, Direction: hotkeys.Forward}}, false},
		{"non target", []string{"non-target", "backward"}, bindRequest{target: hotkeys.Target{Category: hotkeys.CategoryNonTarget, Direction: hotkeys.Backward}}, false},
		{"empty", nil, bindRequest{}, true},
		{"only key", []string{"key=F1"}, bindRequest{}, true},
		{"unknown", []string{"window"}, bindRequest{}, true},
		{"profile is read only", []string{"profile", "mining"}, bindRequest{}, true},
		{"character without name", []string{"character"}, bindRequest{}, true},
		{"character blank name", []string{"character", "  "}, bindRequest{}, true},
		{"suspend with extra", []string{"suspend", "x"}, bindRequest{}, true},
		{"bad direction", []string{"non-target", "sideways"}, bindRequest{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBindArgs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseBindArgs(%q) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("parseBindArgs(%q) = %+v, want %+v", tt.args, got, tt.want)
			}
		})
	}
}

func TestStoreBindingRoundTrip(t *testing.T) {
	store := hotkeys.NewStore()
	store.SetCycleGroup(hotkeys.CycleGroup{Name: "fleet", Members: []string{"Alice"}})
	b := hotkeys.Binding{Key: hotkeys.VKF3, Alt: true, Enabled: true}

	targets := []hotkeys.Target{
		{Category: hotkeys.CategorySuspend},
		{Category: hotkeys.CategoryCharacter, Name: "Alice"},
		{Category: hotkeys.CategoryCycleGroup, Name: "fleet", Direction: hotkeys.Backward},
		{Category: hotkeys.CategoryNotLoggedIn, Direction: hotkeys.Forward},
		{Category: hotkeys.CategoryNonTarget, Direction: hotkeys.Backward},
		{Category: hotkeys.CategoryCloseAll},
	}
	for _, target := range targets {
		t.Run(target.Label(), func(t *testing.T) {
			if err := storeBinding(store, target, b); err != nil {
				t.Fatalf("storeBinding() error = %v", err)
			}
			if got := storedBinding(store, target); got != b {
				t.Fatalf("storedBinding() = %+v, want %+v", got, b)
			}
			if owner := conflictFor(store, target, b); owner != "" {
				t.Fatalf("conflictFor(own binding) = %q, want none", owner)
			}
			if err := storeBinding(store, target, hotkeys.Binding{}); err != nil {
				t.Fatalf("clear error = %v", err)
			}
		})
	}

	if err := storeBinding(store, hotkeys.Target{Category: hotkeys.CategoryCycleGroup, Name: "missing", Direction: hotkeys.Forward}, b); err == nil {
		t.Fatal("storeBinding(missing group) expected error")
	}
	if err := storeBinding(store, hotkeys.Target{Category: hotkeys.CategoryProfile, Name: "p"}, b); err == nil {
		t.Fatal("storeBinding(profile) expected error")
	}
	if _, ok := store.CharacterHotkey("Alice"); ok {
		t.Fatal("clearing a character binding must remove the entry")
	}
}

func TestSessionChordDropsForeignChanges(t *testing.T) {
	id := uuid.New()
	b := hotkeys.Binding{Key: hotkeys.VKF3, Ctrl: true, Enabled: true}

	got, ok := sessionChord(capture.Change{SessionID: id, Binding: b, Label: "Ctrl+F3"}, id)
	if !ok || got != b {
		t.Fatalf("sessionChord(own) = %+v, %t", got, ok)
	}
	if _, ok := sessionChord(capture.Change{SessionID: uuid.New(), Binding: b}, id); ok {
		t.Fatal("sessionChord accepted a change from another session")
	}
}
