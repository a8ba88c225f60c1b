package notify

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"eveswitch/internal/hotkeys"
)

type sent struct {
	title, message string
}

func captureNotifications(t *testing.T, err error) func() []sent {
	t.Helper()
	var (
		mu   sync.Mutex
		got  []sent
		orig = notifyFn
	)
	notifyFn = func(title, message, _ string) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, sent{title: title, message: message})
		return err
	}
	t.Cleanup(func() { notifyFn = orig })
	return func() []sent {
		mu.Lock()
		defer mu.Unlock()
		return append([]sent(nil), got...)
	}
}

func TestSuspendNotifications(t *testing.T) {
	get := captureNotifications(t, nil)
	n := New(true)

	n.HandleEvent(hotkeys.Event{Kind: hotkeys.EventSuspendedChanged, Suspended: true})
	n.Wait()
	n.HandleEvent(hotkeys.Event{Kind: hotkeys.EventSuspendedChanged})
	n.HandleEvent(hotkeys.Event{Kind: hotkeys.EventCharacterPressed, Name: "Alice"})
	n.Wait()

	got := get()
	if len(got) != 2 {
		t.Fatalf("notifications = %+v, want 2", got)
	}
	if got[0].title != "EVE Switch: Hotkeys suspended" || got[1].title != "EVE Switch: Hotkeys resumed" {
		t.Fatalf("titles = %q, %q", got[0].title, got[1].title)
	}
}

func TestDisabledNotifierIsSilent(t *testing.T) {
	get := captureNotifications(t, nil)
	n := New(false)
	n.HandleEvent(hotkeys.Event{Kind: hotkeys.EventSuspendedChanged, Suspended: true})
	n.Wait()
	if len(get()) != 0 {
		t.Fatal("disabled notifier sent a notification")
	}

	n.SetEnabled(true)
	n.HandleEvent(hotkeys.Event{Kind: hotkeys.EventSuspendedChanged, Suspended: true})
	n.Wait()
	if len(get()) != 1 {
		t.Fatal("re-enabled notifier stayed silent")
	}
}

func TestRegistrationFailures(t *testing.T) {
	get := captureNotifications(t, errors.New("no notification daemon"))
	n := New(true)

	n.RegistrationFailures(hotkeys.RebuildReport{})
	n.Wait()
	if len(get()) != 0 {
		t.Fatal("clean report produced a notification")
	}

	one := hotkeys.RebuildReport{Failures: []*hotkeys.RegistrationError{{
		Target:  hotkeys.Target{Category: hotkeys.CategoryCharacter, Name: "Alice"},
		Binding: hotkeys.Binding{Key: hotkeys.VKF1, Ctrl: true, Enabled: true},
	}}}
	n.RegistrationFailures(one)
	n.Wait()
	got := get()
	if len(got) != 1 || !strings.Contains(got[0].message, "Ctrl+F1 (Character: Alice)") {
		t.Fatalf("notifications = %+v", got)
	}

	many := hotkeys.RebuildReport{Failures: append(one.Failures, one.Failures[0])}
	n.RegistrationFailures(many)
	n.Wait()
	if got := get(); len(got) != 2 || !strings.Contains(got[1].message, "2 hotkeys") {
		t.Fatalf("notifications = %+v", got)
	}
}

func TestWorkerStoppedNotification(t *testing.T) {
	get := captureNotifications(t, nil)
	n := New(true)
	n.WorkerStopped("config-watcher")
	n.Wait()

	got := get()
	if len(got) != 1 || got[0].title != "EVE Switch: Background task stopped" {
		t.Fatalf("notifications = %+v", got)
	}
	if !strings.Contains(got[0].message, "config-watcher") || !strings.Contains(got[0].message, "eveswitch reload") {
		t.Fatalf("message = %q", got[0].message)
	}
}
