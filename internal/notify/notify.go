// Package notify shows desktop notifications for suspend state changes and
// registration problems.
package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/beeep"

	"eveswitch/internal/hotkeys"
)

const appName = "EVE Switch"

const maxMessageLen = 200

// notifyFn is a test seam.
var notifyFn = beeep.Notify

// Notifier sends desktop notifications. It implements hotkeys.Sink and is
// safe for concurrent use. Delivery happens off the calling goroutine since
// the platform backends may spawn processes.
type Notifier struct {
	enabled atomic.Bool
	wg      sync.WaitGroup
}

// New creates a Notifier.
func New(enabled bool) *Notifier {
	n := &Notifier{}
	n.enabled.Store(enabled)
	return n
}

// SetEnabled turns notifications on or off.
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled.Store(enabled)
}

// HandleEvent notifies on suspend/resume and ignores every other event.
func (n *Notifier) HandleEvent(ev hotkeys.Event) {
	if ev.Kind != hotkeys.EventSuspendedChanged {
		return
	}
	if ev.Suspended {
		n.notify("Hotkeys suspended", "Only the suspend hotkey stays active.")
		return
	}
	n.notify("Hotkeys resumed", "All hotkeys are active again.")
}

// RegistrationFailures reports hotkeys the OS refused. No-op for a clean report.
func (n *Notifier) RegistrationFailures(report hotkeys.RebuildReport) {
	switch len(report.Failures) {
	case 0:
		return
	case 1:
		f := report.Failures[0]
		n.notify("Hotkey unavailable", fmt.Sprintf("%s (%s) is in use by another application.", f.Binding.Label(), f.Target.Label()))
	default:
		n.notify("Hotkeys unavailable", fmt.Sprintf("%d hotkeys could not be registered. See the log for details.", len(report.Failures)))
	}
}

// WorkerStopped reports a background worker abandoned after repeated panics.
func (n *Notifier) WorkerStopped(worker string) {
	n.notify("Background task stopped", fmt.Sprintf("%s stopped after repeated errors. Use \"eveswitch reload\" after editing files.", worker))
}

// Wait blocks until pending notifications have been handed to the OS.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) notify(title, message string) {
	if !n.enabled.Load() {
		return
	}
	if len(message) > maxMessageLen {
		message = message[:maxMessageLen] + "..."
	}
	n.wg.Go(func() {
		if err := notifyFn(appName+": "+title, message, ""); err != nil {
			slog.Debug("[DEBUG-NOTIFY] notification failed", "title", title, "error", err)
		}
	})
}
