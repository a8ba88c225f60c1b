package hotkeys

import "log/slog"

// Dispatch handles one hotkey notification carrying id and reports whether
// it was consumed. A false result lets the key combination reach whatever
// has focus.
//
// Aliases resolve to their canonical id first. The suspend binding toggles
// suspension. While suspended everything else is swallowed. With focus
// gating on, nothing fires unless an allow-listed process is in front.
// Otherwise the owning category's event is emitted.
func (m *Manager) Dispatch(id int32) bool {
	canonicalID, known := m.registry.Canonical(id)

	if known {
		if suspendID, ok := m.registry.IDFor(Target{Category: CategorySuspend}); ok && canonicalID == suspendID {
			m.ToggleSuspended()
			return true
		}
	}

	if m.suspended {
		return true
	}

	if m.opts.FocusGating && !m.foregroundAllowed() {
		return false
	}

	hk, ok := m.registry.Resolve(canonicalID)
	if !ok {
		slog.Debug("[DEBUG-HOTKEY] no owner for hotkey id", "id", id)
		return false
	}
	ev, ok := eventFor(hk.Target)
	if !ok {
		return false
	}
	slog.Debug("[DEBUG-HOTKEY] dispatch", "id", id, "canonicalID", canonicalID, "event", ev.Kind.String(), "name", ev.Name)
	m.emit(ev)
	return true
}
