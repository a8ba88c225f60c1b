package hotkeys

import (
	"log/slog"
	"slices"
	"strings"
)

// ForegroundLookup resolves the current foreground window to the base name
// of its owning process executable, e.g. "exefile.exe".
type ForegroundLookup interface {
	ForegroundProcessName() (string, error)
}

// ForegroundFunc adapts a function to ForegroundLookup.
type ForegroundFunc func() (string, error)

func (f ForegroundFunc) ForegroundProcessName() (string, error) { return f() }

// Options are the scalar settings that shape registration and dispatch.
type Options struct {
	Wildcard         bool
	FocusGating      bool
	AllowedProcesses []string
}

// Manager is the application-owned handle tying the binding store, the
// registry and dispatch together. It is single-threaded: every method must
// run on the message loop thread that owns the hotkey registrations.
type Manager struct {
	store      *Store
	registry   *Registry
	foreground ForegroundLookup
	sink       Sink

	opts       Options
	suspended  bool
	active     bool
	lastReport RebuildReport
}

// NewManager wires a manager. store and registrar are required; foreground
// may be nil when focus gating is never enabled, sink may be nil.
func NewManager(store *Store, registrar Registrar, foreground ForegroundLookup, sink Sink) *Manager {
	return &Manager{
		store:      store,
		registry:   NewRegistry(registrar),
		foreground: foreground,
		sink:       sink,
	}
}

func (m *Manager) Store() *Store       { return m.store }
func (m *Manager) Registry() *Registry { return m.registry }
func (m *Manager) Options() Options    { return m.opts }
func (m *Manager) Suspended() bool     { return m.suspended }
func (m *Manager) Active() bool        { return m.active }

// LastReport returns the report of the most recent rebuild.
func (m *Manager) LastReport() RebuildReport { return m.lastReport }

// RegisterHotkeys performs a full rebuild and marks the manager active so
// later edits rebuild automatically.
func (m *Manager) RegisterHotkeys() RebuildReport {
	m.active = true
	m.lastReport = m.registry.RegisterAll(m.store, RegisterOptions{
		Wildcard:  m.opts.Wildcard,
		Suspended: m.suspended,
	})
	slog.Debug("[DEBUG-HOTKEY] hotkeys rebuilt",
		"registered", m.lastReport.Registered,
		"aliases", m.lastReport.Aliases,
		"failures", len(m.lastReport.Failures),
		"shadowed", len(m.lastReport.Shadowed),
		"suspended", m.suspended)
	return m.lastReport
}

// UnregisterHotkeys releases every registration and marks the manager inactive.
func (m *Manager) UnregisterHotkeys() error {
	m.active = false
	m.lastReport = RebuildReport{}
	return m.registry.UnregisterAll()
}

func (m *Manager) rebuild() {
	if m.active {
		m.RegisterHotkeys()
	}
}

// Update applies fn to the store and rebuilds.
func (m *Manager) Update(fn func(*Store)) RebuildReport {
	fn(m.store)
	m.rebuild()
	return m.lastReport
}

// SetOptions replaces the options and rebuilds.
func (m *Manager) SetOptions(opts Options) {
	opts.AllowedProcesses = slices.Clone(opts.AllowedProcesses)
	m.opts = opts
	m.rebuild()
}

// SetSuspended switches the suspended state. While suspended only the
// suspend binding stays registered. A change rebuilds and emits an
// EventSuspendedChanged; setting the current state again does nothing.
func (m *Manager) SetSuspended(suspended bool) {
	if m.suspended == suspended {
		return
	}
	m.suspended = suspended
	m.rebuild()
	slog.Info("[HOTKEY] suspended state changed", "suspended", suspended)
	m.emit(Event{Kind: EventSuspendedChanged, Suspended: suspended})
}

// ToggleSuspended flips the suspended state.
func (m *Manager) ToggleSuspended() {
	m.SetSuspended(!m.suspended)
}

func (m *Manager) emit(ev Event) {
	if m.sink != nil {
		m.sink.HandleEvent(ev)
	}
}

// foregroundAllowed reports whether the foreground process is allow-listed.
// Lookup failures count as not allowed.
func (m *Manager) foregroundAllowed() bool {
	if m.foreground == nil {
		return false
	}
	name, err := m.foreground.ForegroundProcessName()
	if err != nil {
		slog.Debug("[DEBUG-HOTKEY] foreground process lookup failed", "error", err)
		return false
	}
	return slices.ContainsFunc(m.opts.AllowedProcesses, func(allowed string) bool {
		return strings.EqualFold(strings.TrimSpace(allowed), name)
	})
}
