package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

const (
	// FirstHotkeyID is the first id handed out by the allocator.
	FirstHotkeyID int32 = 1000

	// maxHotkeyID is the upper bound for application-defined hotkey IDs (Win32).
	// Ids are never reused, so every rebuild draws from the same 48152 ids;
	// a wildcard rebuild takes up to 8 per unmodified binding. Only a
	// restart resets the allocator. See Registry.IDsRemaining.
	maxHotkeyID int32 = 0xBFFF
)

var (
	// ErrRegistration marks a binding the OS refused to register.
	ErrRegistration = errors.New("hotkey registration failed")

	// ErrIDSpaceExhausted is returned once every application hotkey id was used.
	ErrIDSpaceExhausted = errors.New("hotkey ID range exhausted")

	// ErrUnsupported is returned by registrars on platforms without global hotkeys.
	ErrUnsupported = fmt.Errorf("global hotkeys: %w", errors.ErrUnsupported)
)

// Registrar binds and releases OS-level hotkeys on the calling thread.
type Registrar interface {
	RegisterHotKey(id int32, mods Modifier, key VKey) error
	UnregisterHotKey(id int32) error
}

// RegisteredHotkey is one canonical live registration.
type RegisteredHotkey struct {
	ID      int32
	Target  Target
	Binding Binding
}

// RegistrationError reports a binding that stays inert until the next rebuild.
type RegistrationError struct {
	Target  Target
	Binding Binding
	Err     error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register %s (%s): %v", e.Target.Label(), e.Binding.Label(), e.Err)
}

func (e *RegistrationError) Unwrap() []error { return []error{ErrRegistration, e.Err} }

// Shadowed records an enabled binding that was not registered because an
// earlier binding in the same rebuild already owns the identical combination.
type Shadowed struct {
	Target  Target
	Owner   Target
	Binding Binding
}

// RebuildReport summarizes one full rebuild.
type RebuildReport struct {
	Registered int
	Aliases    int
	Failures   []*RegistrationError
	Shadowed   []Shadowed
}

// Err joins every registration failure, or returns nil.
func (r RebuildReport) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// RegisterOptions controls a rebuild.
type RegisterOptions struct {
	// Wildcard also registers every additional-modifier variant as an alias.
	Wildcard bool
	// Suspended registers only the suspend binding.
	Suspended bool
}

// Registry owns the hotkey id namespace and the live registration table.
// It is not safe for concurrent use; every call must happen on the thread
// whose message queue receives the hotkey notifications.
type Registry struct {
	registrar Registrar
	nextID    int32

	canonical map[int32]RegisteredHotkey
	order     []int32
	aliases   map[int32]int32
	byTarget  map[Target]int32
}

// NewRegistry creates an empty registry on top of registrar.
func NewRegistry(registrar Registrar) *Registry {
	return &Registry{
		registrar: registrar,
		nextID:    FirstHotkeyID,
		canonical: map[int32]RegisteredHotkey{},
		aliases:   map[int32]int32{},
		byTarget:  map[Target]int32{},
	}
}

// RegisterAll unregisters everything and registers every enabled binding of
// store. Failures are logged and reported but never abort the rebuild.
//
// Canonical bindings are registered first in the fixed order suspend,
// characters, cycle groups, not-logged-in, non-target, close-all, profiles.
// Wildcard aliases are attempted afterwards in the same order. Unlike
// interleaving each binding's aliases after its canonical registration, an
// explicit Ctrl+F1 binding therefore wins over an alias of a plain F1.
func (r *Registry) RegisterAll(store *Store, opts RegisterOptions) RebuildReport {
	if err := r.UnregisterAll(); err != nil {
		slog.Warn("[WARN-HOTKEY] unregister before rebuild reported errors", "error", err)
	}

	var report RebuildReport
	owners := store.owners()
	if opts.Suspended {
		owners = owners[:1]
	}

	chordOwner := map[Binding]Target{}
	for _, owner := range owners {
		b := owner.binding
		if !b.Enabled {
			continue
		}
		if prev, taken := chordOwner[b]; taken {
			report.Shadowed = append(report.Shadowed, Shadowed{Target: owner.target, Owner: prev, Binding: b})
			slog.Warn("[WARN-HOTKEY] binding is shadowed by an identical earlier binding and will not fire",
				"owner", owner.target.Label(), "shadowedBy", prev.Label(), "binding", b.Label())
			continue
		}

		id, err := r.register(b.Modifiers(), b.Key)
		if err != nil {
			regErr := &RegistrationError{Target: owner.target, Binding: b, Err: err}
			report.Failures = append(report.Failures, regErr)
			slog.Warn("[WARN-HOTKEY] failed to register hotkey", "owner", owner.target.Label(), "binding", b.Label(), "error", err)
			continue
		}
		chordOwner[b] = owner.target
		r.canonical[id] = RegisteredHotkey{ID: id, Target: owner.target, Binding: b}
		r.order = append(r.order, id)
		r.byTarget[owner.target] = id
		report.Registered++
		slog.Debug("[DEBUG-HOTKEY] registered hotkey", "id", id, "owner", owner.target.Label(), "binding", b.Label())
	}

	if opts.Wildcard {
		for _, id := range r.order {
			report.Aliases += r.registerAliases(id)
		}
	}
	return report
}

// wildcardSubsets is the fixed attempt order for alias expansion.
var wildcardSubsets = [...]Modifier{
	ModControl,
	ModAlt,
	ModShift,
	ModControl | ModAlt,
	ModControl | ModShift,
	ModAlt | ModShift,
	ModControl | ModAlt | ModShift,
}

func (r *Registry) registerAliases(canonicalID int32) int {
	hk := r.canonical[canonicalID]
	required := hk.Binding.Modifiers()
	registered := 0
	for _, extra := range wildcardSubsets {
		if extra&required != 0 {
			continue
		}
		id, err := r.register(required|extra, hk.Binding.Key)
		if err != nil {
			slog.Debug("[DEBUG-HOTKEY] wildcard alias not registered", "canonicalID", canonicalID, "modifiers", required|extra, "error", err)
			continue
		}
		r.aliases[id] = canonicalID
		registered++
	}
	return registered
}

// IDsRemaining reports how many ids the allocator can still hand out.
func (r *Registry) IDsRemaining() int {
	return max(int(maxHotkeyID)-int(r.nextID)+1, 0)
}

func (r *Registry) register(mods Modifier, key VKey) (int32, error) {
	if r.nextID < 0 || r.nextID > maxHotkeyID {
		return 0, fmt.Errorf("%w (next ID=%d)", ErrIDSpaceExhausted, r.nextID)
	}
	id := r.nextID
	r.nextID++
	if err := r.registrar.RegisterHotKey(id, mods|ModNoRepeat, key); err != nil {
		return 0, err
	}
	return id, nil
}

// UnregisterAll releases every canonical and alias registration and clears
// the tables. The tables are cleared even when the OS reports errors.
func (r *Registry) UnregisterAll() error {
	var errs []error
	ids := make([]int32, 0, len(r.canonical)+len(r.aliases))
	ids = append(ids, r.order...)
	for id := range r.aliases {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if err := r.registrar.UnregisterHotKey(id); err != nil {
			errs = append(errs, fmt.Errorf("unregister hotkey %d: %w", id, err))
		}
	}

	clear(r.canonical)
	clear(r.aliases)
	clear(r.byTarget)
	r.order = r.order[:0]
	return errors.Join(errs...)
}

// Canonical maps an alias id to its canonical id. Canonical ids map to
// themselves; unknown ids report false.
func (r *Registry) Canonical(id int32) (int32, bool) {
	if canonicalID, ok := r.aliases[id]; ok {
		return canonicalID, true
	}
	_, ok := r.canonical[id]
	return id, ok
}

// Resolve returns the canonical registration behind id, following aliases.
func (r *Registry) Resolve(id int32) (RegisteredHotkey, bool) {
	canonicalID, ok := r.Canonical(id)
	if !ok {
		return RegisteredHotkey{}, false
	}
	hk, ok := r.canonical[canonicalID]
	return hk, ok
}

// IDFor returns the canonical id registered for target.
func (r *Registry) IDFor(target Target) (int32, bool) {
	id, ok := r.byTarget[target]
	return id, ok
}

// Registered returns the canonical registrations in registration order.
func (r *Registry) Registered() []RegisteredHotkey {
	out := make([]RegisteredHotkey, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.canonical[id])
	}
	return out
}

// AliasesOf returns the alias ids of a canonical id in ascending order.
func (r *Registry) AliasesOf(canonicalID int32) []int32 {
	var out []int32
	for alias, c := range r.aliases {
		if c == canonicalID {
			out = append(out, alias)
		}
	}
	slices.Sort(out)
	return out
}

// AliasCount returns the number of live alias registrations.
func (r *Registry) AliasCount() int { return len(r.aliases) }
