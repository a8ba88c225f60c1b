package hotkeys

import "fmt"

// FindConflict returns the owner label of the first enabled stored binding
// whose key and modifiers equal candidate, or "" when none does. A disabled
// candidate never conflicts. excludeProfile skips the named profile binding
// so a profile can be validated against the rest of the set.
//
// Search order: suspend, characters, cycle groups (forward then backward),
// not-logged-in cycle, non-target cycle, close-all, profiles.
func (s *Store) FindConflict(candidate Binding, excludeProfile string) string {
	if !candidate.Enabled {
		return ""
	}
	for _, owner := range s.owners() {
		if owner.target.Category == CategoryProfile && excludeProfile != "" && owner.target.Name == excludeProfile {
			continue
		}
		if owner.binding == candidate {
			return owner.target.Label()
		}
	}
	return ""
}

// HasConflict reports whether FindConflict would return a label.
func (s *Store) HasConflict(candidate Binding, excludeProfile string) bool {
	return s.FindConflict(candidate, excludeProfile) != ""
}

type ownedBinding struct {
	target  Target
	binding Binding
}

// owners lists every stored binding with its owner in registration order.
// Disabled bindings are included; callers filter.
func (s *Store) owners() []ownedBinding {
	out := make([]ownedBinding, 0, 8+len(s.characters)+2*len(s.groups)+len(s.profiles))
	out = append(out, ownedBinding{Target{Category: CategorySuspend}, s.suspend})
	for _, name := range s.CharacterNames() {
		out = append(out, ownedBinding{Target{Category: CategoryCharacter, Name: name}, s.characters[name]})
	}
	for _, name := range s.CycleGroupNames() {
		g := s.groups[name]
		out = append(out,
			ownedBinding{Target{Category: CategoryCycleGroup, Name: name, Direction: Forward}, g.Forward},
			ownedBinding{Target{Category: CategoryCycleGroup, Name: name, Direction: Backward}, g.Backward},
		)
	}
	out = append(out,
		ownedBinding{Target{Category: CategoryNotLoggedIn, Direction: Forward}, s.notLoggedIn.Forward},
		ownedBinding{Target{Category: CategoryNotLoggedIn, Direction: Backward}, s.notLoggedIn.Backward},
		ownedBinding{Target{Category: CategoryNonTarget, Direction: Forward}, s.nonTarget.Forward},
		ownedBinding{Target{Category: CategoryNonTarget, Direction: Backward}, s.nonTarget.Backward},
		ownedBinding{Target{Category: CategoryCloseAll}, s.closeAll},
	)
	for _, name := range s.ProfileNames() {
		out = append(out, ownedBinding{Target{Category: CategoryProfile, Name: name}, s.profiles[name]})
	}
	return out
}

// Category identifies which kind of binding owns a registration.
type Category int

const (
	CategorySuspend Category = iota + 1
	CategoryCharacter
	CategoryCycleGroup
	CategoryNotLoggedIn
	CategoryNonTarget
	CategoryCloseAll
	CategoryProfile
)

func (c Category) String() string {
	switch c {
	case CategorySuspend:
		return "suspend"
	case CategoryCharacter:
		return "character"
	case CategoryCycleGroup:
		return "cycle-group"
	case CategoryNotLoggedIn:
		return "not-logged-in"
	case CategoryNonTarget:
		return "non-target"
	case CategoryCloseAll:
		return "close-all"
	case CategoryProfile:
		return "profile"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Direction is the stepping direction of a cycle binding.
type Direction int

const (
	NoDirection Direction = iota
	Forward
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "Forward"
	case Backward:
		return "Backward"
	default:
		return ""
	}
}

// Target identifies the owner of a binding.
type Target struct {
	Category  Category
	Name      string
	Direction Direction
}

// Label returns the human-readable owner label used in conflict reports.
func (t Target) Label() string {
	switch t.Category {
	case CategorySuspend:
		return "Suspend/Resume Hotkey"
	case CategoryCharacter:
		return "Character: " + t.Name
	case CategoryCycleGroup:
		return fmt.Sprintf("Cycle Group '%s' (%s)", t.Name, t.Direction)
	case CategoryNotLoggedIn:
		return fmt.Sprintf("Not Logged In Cycle (%s)", t.Direction)
	case CategoryNonTarget:
		return fmt.Sprintf("Non-EVE Cycle (%s)", t.Direction)
	case CategoryCloseAll:
		return "Close All Clients"
	case CategoryProfile:
		return "Profile: " + t.Name
	default:
		return t.Category.String()
	}
}
