package hotkeys

import "fmt"

// EventKind discriminates the notifications produced by dispatch.
type EventKind int

const (
	EventCharacterPressed EventKind = iota + 1
	EventCycleForward
	EventCycleBackward
	EventNotLoggedInForward
	EventNotLoggedInBackward
	EventNonTargetForward
	EventNonTargetBackward
	EventSuspendedChanged
	EventProfileSwitch
	EventCloseAll
)

var eventKindNames = map[EventKind]string{
	EventCharacterPressed:    "character-pressed",
	EventCycleForward:        "cycle-forward-pressed",
	EventCycleBackward:       "cycle-backward-pressed",
	EventNotLoggedInForward:  "not-logged-in-cycle-forward",
	EventNotLoggedInBackward: "not-logged-in-cycle-backward",
	EventNonTargetForward:    "non-target-cycle-forward",
	EventNonTargetBackward:   "non-target-cycle-backward",
	EventSuspendedChanged:    "suspended-state-changed",
	EventProfileSwitch:       "profile-switch-requested",
	EventCloseAll:            "close-all-requested",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// MarshalText renders the kind name for JSON payloads.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (k *EventKind) UnmarshalText(text []byte) error {
	kind, ok := ParseEventKind(string(text))
	if !ok {
		return fmt.Errorf("unknown event kind %q", text)
	}
	*k = kind
	return nil
}

// ParseEventKind looks up a kind by its wire name.
func ParseEventKind(name string) (EventKind, bool) {
	for kind, n := range eventKindNames {
		if n == name {
			return kind, true
		}
	}
	return 0, false
}

// Event is one routed hotkey notification.
// Name carries the character, cycle group or profile name when relevant.
type Event struct {
	Kind      EventKind `json:"kind"`
	Name      string    `json:"name,omitempty"`
	Suspended bool      `json:"suspended"`
}

// Sink receives routed events on the dispatching thread. Implementations
// must not block.
type Sink interface {
	HandleEvent(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) HandleEvent(ev Event) { f(ev) }

// MultiSink fans an event out to every non-nil sink in order.
type MultiSink []Sink

func (m MultiSink) HandleEvent(ev Event) {
	for _, s := range m {
		if s != nil {
			s.HandleEvent(ev)
		}
	}
}

// eventFor maps a dispatched target to its notification.
func eventFor(t Target) (Event, bool) {
	switch t.Category {
	case CategoryCharacter:
		return Event{Kind: EventCharacterPressed, Name: t.Name}, true
	case CategoryCycleGroup:
		if t.Direction == Backward {
			return Event{Kind: EventCycleBackward, Name: t.Name}, true
		}
		return Event{Kind: EventCycleForward, Name: t.Name}, true
	case CategoryNotLoggedIn:
		if t.Direction == Backward {
			return Event{Kind: EventNotLoggedInBackward}, true
		}
		return Event{Kind: EventNotLoggedInForward}, true
	case CategoryNonTarget:
		if t.Direction == Backward {
			return Event{Kind: EventNonTargetBackward}, true
		}
		return Event{Kind: EventNonTargetForward}, true
	case CategoryCloseAll:
		return Event{Kind: EventCloseAll}, true
	case CategoryProfile:
		return Event{Kind: EventProfileSwitch, Name: t.Name}, true
	}
	return Event{}, false
}
