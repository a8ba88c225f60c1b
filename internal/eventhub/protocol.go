// Package eventhub streams hotkey dispatch events to local UI processes over
// WebSocket.
//
// # Wire protocol
//
// Every frame is a JSON text message with a "type" discriminator:
//
//   - "hello": sent once on connect with the current suspend state.
//   - "event": a hotkeys.Event produced by dispatch.
//   - "log": a forwarded warning or error log record.
//   - "error": a reply to a malformed client message.
//
// Clients may narrow the event stream with
// {"action":"subscribe","kinds":["character-pressed", ...]} and widen it
// again with {"action":"subscribe-all"}.
package eventhub

import (
	"encoding/json"
	"fmt"

	"eveswitch/internal/hotkeys"
)

const (
	typeHello = "hello"
	typeEvent = "event"
	typeLog   = "log"
	typeError = "error"

	subscribeAction    = "subscribe"
	subscribeAllAction = "subscribe-all"
)

// State is the snapshot sent to a client when it connects.
type State struct {
	Suspended  bool `json:"suspended"`
	Registered int  `json:"registered"`
	Aliases    int  `json:"aliases"`
}

type helloMsg struct {
	Type  string `json:"type"`
	State State  `json:"state"`
}

type eventMsg struct {
	Type  string        `json:"type"`
	Event hotkeys.Event `json:"event"`
}

type logMsg struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// clientMsg is the JSON payload for client subscription requests.
type clientMsg struct {
	Action string   `json:"action"`
	Kinds  []string `json:"kinds"`
}

func encodeHello(st State) ([]byte, error) {
	return marshal(helloMsg{Type: typeHello, State: st})
}

func encodeEvent(ev hotkeys.Event) ([]byte, error) {
	return marshal(eventMsg{Type: typeEvent, Event: ev})
}

func encodeLog(level, message string) ([]byte, error) {
	return marshal(logMsg{Type: typeLog, Level: level, Message: message})
}

func encodeError(message string) ([]byte, error) {
	return marshal(errorMsg{Type: typeError, Message: message})
}

func marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("eventhub: encode: %w", err)
	}
	return raw, nil
}
