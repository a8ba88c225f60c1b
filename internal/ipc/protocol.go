package ipc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"eveswitch/internal/userutil"
)

// pipeEnvVar overrides the control pipe name. Values must match
// pipeNamePattern for the current platform.
const pipeEnvVar = "EVESWITCH_PIPE"

// Control commands understood by the running instance.
const (
	CommandToggleSuspend = "toggle-suspend"
	CommandSuspend       = "suspend"
	CommandResume        = "resume"
	CommandReload        = "reload"
	CommandStatus        = "status"
	CommandSave          = "save"
	CommandBind          = "bind"
	CommandUnbind        = "unbind"
)

// Request is a single control command sent by a second process.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Response is the result of a control command.
type Response struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// Errorf builds a failed response.
func Errorf(format string, args ...any) Response {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n") + "\n"
	return Response{ExitCode: 1, Stderr: msg}
}

// CommandExecutor handles a control request and returns a response.
type CommandExecutor interface {
	Execute(req Request) Response
}

// ExecutorFunc adapts a function to CommandExecutor.
type ExecutorFunc func(req Request) Response

func (f ExecutorFunc) Execute(req Request) Response { return f(req) }

// DefaultPipeName returns the pipe path to use. If EVESWITCH_PIPE is set and
// passes pattern validation, its value is used; otherwise a per-user default
// is constructed from the current username.
func DefaultPipeName() string {
	if v, ok := trustedPipeNameFromEnv(); ok {
		return v
	}

	return defaultPipeName(userutil.Current())
}

func trustedPipeNameFromEnv() (string, bool) {
	value := strings.TrimSpace(os.Getenv(pipeEnvVar))
	if value == "" {
		return "", false
	}
	if !pipeNamePattern.MatchString(value) {
		slog.Warn("[WARN-IPC] pipe override rejected: value does not match allowed pattern", "env", pipeEnvVar, "value", value)
		return "", false
	}
	return value, true
}

func encodeRequest(req Request) ([]byte, error) {
	return json.Marshal(req)
}

func decodeRequest(raw []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, err
	}
	req.Command = strings.TrimSpace(req.Command)
	if req.Args == nil {
		req.Args = []string{}
	}
	return req, nil
}

func encodeResponse(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}

func decodeResponse(raw []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
