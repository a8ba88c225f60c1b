package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"eveswitch/internal/ipc"
	"eveswitch/internal/singleinstance"
)

var version = "0.1.0"

var (
	sendFn    = ipc.Send
	tryLockFn = singleinstance.TryLock
)

// exitCodeError carries a non-zero exit code reported by the running instance.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	configPath string
	key        string
}

func (f *cliFlags) registerPersistent(fs *pflag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "path to config.yaml (default: per-user config directory)")
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:   "eveswitch",
		Short: "Global hotkeys for switching between EVE clients",
		Long: `eveswitch registers system-wide hotkeys for characters, cycle groups and
profiles, and reports each press on a local event stream.

Run without a subcommand to start the hotkey service. The other subcommands
control an instance that is already running.

Examples:
  eveswitch                                  # start the service
  eveswitch toggle                           # suspend or resume hotkeys
  eveswitch status                           # registrations, failures, shadowed bindings
  eveswitch bind character "Alice"           # press the chord to assign
  eveswitch bind close-all --key Ctrl+Alt+Q  # assign without capturing
  eveswitch unbind cycle-group fleet forward`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(cmd, flags)
		},
	}
	flags.registerPersistent(root.PersistentFlags())

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Start the hotkey service (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(cmd, flags)
		},
	})

	for _, c := range []struct {
		use, short, command string
	}{
		{"toggle", "Suspend or resume hotkeys", ipc.CommandToggleSuspend},
		{"suspend", "Suspend hotkeys (only the suspend hotkey stays active)", ipc.CommandSuspend},
		{"resume", "Resume hotkeys", ipc.CommandResume},
		{"reload", "Re-read config and bindings and re-register hotkeys", ipc.CommandReload},
		{"status", "Show registration status", ipc.CommandStatus},
		{"save", "Write the current bindings to the bindings file", ipc.CommandSave},
	} {
		command := c.command
		root.AddCommand(&cobra.Command{
			Use:   c.use,
			Short: c.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return forward(cmd, ipc.Request{Command: command})
			},
		})
	}

	bindCmd := &cobra.Command{
		Use:   "bind <target> [name] [direction]",
		Short: "Assign a chord to a binding, capturing it from the keyboard unless --key is given",
		Long: `Targets:
  suspend | close-all
  character <name>
  cycle-group <name> forward|backward
  not-logged-in forward|backward
  non-target forward|backward`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.key != "" {
				args = append(args, keyArgPrefix+flags.key)
			}
			if flags.key == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Press the new chord (Escape cancels)...")
			}
			return forward(cmd, ipc.Request{Command: ipc.CommandBind, Args: args})
		},
	}
	bindCmd.Flags().StringVar(&flags.key, "key", "", `chord to assign, e.g. "Ctrl+Shift+F3"`)
	root.AddCommand(bindCmd)

	root.AddCommand(&cobra.Command{
		Use:   "unbind <target> [name] [direction]",
		Short: "Remove the chord of a binding",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return forward(cmd, ipc.Request{Command: ipc.CommandUnbind, Args: args})
		},
	})

	return root
}

// runService starts the hotkey service in the foreground. A second
// instance prints the running instance's status instead.
func runService(cmd *cobra.Command, flags *cliFlags) error {
	lock, err := tryLockFn(singleinstance.DefaultMutexName())
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		slog.Info("[DEBUG-SINGLE] another instance is already running, querying status")
		fmt.Fprintln(cmd.ErrOrStderr(), "eveswitch is already running")
		return forward(cmd, ipc.Request{Command: ipc.CommandStatus})
	}
	if err != nil {
		// Continue without the guard; registrations would fail loudly anyway.
		slog.Warn("[DEBUG-SINGLE] lock creation failed, proceeding without single-instance guard", "error", err)
	}
	if lock != nil {
		defer func() {
			if releaseErr := lock.Release(); releaseErr != nil {
				slog.Warn("[DEBUG-SINGLE] lock release failed", "error", releaseErr)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewApp(flags.configPath).run(ctx)
}

// forward sends req to the running instance and relays its output.
func forward(cmd *cobra.Command, req ipc.Request) error {
	resp, err := sendFn("", req)
	if err != nil {
		if ipc.IsConnectionError(err) {
			return errors.New("eveswitch is not running")
		}
		return fmt.Errorf("%s: %w", req.Command, err)
	}
	relay(cmd.OutOrStdout(), resp.Stdout)
	relay(cmd.ErrOrStderr(), resp.Stderr)
	if resp.ExitCode != 0 {
		return &exitCodeError{code: resp.ExitCode}
	}
	return nil
}

func relay(w io.Writer, text string) {
	if text == "" {
		return
	}
	if _, err := io.WriteString(w, text); err != nil {
		slog.Debug("[DEBUG-IPC] relay output failed", "error", err)
	}
}
