package main

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"eveswitch/internal/config"
	"eveswitch/internal/hotkeys"
	"eveswitch/internal/ipc"
)

// executeCommand serves one control request from a second process. It runs
// on a pipe connection goroutine and marshals all hotkey state access onto
// the message loop.
func (a *App) executeCommand(req ipc.Request) ipc.Response {
	if a.loop == nil || a.manager == nil {
		return ipc.Errorf("eveswitch is starting up")
	}

	switch req.Command {
	case ipc.CommandToggleSuspend:
		return a.setSuspended(func(current bool) bool { return !current })
	case ipc.CommandSuspend:
		return a.setSuspended(func(bool) bool { return true })
	case ipc.CommandResume:
		return a.setSuspended(func(bool) bool { return false })
	case ipc.CommandReload:
		report, err := a.reload()
		if err != nil {
			return ipc.Errorf("reload: %v", err)
		}
		return ipc.Response{Stdout: fmt.Sprintf("reloaded: %d hotkeys registered\n", report.Registered)}
	case ipc.CommandStatus:
		return a.status()
	case ipc.CommandSave:
		if err := a.saveSettings(); err != nil {
			return ipc.Errorf("save: %v", err)
		}
		return ipc.Response{Stdout: "saved\n"}
	case ipc.CommandBind:
		return a.bind(req.Args)
	case ipc.CommandUnbind:
		return a.unbind(req.Args)
	default:
		return ipc.Errorf("unknown command %q", req.Command)
	}
}

func (a *App) setSuspended(next func(current bool) bool) ipc.Response {
	var suspended bool
	if err := a.loop.Do(func() {
		a.manager.SetSuspended(next(a.manager.Suspended()))
		suspended = a.manager.Suspended()
		a.publishState()
	}); err != nil {
		return ipc.Errorf("%v", err)
	}
	if suspended {
		return ipc.Response{Stdout: "hotkeys suspended\n"}
	}
	return ipc.Response{Stdout: "hotkeys active\n"}
}

// reload re-reads the config and the bindings file and rebuilds every
// registration. A config that fails to parse keeps the current settings.
func (a *App) reload() (hotkeys.RebuildReport, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		slog.Warn("[WARN-CONFIG] config reload failed, keeping current config", "path", a.configPath, "error", err)
		cfg = a.getConfigSnapshot()
	}
	file, err := loadSettingsFn(cfg.ResolveSettingsPath(a.configPath))
	if err != nil {
		return hotkeys.RebuildReport{}, fmt.Errorf("load bindings: %w", err)
	}

	previous := a.getConfigSnapshot()
	a.setConfigSnapshot(cfg)
	if a.logger != nil {
		a.logger.SetLevel(cfg.SlogLevel())
	}
	if a.notifier != nil {
		a.notifier.SetEnabled(cfg.Notifications)
	}
	if cfg.EventStream != previous.EventStream {
		slog.Warn("[WARN-CONFIG] event_stream changes take effect after restart")
	}

	var (
		report  hotkeys.RebuildReport
		loadErr error
	)
	if err := a.loop.Do(func() {
		a.settingsFile = file
		opts := cfg.HotkeyOptions()
		if !sameOptions(a.manager.Options(), opts) {
			a.manager.SetOptions(opts)
		}
		report = a.manager.Update(func(s *hotkeys.Store) {
			loadErr = s.Load(file)
			s.SetProfileHotkeys(cfg.ProfileBindings())
		})
		a.publishState()
	}); err != nil {
		return hotkeys.RebuildReport{}, err
	}
	if loadErr != nil {
		slog.Warn("[WARN-SETTINGS] some binding records were skipped", "error", loadErr)
	}
	a.reportRebuild(report)
	slog.Info("[DEBUG-CONFIG] reloaded", "registered", report.Registered, "aliases", report.Aliases)
	return report, nil
}

func sameOptions(a, b hotkeys.Options) bool {
	return a.Wildcard == b.Wildcard &&
		a.FocusGating == b.FocusGating &&
		slices.Equal(a.AllowedProcesses, b.AllowedProcesses)
}

func (a *App) status() ipc.Response {
	var out strings.Builder
	if err := a.loop.Do(func() {
		report := a.manager.LastReport()
		fmt.Fprintf(&out, "suspended: %t\n", a.manager.Suspended())
		fmt.Fprintf(&out, "registered: %d\n", len(a.manager.Registry().Registered()))
		fmt.Fprintf(&out, "aliases: %d\n", a.manager.Registry().AliasCount())
		fmt.Fprintf(&out, "ids remaining: %d\n", a.manager.Registry().IDsRemaining())
		fmt.Fprintf(&out, "failures: %d\n", len(report.Failures))
		for _, f := range report.Failures {
			fmt.Fprintf(&out, "  %s (%s): %v\n", f.Target.Label(), f.Binding.Label(), f.Err)
		}
		fmt.Fprintf(&out, "shadowed: %d\n", len(report.Shadowed))
		for _, s := range report.Shadowed {
			fmt.Fprintf(&out, "  %s (%s) is shadowed by %s\n", s.Target.Label(), s.Binding.Label(), s.Owner.Label())
		}
		if a.settingsFile != nil {
			fmt.Fprintf(&out, "settings: %s\n", a.settingsFile.Path())
		}
	}); err != nil {
		return ipc.Errorf("%v", err)
	}
	if a.hub != nil && a.hub.URL() != "" {
		fmt.Fprintf(&out, "events: %s\n", a.hub.URL())
	}
	return ipc.Response{Stdout: out.String()}
}

// saveSettings flushes the store to the bindings file.
func (a *App) saveSettings() error {
	var saveErr error
	if err := a.loop.Do(func() {
		a.manager.Store().Save(a.settingsFile)
		saveErr = a.settingsFile.Save()
	}); err != nil {
		return err
	}
	return saveErr
}
