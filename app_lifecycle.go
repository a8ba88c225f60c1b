package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"eveswitch/internal/applog"
	"eveswitch/internal/capture"
	"eveswitch/internal/config"
	"eveswitch/internal/eventhub"
	"eveswitch/internal/hotkeys"
	"eveswitch/internal/ipc"
	"eveswitch/internal/msgloop"
	"eveswitch/internal/notify"
	"eveswitch/internal/settings"
	"eveswitch/internal/workerutil"
)

var (
	setupLoggerFn   = applog.Setup
	loadSettingsFn  = settings.Load
	newPipeServerFn = ipc.NewPipeServer
	newRegistrarFn  = func() (hotkeys.Registrar, error) {
		r, err := hotkeys.NewSystemRegistrar()
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	newForegroundFn = func() hotkeys.ForegroundLookup { return hotkeys.SystemForeground{} }
	newHookFn       = func() capture.Hook { return capture.NewLowLevelHook() }
	pipeNameFn      = ipc.DefaultPipeName
)

const shutdownWaitTimeout = 10 * time.Second

// run starts every component, blocks until ctx is cancelled or the message
// loop exits, then shuts down.
func (a *App) run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		a.shutdown()
		return err
	}
	select {
	case <-ctx.Done():
		slog.Info("[DEBUG-APP] shutdown requested")
	case <-a.loop.Done():
		slog.Warn("[WARN-APP] message loop exited unexpectedly")
	}
	a.shutdown()
	return nil
}

func (a *App) startup(ctx context.Context) error {
	cfg, err := config.EnsureFile(a.configPath)
	if err != nil {
		// Config failures are non-fatal; run with defaults.
		cfg = config.DefaultConfig()
		slog.Warn("[WARN-CONFIG] failed to load config, running with defaults", "path", a.configPath, "error", err)
	}
	a.setConfigSnapshot(cfg)

	logger, logErr := setupLoggerFn(applog.Options{
		Dir:   filepath.Dir(a.configPath),
		Level: cfg.SlogLevel(),
	})
	a.logger = logger
	if logErr != nil {
		slog.Warn("[WARN-LOG] log file unavailable, logging to stderr", "error", logErr)
	}
	for _, message := range config.ConsumeDefaultPathWarnings() {
		slog.Warn("[WARN-CONFIG] " + message)
	}

	registrar, err := newRegistrarFn()
	if err != nil {
		return fmt.Errorf("hotkey registrar: %w", err)
	}

	a.settingsFile = a.openSettings(cfg)
	store := hotkeys.NewStore()
	if err := store.Load(a.settingsFile); err != nil {
		slog.Warn("[WARN-SETTINGS] some binding records were skipped", "error", err)
	}
	store.SetProfileHotkeys(cfg.ProfileBindings())

	a.notifier = notify.New(cfg.Notifications)
	sinks := hotkeys.MultiSink{hotkeys.SinkFunc(logEvent), a.notifier}
	if cfg.EventStream.Enabled {
		a.hub = eventhub.NewHub(eventhub.HubOptions{
			Addr:  cfg.EventStream.Addr,
			State: a.stateSnapshot,
		})
		sinks = append(sinks, a.hub)
	}

	a.manager = hotkeys.NewManager(store, registrar, newForegroundFn(), sinks)
	a.coordinator = capture.NewCoordinator(newHookFn())
	a.loop = msgloop.New(msgloop.Options{
		OnHotkey: a.onHotkey,
		OnExit:   a.onLoopExit,
	})
	if err := a.loop.Start(); err != nil {
		return fmt.Errorf("start message loop: %w", err)
	}

	var report hotkeys.RebuildReport
	if err := a.loop.Do(func() {
		a.manager.SetOptions(cfg.HotkeyOptions())
		report = a.manager.RegisterHotkeys()
		a.publishState()
	}); err != nil {
		return fmt.Errorf("register hotkeys: %w", err)
	}
	a.reportRebuild(report)

	bgCtx, cancel := context.WithCancel(ctx)
	a.bgCancel = cancel

	if a.hub != nil {
		if err := a.hub.Start(bgCtx); err != nil {
			slog.Warn("[WARN-WS] event stream unavailable", "error", err)
		} else if a.logger != nil {
			hub := a.hub
			a.logger.Forward(func(level slog.Level, msg, _ string) {
				hub.BroadcastLog(level, msg)
			})
		}
	}

	a.pipeServer = newPipeServerFn(pipeNameFn(), ipc.ExecutorFunc(a.executeCommand))
	if err := a.pipeServer.Start(); err != nil {
		// Hotkeys still work; only remote control is lost.
		slog.Warn("[WARN-IPC] control pipe unavailable", "error", err)
	} else {
		slog.Info("[DEBUG-IPC] control pipe listening", "pipe", a.pipeServer.PipeName())
	}

	a.startWatcher(bgCtx, cfg)

	slog.Info("[DEBUG-APP] started",
		"config", a.configPath,
		"settings", a.settingsFile.Path(),
		"registered", report.Registered)
	return nil
}

// openSettings loads the bindings file. A file that cannot be parsed is
// replaced by an unbound empty file so a later save never overwrites it.
func (a *App) openSettings(cfg config.Config) *settings.File {
	path := cfg.ResolveSettingsPath(a.configPath)
	file, err := loadSettingsFn(path)
	if err == nil {
		return file
	}
	slog.Warn("[WARN-SETTINGS] failed to load bindings, starting empty", "path", path, "error", err)
	return settings.Empty()
}

func (a *App) startWatcher(ctx context.Context, cfg config.Config) {
	paths := []string{a.configPath, cfg.ResolveSettingsPath(a.configPath)}
	watcher, err := config.NewWatcher(config.DefaultDebounce, paths...)
	if err != nil {
		slog.Warn("[WARN-CONFIG] file watcher unavailable, use the reload command", "error", err)
		return
	}
	a.watcher = watcher
	workerutil.RunWithPanicRecovery(ctx, "config-watcher", &a.bgWG, func(ctx context.Context) {
		watcher.Run(ctx, a.onFilesChanged)
	}, workerutil.RecoveryOptions{
		IsShutdown: a.shuttingDown.Load,
		OnFatal:    a.onWorkerFatal,
	})
}

func (a *App) onWorkerFatal(worker string, _ int) {
	if a.notifier != nil {
		a.notifier.WorkerStopped(worker)
	}
}

func (a *App) onFilesChanged(changed []string) {
	if a.shuttingDown.Load() {
		return
	}
	slog.Info("[DEBUG-CONFIG] watched files changed, reloading", "paths", changed)
	if _, err := a.reload(); err != nil {
		slog.Warn("[WARN-CONFIG] reload after file change failed", "error", err)
	}
}

// onHotkey runs on the loop thread for every WM_HOTKEY.
func (a *App) onHotkey(id int32) {
	if a.manager == nil {
		return
	}
	if a.manager.Dispatch(id) {
		a.publishState()
	}
}

// onLoopExit runs on the loop thread on every exit path so registrations
// and the keyboard hook never outlive it.
func (a *App) onLoopExit() {
	if a.manager != nil {
		if err := a.manager.UnregisterHotkeys(); err != nil {
			slog.Warn("[WARN-HOTKEY] unregister on exit failed", "error", err)
		}
	}
	if a.coordinator != nil {
		if err := a.coordinator.Close(); err != nil {
			slog.Warn("[WARN-CAPTURE] hook release on exit failed", "error", err)
		}
	}
}

func (a *App) reportRebuild(report hotkeys.RebuildReport) {
	if len(report.Failures) > 0 || len(report.Shadowed) > 0 {
		slog.Warn("[WARN-HOTKEY] some bindings are inactive until the next rebuild",
			"failures", len(report.Failures),
			"shadowed", len(report.Shadowed))
	}
	if a.notifier != nil {
		a.notifier.RegistrationFailures(report)
	}
}

func (a *App) shutdown() {
	if !a.shuttingDown.CompareAndSwap(false, true) {
		return
	}
	if a.bgCancel != nil {
		a.bgCancel()
	}
	if !waitWithTimeout(a.bgWG.Wait, shutdownWaitTimeout) {
		slog.Warn("[WARN-APP] timed out waiting for background workers during shutdown")
	}
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			slog.Debug("[DEBUG-CONFIG] watcher close", "error", err)
		}
	}
	if a.pipeServer != nil {
		if err := a.pipeServer.Stop(); err != nil {
			slog.Warn("[WARN-IPC] control pipe stop failed", "error", err)
		}
	}
	if a.loop != nil {
		if err := a.loop.Stop(); err != nil {
			slog.Warn("[WARN-APP] message loop stop failed", "error", err)
		}
	}
	if a.logger != nil {
		a.logger.Forward(nil)
	}
	if a.hub != nil {
		if err := a.hub.Stop(); err != nil {
			slog.Warn("[WARN-WS] event stream stop failed", "error", err)
		}
	}
	if a.notifier != nil && !waitWithTimeout(a.notifier.Wait, shutdownWaitTimeout) {
		slog.Warn("[WARN-NOTIFY] timed out waiting for pending notifications")
	}
	slog.Info("[DEBUG-APP] stopped")
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			slog.Warn("[WARN-LOG] log file close failed", "error", err)
		}
	}
}

func logEvent(ev hotkeys.Event) {
	slog.Info("[HOTKEY] event", "kind", ev.Kind, "name", ev.Name, "suspended", ev.Suspended)
}

func waitWithTimeout(waitFn func(), timeout time.Duration) bool {
	// The waiting goroutine may outlive timeout when waitFn blocks; this is
	// only used on shutdown paths where eventual completion is expected.
	done := make(chan struct{})
	go func() {
		waitFn()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
