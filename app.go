package main

import (
	"context"
	"sync"
	"sync/atomic"

	"eveswitch/internal/applog"
	"eveswitch/internal/capture"
	"eveswitch/internal/config"
	"eveswitch/internal/eventhub"
	"eveswitch/internal/hotkeys"
	"eveswitch/internal/ipc"
	"eveswitch/internal/msgloop"
	"eveswitch/internal/notify"
	"eveswitch/internal/settings"
)

// App owns every long-lived handle of a running instance.
//
// Thread ownership:
//   - manager, coordinator and settingsFile are touched only on the message
//     loop thread (inside loop.Do or a loop callback).
//   - cfg is guarded by cfgMu; always go through getConfigSnapshot.
//   - state is written on the loop thread and read by the event hub.
type App struct {
	configPath string

	cfgMu sync.RWMutex
	cfg   config.Config

	logger *applog.Logger

	loop         *msgloop.Loop
	manager      *hotkeys.Manager
	coordinator  *capture.Coordinator
	settingsFile *settings.File

	hub        *eventhub.Hub
	pipeServer *ipc.PipeServer
	notifier   *notify.Notifier
	watcher    *config.Watcher

	state atomic.Pointer[eventhub.State]

	shuttingDown atomic.Bool
	bgCancel     context.CancelFunc
	bgWG         sync.WaitGroup
}

// NewApp creates an app bound to configPath. Nothing is started until run.
func NewApp(configPath string) *App {
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	return &App{configPath: configPath}
}

// getConfigSnapshot returns a deep-copied config protected by cfgMu.
func (a *App) getConfigSnapshot() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return config.Clone(a.cfg)
}

// setConfigSnapshot stores a deep-copied config protected by cfgMu.
func (a *App) setConfigSnapshot(cfg config.Config) {
	a.cfgMu.Lock()
	a.cfg = config.Clone(cfg)
	a.cfgMu.Unlock()
}

// stateSnapshot feeds the event hub hello frame.
func (a *App) stateSnapshot() eventhub.State {
	if st := a.state.Load(); st != nil {
		return *st
	}
	return eventhub.State{}
}

// publishState refreshes the hub snapshot. Loop thread only.
func (a *App) publishState() {
	if a.manager == nil {
		return
	}
	registry := a.manager.Registry()
	a.state.Store(&eventhub.State{
		Suspended:  a.manager.Suspended(),
		Registered: len(registry.Registered()),
		Aliases:    registry.AliasCount(),
	})
}
