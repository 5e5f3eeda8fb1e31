// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fleetctl/sm/internal/activity"
	"github.com/fleetctl/sm/internal/api"
	"github.com/fleetctl/sm/internal/arbiter"
	"github.com/fleetctl/sm/internal/config"
	"github.com/fleetctl/sm/internal/events"
	"github.com/fleetctl/sm/internal/health"
	"github.com/fleetctl/sm/internal/monitor"
	"github.com/fleetctl/sm/internal/notifier"
	"github.com/fleetctl/sm/internal/pane"
	"github.com/fleetctl/sm/internal/provider"
	"github.com/fleetctl/sm/internal/queue"
	"github.com/fleetctl/sm/internal/session"
	"github.com/fleetctl/sm/internal/store"
	"github.com/fleetctl/sm/internal/wake"
)

// activityBufferCapacity bounds how many recent tool-activity lines the
// ParentWakeScheduler's digest can draw on per session.
const activityBufferCapacity = 200

// reconcileInterval is how often the OutputMonitor is asked to start
// watching newly-created sessions and stop watching dead ones.
const reconcileInterval = 2 * time.Second

// App wires every daemon subsystem together and owns their lifecycle.
type App struct {
	mu sync.RWMutex

	configPath string
	version    string
	config     *config.Config

	eventBus events.EventBus
	registry *session.Registry
	queue    *queue.Queue
	arbiter  *arbiter.Arbiter
	monitor  *monitor.Manager
	wake     *wake.Scheduler
	health   *health.Builder
	activity *activity.Buffers
	notify   *notifier.LogNotifier

	configWatcher *config.Watcher
	apiServer     *api.Server

	done     chan struct{}
	stopOnce sync.Once
}

// Options holds the daemon's startup options, typically sourced from
// command-line flags.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	Version    string
}

// New loads configuration and wires every subsystem, but does not start
// any background loops or listeners — call Run or Start/Initialize for that.
func New(opts Options) (*App, error) {
	loader := config.NewLoader()

	configPath := opts.ConfigPath
	if configPath == "" {
		found, err := loader.FindConfig()
		if err != nil {
			return nil, err
		}
		configPath = found
	}

	ctx := context.Background()
	cfg, err := loader.LoadWithDefaults(ctx, configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}

	app := &App{
		configPath: configPath,
		version:    opts.Version,
		config:     cfg,
		done:       make(chan struct{}),
	}

	if err := app.wire(ctx); err != nil {
		return nil, err
	}

	return app, nil
}

// wire constructs every subsystem in the order required to break the
// session/queue/monitor/arbiter construction cycle: the queue needs a
// session lookup and the registry needs a queuer, so the registry and
// queue are built in two steps with Registry.SetQueuer bridging them;
// likewise the monitor needs the arbiter and the queue needs to be handed
// to the monitor afterward as its idle sink via Manager.SetIdleSink.
func (app *App) wire(ctx context.Context) error {
	cfg := app.config

	paneCtl := pane.NewTmuxController()

	app.eventBus = events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: 1000,
		HistoryMaxAge:    24 * time.Hour,
	})
	app.eventBus.SetDefaultScope(cfg.Project.Name)

	st := store.New[session.Session](cfg.State.Path)
	app.registry = session.New(paneCtl, st, app.eventBus)

	providers := provider.NewRegistry()
	app.notify = notifier.NewLogNotifier()

	q, err := queue.New(cfg.Queue.DBPath, paneCtl, providers, app.registry, queue.Config{
		WorkerPollInterval: parseDuration(cfg.Queue.WorkerPollInterval),
		MaxAttempts:        cfg.Queue.MaxAttempts,
		BackoffStart:       parseDuration(cfg.Queue.BackoffStart),
		BackoffCap:         parseDuration(cfg.Queue.BackoffCap),
	})
	if err != nil {
		return fmt.Errorf("open message queue: %w", err)
	}
	app.queue = q
	app.registry.SetQueuer(q)

	app.arbiter = arbiter.New(q, &stopNotifyAdapter{queue: q, notify: app.notify})

	app.monitor = monitor.New(monitor.Config{
		CaptureInterval:    parseDuration(cfg.Monitor.CaptureInterval),
		IdleCooldown:       parseDuration(cfg.Monitor.IdleCooldown),
		PermissionDebounce: parseDuration(cfg.Monitor.PermissionDebounce),
		StableWindow:       parseDuration(cfg.Monitor.StableWindow),
	}, paneCtl, app.registry, providers, app.arbiter, app.notify)
	app.monitor.SetIdleSink(q)

	app.activity = activity.NewBuffers(activityBufferCapacity)
	app.wake = wake.New(wake.Config{
		PollInterval: parseDuration(cfg.Wake.PollInterval),
	}, q, app.registry, app.activity)

	app.health = health.New(app.registry, q, st, app.monitor, app.notify, paneCtl)

	app.apiServer = api.NewServer(api.ServerConfig{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		TLSCert: cfg.Server.TLSCert,
		TLSKey:  cfg.Server.TLSKey,
	}, api.Dependencies{
		Registry: app.registry,
		Queue:    q,
		Arbiter:  app.arbiter,
		Activity: app.activity,
		EventBus: app.eventBus,
		Health:   app.health,
		Wake:     app.wake,
	})

	watcher, err := config.NewWatcher(app.configPath)
	if err != nil {
		log.Printf("config hot-reload disabled: %v", err)
	} else {
		app.configWatcher = watcher
	}

	return nil
}

// parseDuration parses s, returning the zero Duration (which every
// Config.WithDefaults treats as "use the default") on an empty or
// malformed value rather than failing startup over a cosmetic typo —
// config.Validator already rejects malformed duration fields up front.
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// stopNotifyAdapter satisfies arbiter.StopNotifier by enqueuing an
// urgent-mode message to the armed sender and mirroring the same event to
// the log notifier, matching spec.md 4.5's "emit a stop notification
// addressed to that sender".
type stopNotifyAdapter struct {
	queue  *queue.Queue
	notify *notifier.LogNotifier
}

func (s *stopNotifyAdapter) NotifyStop(targetID, senderID, senderName string) {
	text := fmt.Sprintf("%s finished its turn", targetID)
	if _, err := s.queue.Enqueue(context.Background(), senderID, text, queue.ModeUrgent); err != nil {
		log.Printf("stop-notify enqueue to %s failed: %v", senderID, err)
	}
	_ = s.notify.Send(context.Background(), notifier.Event{
		SessionID: targetID,
		Kind:      "stop_notify",
		Message:   text,
	})
}

// Initialize prepares the daemon to run: it reconciles persisted sessions
// against live panes, dropping those whose pane is gone. A failed
// reconciliation is logged and startup continues; the health check
// reports an unreadable state file.
func (app *App) Initialize(ctx context.Context) error {
	if err := app.registry.Reconcile(ctx); err != nil {
		log.Printf("session reconciliation failed: %v", err)
	}
	return nil
}

// Start launches every background loop and the API listener, returning
// once they are all running.
func (app *App) Start(ctx context.Context) error {
	app.mu.RLock()
	cfg := app.config
	app.mu.RUnlock()

	app.monitor.Reconcile(ctx)
	go app.reconcileLoop(ctx)

	go app.wake.Run(ctx)

	if app.configWatcher != nil {
		app.configWatcher.Start(ctx, app.onConfigReload)
	}

	go func() {
		log.Printf("API server starting on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("API server error: %v", err)
		}
	}()

	return nil
}

func (app *App) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.monitor.Reconcile(ctx)
		}
	}
}

// onConfigReload applies a reloaded config. Structural fields (server
// address, state/queue paths) take effect only on restart; everything
// else is cosmetic already-applied-at-construction cadence tuning, so a
// hot-reload here is limited to surfacing the new document for
// introspection and warning about fields that were ignored.
func (app *App) onConfigReload(cfg *config.Config, err error) {
	if err != nil {
		log.Printf("config reload failed, keeping previous config: %v", err)
		return
	}

	app.mu.Lock()
	prev := app.config
	app.config = cfg
	app.mu.Unlock()

	if cfg.Server.Host != prev.Server.Host || cfg.Server.Port != prev.Server.Port {
		log.Printf("config reload: server address change requires a daemon restart to take effect")
	}
	if cfg.State.Path != prev.State.Path {
		log.Printf("config reload: state.path change requires a daemon restart to take effect")
	}
	if cfg.Queue.DBPath != prev.Queue.DBPath {
		log.Printf("config reload: message_queue.db_path change requires a daemon restart to take effect")
	}
	log.Printf("config reloaded from %s", app.configPath)
}

// Run initializes, starts, and blocks until a shutdown signal arrives.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("context cancelled, shutting down...")
	case <-app.done:
		log.Printf("shutdown requested...")
	}

	return app.Shutdown(context.Background())
}

// Shutdown gracefully stops every subsystem, in roughly the reverse order
// they were started.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if app.apiServer != nil {
		if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("error shutting down API server: %v", err)
		}
	}

	if app.configWatcher != nil {
		if err := app.configWatcher.Close(); err != nil {
			log.Printf("error closing config watcher: %v", err)
		}
	}

	if app.monitor != nil {
		app.monitor.Stop()
	}

	if app.queue != nil {
		if err := app.queue.Close(); err != nil {
			log.Printf("error closing message queue: %v", err)
		}
	}

	if app.eventBus != nil {
		if err := app.eventBus.Close(); err != nil {
			log.Printf("error closing event bus: %v", err)
		}
	}

	log.Println("shutdown complete")
	return nil
}

// Stop signals Run to begin shutdown. Safe to call multiple times.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}
