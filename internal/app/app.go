// Package app wires the relay together: config, logging, storage, source
// client, cursor, registry, telegram sender, broadcaster, relay, scheduler.
// Everything is passed explicitly; there are no package-level singletons.
package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"restockbot/internal/broadcast"
	"restockbot/internal/config"
	"restockbot/internal/cursor"
	"restockbot/internal/poller"
	"restockbot/internal/registry"
	"restockbot/internal/relay"
	"restockbot/internal/scheduler"
	"restockbot/internal/source"
	"restockbot/internal/storage"
	"restockbot/internal/transport/telegram"
	logx "restockbot/pkg/logx"
)

const (
	defaultInterval     = "@every 30s"
	defaultCycleTimeout = 2 * time.Minute
	defaultCursorKey    = "relay/cursor.json"
	defaultRegistryKey  = "relay/subscribers.json"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	store storage.Store
	relay *relay.Relay
	sched *scheduler.Scheduler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New loads the config and builds the full pipeline. Construction fails fast;
// once Start succeeds, runtime failures degrade instead of exiting.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	// Storage (optional)
	var store storage.Store
	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			logSvc.Close()
			return nil, err
		}
		st, err := storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			logSvc.Close()
			return nil, err
		}
		store = st
		if store != nil {
			log.Info("storage enabled", logx.String("driver", cfg.Storage.Driver))
		}
	}
	if store == nil {
		log.Warn("storage disabled; cursor will cold-start on every boot")
	}

	fail := func(err error) (*App, error) {
		if store != nil {
			_ = store.Close()
		}
		logSvc.Close()
		return nil, err
	}

	// Source client
	srcTimeout, err := config.ParseDurationOrDefault("source.request_timeout", cfg.Source.RequestTimeout, 10*time.Second)
	if err != nil {
		return fail(err)
	}
	src, err := source.New(source.Config{
		BaseURL:   cfg.Source.BaseURL,
		APIKey:    cfg.Source.APIKey,
		Table:     cfg.Source.Table,
		PageLimit: cfg.Source.PageLimit,
		Timeout:   srcTimeout,
	})
	if err != nil {
		return fail(err)
	}

	// Cursor
	grace, err := config.ParseDurationOrDefault("cursor.grace", cfg.Cursor.Grace, cursor.DefaultGrace)
	if err != nil {
		return fail(err)
	}
	cursorKey := cfg.Cursor.Key
	if strings.TrimSpace(cursorKey) == "" {
		cursorKey = defaultCursorKey
	}
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 10*time.Second)
	cur := cursor.Load(loadCtx, store, cursorKey, grace, cursor.Options{
		IDWindow:        cfg.Cursor.IDWindow,
		SignatureWindow: cfg.Cursor.SignatureWindow,
	}, log.With(logx.String("comp", "cursor")))
	cancelLoad()

	pol := poller.New(src, cur, store, cursorKey, log.With(logx.String("comp", "poller")))

	// Registry
	registryKey := cfg.Registry.Key
	if strings.TrimSpace(registryKey) == "" {
		registryKey = defaultRegistryKey
	}
	reg := registry.New(store, registryKey, log.With(logx.String("comp", "registry")))

	// Telegram sender
	tgTimeout, err := config.ParseDurationOrDefault("telegram.request_timeout", cfg.Telegram.RequestTimeout, 15*time.Second)
	if err != nil {
		return fail(err)
	}
	sender, err := telegram.New(telegram.Config{
		Token:          cfg.Telegram.Token,
		RequestTimeout: tgTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return fail(err)
	}

	// Broadcaster + relay
	sendDelay, err := config.ParseDurationOrDefault("relay.send_delay", cfg.Relay.SendDelay, broadcast.DefaultSendDelay)
	if err != nil {
		return fail(err)
	}
	caster := broadcast.New(sender, sendDelay, log.With(logx.String("comp", "broadcast")))
	rel := relay.New(pol, reg, caster, log.With(logx.String("comp", "relay")))

	// Scheduler
	interval := cfg.Relay.Interval
	if strings.TrimSpace(interval) == "" {
		interval = defaultInterval
	}
	cycleTimeout, err := config.ParseDurationOrDefault("relay.cycle_timeout", cfg.Relay.CycleTimeout, defaultCycleTimeout)
	if err != nil {
		return fail(err)
	}
	sched, err := scheduler.New(interval, cycleTimeout, rel.Cycle, log.With(logx.String("comp", "scheduler")))
	if err != nil {
		return fail(err)
	}

	return &App{
		cfgm:  cfgm,
		log:   log,
		logs:  logSvc,
		store: store,
		relay: rel,
		sched: sched,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.sched.Start(runCtx); err != nil {
		cancel()
		return err
	}

	// Config hot reload. Only the logging section is live; the pipeline
	// reads its sections once at construction.
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(logx.Config{
					Level:   cfg.Logging.Level,
					Console: cfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: cfg.Logging.File.Enabled,
						Path:    cfg.Logging.File.Path,
					},
				})
				a.log.Info("logging config applied", logx.String("level", cfg.Logging.Level))
			}
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	notifyReady(a.log)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		runWatchdog(runCtx, a.log)
	}()

	a.log.Info("app started")
	return nil
}

// Stop halts the scheduler (waiting out any in-flight cycle), then the
// background loops, then storage.
func (a *App) Stop(ctx context.Context) error {
	notifyStopping(a.log)
	if a.cancel != nil {
		a.cancel()
	}
	a.sched.Stop()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("background loops did not stop in time")
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	a.log.Info("stopped")
	a.logs.Close()
	return nil
}
