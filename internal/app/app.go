// Package app wires configuration, storage, the API client, the resolver,
// the poller and the Telegram adapter into one runnable service.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"tubewatch/internal/config"
	"tubewatch/internal/notify"
	"tubewatch/internal/poller"
	"tubewatch/internal/resolver"
	"tubewatch/internal/source"
	"tubewatch/internal/store"
	"tubewatch/internal/transport/telegram"
	logx "tubewatch/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	db     *store.DB
	poller *poller.Service

	mu      sync.Mutex
	started bool
	bgWG    sync.WaitGroup
	bgStop  context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	boot := logx.NewConsole("info")

	mgr := config.NewManager(cfgPath, boot)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	settings, err := cfg.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolve config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	db, err := store.Open(store.Config{
		Path:        settings.StoragePath,
		BusyTimeout: settings.BusyTimeout,
	}, log.With(logx.String("svc", "store")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	src, err := source.New(source.Config{
		APIKey:      settings.APIKey,
		BaseURL:     settings.BaseURL,
		HTTPTimeout: settings.HTTPTimeout,
		RatePerSec:  settings.APIRate,
		Burst:       settings.APIBurst,
		RetryMax:    settings.APIRetryMax,
	}, log.With(logx.String("svc", "source")))
	if err != nil {
		_ = db.Close()
		_ = logSvc.Close()
		return nil, fmt.Errorf("youtube client: %w", err)
	}

	adapter, err := telegram.New(telegram.Config{
		Token:       settings.TelegramToken,
		PollTimeout: settings.TelegramPollTimeout,
	}, log.With(logx.String("svc", "telegram")))
	if err != nil {
		_ = db.Close()
		_ = logSvc.Close()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	res := resolver.New(src, db, log.With(logx.String("svc", "resolver")))
	pipeline := notify.New(notify.Config{
		RatePerSec: settings.SinkRate,
		RetryMax:   settings.SinkRetryMax,
	}, adapter, log.With(logx.String("svc", "notify")))

	poll := poller.New(pollerConfig(settings), db, res, pipeline, src, adapter,
		log.With(logx.String("svc", "poller")))

	mgr.SetLogger(log)

	return &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
		db:     db,
		poller: poll,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.mu.Unlock()

	if err := a.poller.Start(ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.bgStop = cancel
	a.mu.Unlock()

	a.bgWG.Add(1)
	go func() {
		defer a.bgWG.Done()
		if err := a.cfgMgr.Watch(bgCtx); err != nil {
			a.log.Warn("config watch unavailable", logx.Err(err))
		}
	}()

	updates := a.cfgMgr.Subscribe(1)
	a.bgWG.Add(1)
	go func() {
		defer a.bgWG.Done()
		a.reloadLoop(bgCtx, updates)
	}()

	a.notifySystemd(bgCtx)

	a.log.Info("tubewatch started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.bgStop
	a.bgStop = nil
	started := a.started
	a.started = false
	a.mu.Unlock()
	if !started {
		return nil
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if cancel != nil {
		cancel()
	}
	a.poller.Stop(ctx)
	a.bgWG.Wait()

	a.log.Info("tubewatch stopped")
	err := a.db.Close()
	_ = a.logSvc.Close()
	return err
}

// reloadLoop applies config file changes that are safe to swap at runtime:
// log level/sinks and poll cadence. Anything else (token, storage path)
// needs a restart and is ignored with a note.
func (a *App) reloadLoop(ctx context.Context, updates chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			settings, err := cfg.Resolve()
			if err != nil {
				a.log.Warn("reloaded config rejected", logx.Err(err))
				continue
			}
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			a.poller.Apply(pollerConfig(settings))
			a.log.Info("runtime config applied")
		}
	}
}

// notifySystemd signals readiness and keeps the watchdog fed when the
// process runs under systemd (Type=notify). A no-op everywhere else.
func (a *App) notifySystemd(ctx context.Context) {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	} else if !ok {
		return
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	a.bgWG.Add(1)
	go func() {
		defer a.bgWG.Done()
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
}

func pollerConfig(s config.Settings) poller.Config {
	return poller.Config{
		CheckInterval: s.CheckInterval,
		StatInterval:  s.StatInterval,
		SyncInterval:  s.SyncInterval,
		Workers:       s.Workers,
		QueueSize:     s.QueueSize,
		BackoffBase:   s.BackoffBase,
		BackoffMax:    s.BackoffMax,
	}
}
