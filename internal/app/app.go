// Package app assembles the daemon: config manager, logging service,
// storage, sinks, the engine, and the hot-reload loop.
package app

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"

	"notifyd/internal/config"
	"notifyd/internal/engine"
	"notifyd/internal/eventbus"
	"notifyd/internal/sink"
	"notifyd/internal/storage"
	"notifyd/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	cur  *config.Config

	logs *logx.Service
	log  logx.Logger

	bus    eventbus.Bus
	store  storage.Store
	engine *engine.Engine

	watchCancel context.CancelFunc
	loopDone    chan struct{}
	cfgCh       chan *config.Config
	evCh        <-chan eventbus.Event
	evUnsub     func()
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logSvc, log := logx.New(mapLogConfig(cfg.Logging))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(ctx context.Context, c *config.Config) error {
		return c.Validate()
	})

	bus := eventbus.New()

	var store storage.Store
	if sc := cfg.Storage; sc != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
		if err != nil {
			return nil, err
		}
		st, err := storage.Open(storage.Config{
			Driver:      sc.Driver,
			Path:        sc.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		if st != nil {
			log.Info("storage enabled", logx.String("driver", sc.Driver))
		}
	}

	snk, err := buildSink(cfg.Sink, log)
	if err != nil {
		return nil, err
	}

	engCfg, err := engine.FromFile(cfg.Engine)
	if err != nil {
		return nil, err
	}
	eng := engine.New(engCfg, log.With(logx.String("comp", "engine")), bus, store, snk)

	return &App{
		cfgm:   cfgm,
		cur:    cfg,
		logs:   logSvc,
		log:    log,
		bus:    bus,
		store:  store,
		engine: eng,
	}, nil
}

// Engine exposes the engine for callers embedding the daemon.
func (a *App) Engine() *engine.Engine { return a.engine }

// Bus exposes the lifecycle event stream.
func (a *App) Bus() eventbus.Bus { return a.bus }

func buildSink(sc config.SinkConfig, log logx.Logger) (sink.Sink, error) {
	s := sink.NewLog(log.With(logx.String("comp", "sink")))
	if sc.Telegram != nil {
		tg, err := sink.NewTelegram(sink.TelegramConfig{
			Token:  sc.Telegram.Token,
			ChatID: sc.Telegram.ChatID,
		}, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, fmt.Errorf("telegram sink: %w", err)
		}
		s = sink.Multi(s, tg)
	}
	if sc.RatePerSec > 0 {
		s = sink.RateLimited(s, sc.RatePerSec)
	}
	return s, nil
}

func mapLogConfig(lc config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
	}
}

// Start brings up the engine, the config watcher and the reload loop, then
// signals readiness to systemd when running under it.
func (a *App) Start(ctx context.Context) error {
	if err := a.engine.Start(ctx); err != nil {
		return err
	}

	wctx, cancel := context.WithCancel(context.Background())
	a.watchCancel = cancel
	a.loopDone = make(chan struct{})
	a.cfgCh = a.cfgm.Subscribe(4)
	a.evCh, a.evUnsub = a.bus.Subscribe(64)

	go func() { _ = a.cfgm.Watch(wctx) }()
	go a.loop(wctx)

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify unavailable", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("notifyd started")
	return nil
}

// loop handles config reloads and debug-logs lifecycle events.
func (a *App) loop(ctx context.Context) {
	defer close(a.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-a.cfgCh:
			if cfg != nil {
				a.applyConfig(cfg)
			}
		case ev := <-a.evCh:
			a.log.Debug("event", logx.String("type", ev.Type), logx.Any("data", ev.Data))
		}
	}
}

func (a *App) applyConfig(cfg *config.Config) {
	changed, attrs := config.SummarizeChange(a.cur, cfg)
	if len(changed) == 0 {
		return
	}
	a.log.Info("config reloaded", append([]logx.Field{logx.Any("sections", changed)}, attrs...)...)

	a.logs.Apply(mapLogConfig(cfg.Logging))

	engCfg, err := engine.FromFile(cfg.Engine)
	if err != nil {
		a.log.Warn("engine config rejected; keeping previous", logx.Err(err))
	} else {
		a.engine.Apply(engCfg)
	}

	for _, section := range changed {
		if section == "storage" || section == "sink" {
			a.log.Warn("section change requires restart", logx.String("section", section))
		}
	}
	a.cur = cfg
}

// Stop shuts everything down in reverse order and persists final state.
func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if a.watchCancel != nil {
		a.watchCancel()
		<-a.loopDone
	}
	if a.evUnsub != nil {
		a.evUnsub()
	}
	a.cfgm.Unsubscribe(a.cfgCh)

	a.engine.Stop(ctx)
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	a.log.Info("notifyd stopped")
	return nil
}
