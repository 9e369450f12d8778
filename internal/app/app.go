// Package app wires the bot together: config, logging, the telegram
// adapter, the watch store, the booking client, the notifier, the
// conversation flow and the reconciliation scheduler.
package app

import (
	"context"
	"fmt"
	"time"

	"classwatch/internal/booking"
	"classwatch/internal/config"
	"classwatch/internal/flow"
	"classwatch/internal/notify"
	"classwatch/internal/transport"
	"classwatch/internal/transport/telegram"
	"classwatch/internal/watch"
	"classwatch/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter transport.Adapter

	store      *watch.Store
	client     *booking.Client
	notifier   *notify.Service
	flow       *flow.Controller
	reconciler *watch.Reconciler

	updates chan transport.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
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
	cfgm.SetLogger(logSvc.Logger().With(logx.String("comp", "config")))

	pollTimeout, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	queryTimeout, err := config.ParseDurationField("booking.timeout", cfg.Booking.Timeout)
	if err != nil {
		return nil, err
	}
	client := booking.NewClient(booking.ClientConfig{
		Endpoint:   cfg.Booking.Endpoint,
		Timeout:    queryTimeout,
		RatePerSec: cfg.Booking.QueryRatePerSec,
	}, logSvc.Logger().With(logx.String("comp", "booking")))

	store := watch.NewStore()

	sendTimeout, err := config.ParseDurationField("notifier.send_timeout", cfg.Notifier.SendTimeout)
	if err != nil {
		return nil, err
	}
	notifier := notify.New(notify.Config{
		Workers:     cfg.Notifier.Workers,
		QueueSize:   cfg.Notifier.QueueSize,
		SendTimeout: sendTimeout,
	}, adapter, logSvc.Logger().With(logx.String("comp", "notifier")))

	interval, err := config.ParseDurationField("watcher.interval", cfg.Watcher.Interval)
	if err != nil {
		return nil, err
	}
	reconciler := watch.NewReconciler(store, client, notifier, interval,
		logSvc.Logger().With(logx.String("comp", "watcher")))

	controller := flow.New(store, client, adapter,
		logSvc.Logger().With(logx.String("comp", "flow")))

	return &App{
		cfgm:       cfgm,
		log:        log,
		logs:       logSvc,
		adapter:    adapter,
		store:      store,
		client:     client,
		notifier:   notifier,
		flow:       controller,
		reconciler: reconciler,
		updates:    make(chan transport.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, a.log)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.notifier.Start(a.sup.Context())
	if err := a.reconciler.Start(a.sup.Context()); err != nil {
		return err
	}

	// Best-effort: publish the command menu.
	if mu, ok := a.adapter.(transport.CommandMenuUpdater); ok {
		if err := mu.UpdateMenuCommands(a.sup.Context(), a.flow.Commands()); err != nil {
			a.log.Warn("command menu update failed", logx.Err(err))
		}
	}

	a.sup.Go("updates.dispatch", func(c context.Context) error {
		for {
			select {
			case <-c.Done():
				return nil
			case up := <-a.updates:
				a.flow.HandleUpdate(c, up)
			}
		}
	})

	// Config hot reload fan-out: logging sinks, watcher interval and
	// the booking query rate can change without a restart.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				a.applyConfig(newCfg)
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.client.SetRate(cfg.Booking.QueryRatePerSec)

	// Validate() already vetted the duration strings.
	if interval, err := config.ParseDurationField("watcher.interval", cfg.Watcher.Interval); err == nil {
		a.reconciler.Apply(interval)
	}
	a.log.Info("config applied")
}

// Stop delivers a final "terminated" notification to every distinct
// watching user, then shuts components down with per-step bounds so
// one component cannot stall the whole stop.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	a.broadcastShutdown(ctx)

	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem > 0 && rem < max {
				max = rem
			}
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
	}

	step("reconciler", 3*time.Second, a.reconciler.Stop)
	step("notifier", 3*time.Second, a.notifier.Stop)
	step("adapter", 2*time.Second, a.adapter.Stop)
	step("supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	return a.logs.Close()
}

// broadcastShutdown tells everyone with a watched class that polling
// is ending. Failures are logged, never escalated.
func (a *App) broadcastShutdown(ctx context.Context) {
	users := a.store.Users()
	if len(users) == 0 {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, chatID := range users {
		to := transport.ChatTarget{ChatID: chatID}
		text := "The watcher is shutting down. Your watched classes are no longer being checked."
		if _, err := a.adapter.SendText(sendCtx, to, text, nil); err != nil {
			a.log.Warn("shutdown notification failed", logx.Int64("chat_id", chatID), logx.Err(err))
		}
	}
	a.log.Info("shutdown notifications sent", logx.Int("users", len(users)))
}
