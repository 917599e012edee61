// Package app wires the bot together: config, logging, telegram transport,
// notifier, TIMP session/client, booking loop, maintenance jobs and pprof,
// all running under one root supervisor.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"timpbot/internal/booking"
	"timpbot/internal/config"
	"timpbot/internal/eventbus"
	"timpbot/internal/maintenance"
	"timpbot/internal/notifier"
	obspprof "timpbot/internal/observability/pprof"
	rtsup "timpbot/internal/runtime/supervisor"
	"timpbot/internal/timp"
	kit "timpbot/internal/transport"
	"timpbot/internal/transport/telegram"
	logx "timpbot/pkg/logx"
)

type App struct {
	mu sync.Mutex

	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	adapter  *telegram.Adapter
	bus      eventbus.Bus
	history  *eventbus.History
	notify   *notifier.Service
	session  *timp.Session
	client   *timp.Client
	booker   *booking.Service
	maint    *maintenance.Service
	pprofSvc *obspprof.Service

	alertTarget kit.ChatTarget
	owners      map[int64]bool

	sup     *rtsup.Supervisor
	updates chan kit.Update
	done    chan struct{}
	runErr  error
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{
		cfgMgr: mgr,
		done:   make(chan struct{}),
	}

	// Telegram adapter first: the log service can use it as a sink.
	var sender kit.Sender
	if cfg.Telegram.Enabled {
		pollTimeout, _ := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
		ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, logx.Nop())
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		a.adapter = ad
		sender = ad
	}

	logSvc, log := logx.New(logxConfig(cfg), sender)
	logSvc.SetTelegramTarget(cfg.Telegram.ChatID, cfg.Telegram.ThreadID)
	a.logSvc = logSvc
	a.log = log
	mgr.SetLogger(log.With(logx.String("comp", "config")))
	mgr.SetValidator(func(ctx context.Context, c *config.Config) error { return config.Validate(c) })

	a.alertTarget = kit.ChatTarget{ChatID: cfg.Telegram.ChatID, ThreadID: cfg.Telegram.ThreadID}
	a.owners = ownerSet(cfg.Telegram.OwnerUserIDs)

	a.bus = eventbus.New()
	a.history = eventbus.NewHistory(8)
	a.notify = notifier.New(notifierConfig(cfg), sender, log.With(logx.String("comp", "notifier")))

	sessCfg, err := sessionConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.session = timp.NewSession(sessCfg, log.With(logx.String("comp", "session")))
	a.session.SetRefreshHook(func(exp time.Time) {
		a.bus.Publish(eventbus.Event{Type: "session.refreshed", Data: expiryText(exp)})
		a.Alert(context.Background(), 2, fmt.Sprintf("🔑 Token refreshed, expires %s", expiryText(exp)))
	})
	a.client = timp.NewClient(a.session, log.With(logx.String("comp", "api")))

	bkCfg, err := bookingConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.booker = booking.New(bkCfg, a.client, a.session, a.bus, a, log.With(logx.String("comp", "booking")))

	a.maint = maintenance.New(maintenance.Config{
		Enabled:    cfg.Maintenance.Enabled,
		TokenCheck: cfg.Maintenance.TokenCheck,
		Heartbeat:  cfg.Maintenance.Heartbeat,
		Location:   bkCfg.Location,
	}, a.session, a.statusText, a, log.With(logx.String("comp", "maintenance")))

	a.pprofSvc = obspprof.New(obspprof.Config{
		Enabled:       cfg.Pprof.Enabled,
		Addr:          cfg.Pprof.Addr,
		Token:         cfg.Pprof.Token,
		AllowInsecure: cfg.Pprof.AllowInsecure,
	}, log)

	return a, nil
}

// Alert satisfies the Alerter interfaces of booking and maintenance: fan the
// message out through the notifier toward the configured chat.
func (a *App) Alert(ctx context.Context, priority int, text string) {
	a.mu.Lock()
	target := a.alertTarget
	a.mu.Unlock()
	if target.ChatID == 0 {
		return
	}
	_ = a.notify.Notify(ctx, kit.Notification{
		Priority: priority,
		Target:   target,
		Text:     text,
		Options:  &kit.SendOptions{DisablePreview: true},
	})
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		// A fatal booking error must take the whole process down.
		rtsup.WithCancelOnError(true),
	)
	sup := a.sup
	runCtx := sup.Context()

	a.updates = make(chan kit.Update, 64)
	if a.adapter != nil {
		if err := a.adapter.Start(runCtx, a.updates); err != nil {
			return fmt.Errorf("telegram start: %w", err)
		}
	}
	a.notify.Start(runCtx)
	a.pprofSvc.Start(runCtx)
	if err := a.maint.Start(runCtx); err != nil {
		a.log.Warn("maintenance start failed", logx.Err(err))
	}

	// Establish the session before the loop; failure here is fatal.
	loginCtx, cancel := context.WithTimeout(runCtx, 30*time.Second)
	err := a.session.Login(loginCtx)
	cancel()
	if err != nil {
		a.Alert(runCtx, 9, fmt.Sprintf("🛑 Login failed: %v", err))
		return err
	}
	a.log.Info("logged in")
	a.Alert(runCtx, 3, "🤖 Bot started and logged in")

	sup.Go("booking.run", func(c context.Context) error {
		return a.booker.Run(c)
	})
	sup.Go0("config.watch", func(c context.Context) {
		_ = a.cfgMgr.Watch(c)
	})
	sup.Go0("config.reload", func(c context.Context) {
		a.reloadLoop(c)
	})
	sup.Go0("events.history", func(c context.Context) {
		a.history.Run(c, a.bus)
	})
	if a.adapter != nil {
		sup.Go0("commands", func(c context.Context) {
			a.commandLoop(c)
		})
	}
	sup.Go0("systemd", func(c context.Context) {
		a.systemdLoop(c)
	})

	go func() {
		<-runCtx.Done()
		a.mu.Lock()
		a.runErr = sup.Err()
		a.mu.Unlock()
		close(a.done)
	}()

	return nil
}

// reloadLoop applies hot-reloadable sections of a published config.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgMgr.Subscribe(4)
	defer a.cfgMgr.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			if cfg == nil {
				continue
			}
			a.applyConfig(cfg)
		}
	}
}

func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(logxConfig(cfg))
	a.logSvc.SetTelegramTarget(cfg.Telegram.ChatID, cfg.Telegram.ThreadID)
	a.notify.Apply(notifierConfig(cfg))

	a.mu.Lock()
	a.alertTarget = kit.ChatTarget{ChatID: cfg.Telegram.ChatID, ThreadID: cfg.Telegram.ThreadID}
	a.owners = ownerSet(cfg.Telegram.OwnerUserIDs)
	a.mu.Unlock()

	if bkCfg, err := bookingConfig(cfg); err == nil {
		a.booker.Apply(bkCfg)
	} else {
		a.log.Warn("booking config not applied", logx.Err(err))
	}
	a.log.Info("config applied")
}

func (a *App) Stop(ctx context.Context) {
	if a.sup != nil {
		a.sup.Cancel()
	}
	a.maint.Stop()
	a.pprofSvc.Stop(ctx)
	a.notify.Stop(ctx)
	if a.adapter != nil {
		_ = a.adapter.Stop(ctx)
	}
	if a.sup != nil {
		_ = a.sup.Wait(ctx)
	}
	_ = a.logSvc.Close()
}

// Done is closed when the app has stopped on its own (fatal error or
// context cancellation).
func (a *App) Done() <-chan struct{} { return a.done }

// Err reports why the app stopped; nil on clean shutdown.
func (a *App) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runErr != nil && !errors.Is(a.runErr, context.Canceled) {
		return a.runErr
	}
	return nil
}

func ownerSet(ids []int64) map[int64]bool {
	m := make(map[int64]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func expiryText(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format(time.RFC3339)
}

// ---- config translation ----

func logxConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func notifierConfig(cfg *config.Config) notifier.Config {
	n := cfg.Notifier
	if n == nil {
		// Omitted section means enabled with defaults.
		return notifier.Config{Enabled: cfg.Telegram.Enabled}
	}
	retryBase, _ := config.ParseDurationField("notifier.retry_base", n.RetryBase)
	dedup, _ := config.ParseDurationField("notifier.dedup_window", n.DedupWindow)
	return notifier.Config{
		Enabled:     n.Enabled && cfg.Telegram.Enabled,
		QueueSize:   n.QueueSize,
		RatePerSec:  n.RatePerSec,
		RetryMax:    n.RetryMax,
		RetryBase:   retryBase,
		DedupWindow: dedup,
	}
}

func sessionConfig(cfg *config.Config) (timp.SessionConfig, error) {
	loc, err := location(cfg.Booking.Timezone)
	if err != nil {
		return timp.SessionConfig{}, err
	}
	timeout, err := config.ParseDurationOrDefault("api.timeout", cfg.API.Timeout, 5*time.Second)
	if err != nil {
		return timp.SessionConfig{}, err
	}
	return timp.SessionConfig{
		BaseURL:     cfg.API.BaseURL,
		AccessKey:   cfg.API.AccessKey,
		Email:       cfg.API.Email,
		Password:    cfg.API.Password,
		StaticToken: cfg.API.Token,
		ActivityID:  cfg.Booking.ActivityID,
		Location:    loc,
		Timeout:     timeout,
	}, nil
}

func bookingConfig(cfg *config.Config) (booking.Config, error) {
	loc, err := location(cfg.Booking.Timezone)
	if err != nil {
		return booking.Config{}, err
	}
	weekdays, err := config.ParseWeekdays(cfg.Booking.TriggerWeekdays)
	if err != nil {
		return booking.Config{}, err
	}
	b := cfg.Booking
	offset, err := config.ParseDurationOrDefault("booking.trigger_offset", b.TriggerOffset, time.Second)
	if err != nil {
		return booking.Config{}, err
	}
	window, err := config.ParseDurationOrDefault("booking.window", b.Window, 2*time.Minute)
	if err != nil {
		return booking.Config{}, err
	}
	poll, err := config.ParseDurationOrDefault("booking.poll_interval", b.PollInterval, time.Second)
	if err != nil {
		return booking.Config{}, err
	}
	retry, err := config.ParseDurationOrDefault("booking.retry_interval", b.RetryInterval, 2*time.Second)
	if err != nil {
		return booking.Config{}, err
	}
	daysAhead := 7
	if b.DaysAhead != nil {
		daysAhead = *b.DaysAhead
	}
	return booking.Config{
		Location:      loc,
		Weekdays:      weekdays,
		TriggerOffset: offset,
		DaysAhead:     daysAhead,
		Criteria: booking.Criteria{
			Hours:          b.TargetHours,
			ProfessionalID: b.TargetProfessionalID,
		},
		Window:        window,
		PollInterval:  poll,
		RetryInterval: retry,
		DryRun:        b.DryRun,
	}, nil
}

func location(tz string) (*time.Location, error) {
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", tz, err)
	}
	return loc, nil
}
