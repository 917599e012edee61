// Package booking runs the bot's core cycle: wait for the weekly trigger
// instant, then hammer the admissions endpoint inside a bounded window until
// the target slot appears and books, or the window closes.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"timpbot/internal/eventbus"
	"timpbot/internal/timp"
	logx "timpbot/pkg/logx"
)

// Event types published on the bus.
const (
	EventCycleStarted = "booking.cycle_started"
	EventWindowOpen   = "booking.window_open"
	EventSlotFound    = "booking.slot_found"
	EventBooked       = "booking.booked"
	EventCycleFailed  = "booking.cycle_failed"
)

// API is the slice of the TIMP client the loop needs.
type API interface {
	Admissions(ctx context.Context, date string) ([]timp.Slot, error)
	BookTicket(ctx context.Context, slotID int) (timp.Ticket, error)
}

// SessionAPI is the credential surface the loop drives between cycles.
type SessionAPI interface {
	Valid(ctx context.Context) bool
	Refresh(ctx context.Context) error
	RefreshIfNeeded(ctx context.Context, target time.Time) error
}

// Alerter delivers human-facing messages. Always best-effort. Pass a nil
// interface to New to disable alerts; a typed nil inside a non-nil interface
// is not detected and will be called.
type Alerter interface {
	Alert(ctx context.Context, priority int, text string)
}

type Config struct {
	Location      *time.Location
	Weekdays      []time.Weekday
	TriggerOffset time.Duration
	DaysAhead     int
	Criteria      Criteria
	Window        time.Duration
	PollInterval  time.Duration
	RetryInterval time.Duration
	DryRun        bool
}

func (c *Config) defaults() {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if len(c.Weekdays) == 0 {
		c.Weekdays = []time.Weekday{time.Monday, time.Thursday}
	}
	if c.TriggerOffset <= 0 {
		c.TriggerOffset = time.Second
	}
	// 0 is meaningful (book for the trigger date itself); only a negative
	// value falls back to the default.
	if c.DaysAhead < 0 {
		c.DaysAhead = 7
	}
	if c.Window <= 0 {
		c.Window = 2 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 2 * time.Second
	}
}

// Status is a point-in-time snapshot for the /status command.
type Status struct {
	NextTrigger  time.Time
	TargetDate   string
	LastOutcome  string
	LastTicketID int
	LastChange   time.Time
	Cycles       int
	DryRun       bool
}

// Service drives the run-forever booking cycle. One instance, one goroutine
// calling Run; Apply, Kick and Snapshot are safe from others.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	status  Status
	kick    chan struct{}
	api     API
	session SessionAPI
	bus     eventbus.Bus
	alerter Alerter
	clock   Clock
	log     logx.Logger
}

func New(cfg Config, api API, session SessionAPI, bus eventbus.Bus, alerter Alerter, log logx.Logger) *Service {
	cfg.defaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg,
		kick:    make(chan struct{}, 1),
		api:     api,
		session: session,
		bus:     bus,
		alerter: alerter,
		clock:   realClock{},
		log:     log,
	}
}

// SetClock swaps the time source. Call before Run.
func (s *Service) SetClock(clk Clock) { s.clock = clk }

// Apply installs a new config; it takes effect at the next cycle boundary.
func (s *Service) Apply(cfg Config) {
	cfg.defaults()
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Kick requests an immediate booking window, skipping the trigger wait for
// one cycle. Coalesces if a kick is already pending.
func (s *Service) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Snapshot returns the current status for display.
func (s *Service) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Service) setStatus(mut func(*Status)) {
	s.mu.Lock()
	mut(&s.status)
	s.status.LastChange = s.clock.Now()
	s.mu.Unlock()
}

// NextTrigger computes the upcoming trigger under the current config.
func (s *Service) NextTrigger() (time.Time, error) {
	cfg := s.config()
	return NextTrigger(s.clock.Now().In(cfg.Location), cfg.Weekdays, cfg.TriggerOffset)
}

// Run loops forever: trigger wait, window, repeat. It returns only on ctx
// cancellation or a fatal error (AuthError, ErrNoTrigger).
func (s *Service) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.cycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if timp.IsAuthError(err) || errors.Is(err, ErrNoTrigger) {
				s.alert(ctx, 9, fmt.Sprintf("🛑 Bot stopping: %v", err))
				return err
			}
			// Recoverable cycle failure; pause briefly and go again.
			s.log.Error("cycle failed", logx.Err(err))
			if err := s.clock.Sleep(ctx, 5*time.Second); err != nil {
				return err
			}
		}
	}
}

func (s *Service) cycle(ctx context.Context) error {
	cfg := s.config()
	now := s.clock.Now().In(cfg.Location)

	trigger, err := NextTrigger(now, cfg.Weekdays, cfg.TriggerOffset)
	if err != nil {
		return err
	}

	target := trigger.AddDate(0, 0, cfg.DaysAhead)
	targetDate := target.Format("2006-01-02")

	s.setStatus(func(st *Status) {
		st.NextTrigger = trigger
		st.TargetDate = targetDate
		st.Cycles++
		st.DryRun = cfg.DryRun
	})
	s.publish(EventCycleStarted, map[string]any{"trigger": trigger, "target_date": targetDate})
	s.log.Info("cycle started",
		logx.Time("trigger", trigger),
		logx.String("target_date", targetDate),
		logx.Bool("dry_run", cfg.DryRun))
	s.alert(ctx, 3, fmt.Sprintf("⏰ Next attempt: %s (booking for %s)", trigger.Format("Mon 2006-01-02 15:04:05"), targetDate))

	// Refresh proactively if the token won't survive until the target date;
	// booking happens at the trigger but the ticket covers the target.
	if err := s.session.RefreshIfNeeded(ctx, target); err != nil {
		return err
	}

	// Wait for the trigger, but let an owner /book kick open the window now.
	kicked := make(chan struct{})
	waitCtx, cancelWait := context.WithCancel(ctx)
	go func() {
		select {
		case <-s.kick:
			close(kicked)
			cancelWait()
		case <-waitCtx.Done():
		}
	}()
	werr := SleepUntil(waitCtx, s.clock, trigger)
	cancelWait()
	immediate := false
	select {
	case <-kicked:
		immediate = true
	default:
	}
	if werr != nil && !immediate {
		return werr
	}
	if immediate {
		s.log.Info("manual kick, opening window now")
		// A manual run still books for the regular target date.
		now = s.clock.Now().In(cfg.Location)
		target = now.AddDate(0, 0, cfg.DaysAhead)
		targetDate = target.Format("2006-01-02")
		s.setStatus(func(st *Status) { st.TargetDate = targetDate })
	}

	// Just-in-time check: the token must work right now.
	if !s.session.Valid(ctx) {
		s.log.Warn("token invalid at trigger, refreshing")
		if err := s.session.Refresh(ctx); err != nil {
			return err
		}
	}

	return s.runWindow(ctx, cfg, targetDate)
}

// runWindow polls admissions until the slot is booked or the wall-clock
// deadline passes. Transport errors inside the window are retried.
func (s *Service) runWindow(ctx context.Context, cfg Config, targetDate string) error {
	deadline := s.clock.Now().Add(cfg.Window)
	s.publish(EventWindowOpen, map[string]any{"target_date": targetDate, "deadline": deadline})
	s.log.Info("window open", logx.String("target_date", targetDate), logx.Duration("window", cfg.Window))

	polls := 0
	for s.clock.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		polls++

		slots, err := s.api.Admissions(ctx, targetDate)
		if err != nil {
			if timp.IsAuthError(err) {
				return err
			}
			s.log.Warn("admissions poll failed", logx.Err(err), logx.Int("poll", polls))
			if err := s.clock.Sleep(ctx, cfg.PollInterval); err != nil {
				return err
			}
			continue
		}

		if len(slots) == 0 {
			s.log.Debug("schedule not published yet", logx.Int("poll", polls))
			if err := s.clock.Sleep(ctx, cfg.PollInterval); err != nil {
				return err
			}
			continue
		}

		slot, ok := FindSlot(slots, cfg.Criteria)
		if !ok {
			s.log.Debug("no matching slot", logx.Int("slots", len(slots)), logx.Int("poll", polls))
			if err := s.clock.Sleep(ctx, cfg.PollInterval); err != nil {
				return err
			}
			continue
		}

		s.publish(EventSlotFound, map[string]any{"slot_id": slot.ID, "hours": slot.Hours})
		s.log.Info("slot found",
			logx.Int("slot_id", slot.ID),
			logx.String("hours", slot.Hours),
			logx.String("professional", slot.Professional.Name))

		if cfg.DryRun {
			s.setStatus(func(st *Status) { st.LastOutcome = "dry-run matched"; st.LastTicketID = 0 })
			s.publish(EventBooked, map[string]any{"slot_id": slot.ID, "dry_run": true})
			s.alert(ctx, 5, fmt.Sprintf("🧪 Dry run: would book slot %d (%s) on %s", slot.ID, slot.Hours, targetDate))
			return nil
		}

		ticket, err := s.api.BookTicket(ctx, slot.ID)
		if err != nil {
			if timp.IsAuthError(err) {
				return err
			}
			s.log.Warn("booking attempt failed", logx.Err(err))
			if err := s.clock.Sleep(ctx, cfg.RetryInterval); err != nil {
				return err
			}
			continue
		}
		if ticket.ID == 0 {
			s.log.Warn("booking rejected, retrying", logx.Int("slot_id", slot.ID))
			if err := s.clock.Sleep(ctx, cfg.RetryInterval); err != nil {
				return err
			}
			continue
		}

		s.setStatus(func(st *Status) { st.LastOutcome = "booked"; st.LastTicketID = ticket.ID })
		s.publish(EventBooked, map[string]any{"slot_id": slot.ID, "ticket_id": ticket.ID})
		s.log.Info("booked", logx.Int("ticket_id", ticket.ID), logx.Int("slot_id", slot.ID))
		s.alert(ctx, 8, fmt.Sprintf("🎉 BOOKING CONFIRMED - Ticket ID: %d", ticket.ID))
		return nil
	}

	s.setStatus(func(st *Status) { st.LastOutcome = "window expired"; st.LastTicketID = 0 })
	s.publish(EventCycleFailed, map[string]any{"target_date": targetDate, "polls": polls})
	s.log.Warn("window expired without booking", logx.String("target_date", targetDate), logx.Int("polls", polls))
	s.alert(ctx, 6, fmt.Sprintf("⌛ Window expired without booking for %s (%d polls)", targetDate, polls))
	return nil
}

func (s *Service) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.clock.Now(), Data: data})
}

func (s *Service) alert(ctx context.Context, priority int, text string) {
	if s.alerter == nil {
		return
	}
	s.alerter.Alert(ctx, priority, text)
}
