// Package maintenance runs background upkeep jobs on a cron schedule:
// a periodic token validity probe and an optional daily heartbeat.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"timpbot/internal/timp"
	logx "timpbot/pkg/logx"
)

type Config struct {
	Enabled bool
	// TokenCheck is a cron spec for the token probe. Default "@every 6h".
	TokenCheck string
	// Heartbeat is a cron spec for the daily summary. Empty disables it.
	Heartbeat string
	Location  *time.Location
}

// SessionAPI is the credential surface the token probe drives.
type SessionAPI interface {
	Valid(ctx context.Context) bool
	Refresh(ctx context.Context) error
}

// StatusFn supplies the heartbeat body.
type StatusFn func() string

// Alerter delivers human-facing messages. Always best-effort.
type Alerter interface {
	Alert(ctx context.Context, priority int, text string)
}

type Service struct {
	mu      sync.Mutex
	cfg     Config
	cron    *cron.Cron
	cancel  context.CancelFunc
	session SessionAPI
	statusF StatusFn
	alerter Alerter
	log     logx.Logger
}

func New(cfg Config, session SessionAPI, statusF StatusFn, alerter Alerter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.TokenCheck == "" {
		cfg.TokenCheck = "@every 6h"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		cfg:     cfg,
		session: session,
		statusF: statusF,
		alerter: alerter,
		log:     log,
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.cron != nil {
		return nil
	}

	jobCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithLocation(s.cfg.Location))

	if _, err := c.AddFunc(s.cfg.TokenCheck, func() { s.checkToken(jobCtx) }); err != nil {
		cancel()
		return fmt.Errorf("maintenance: token check schedule: %w", err)
	}
	if s.cfg.Heartbeat != "" {
		if _, err := c.AddFunc(s.cfg.Heartbeat, func() { s.heartbeat(jobCtx) }); err != nil {
			cancel()
			return fmt.Errorf("maintenance: heartbeat schedule: %w", err)
		}
	}

	c.Start()
	s.cron = c
	s.cancel = cancel
	s.log.Info("maintenance started", logx.String("token_check", s.cfg.TokenCheck), logx.String("heartbeat", s.cfg.Heartbeat))
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		stopCtx := c.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(2 * time.Second):
		}
	}
}

// checkToken probes the session and refreshes when the token has gone stale
// between booking cycles. A probe failure after a successful refresh is only
// warned about; failing to refresh at all raises an alert because the next
// cycle will likely abort.
func (s *Service) checkToken(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if s.session.Valid(cctx) {
		s.log.Debug("token check passed")
		return
	}

	s.log.Warn("token check failed, refreshing")
	if err := s.session.Refresh(cctx); err != nil {
		s.log.Error("token refresh failed", logx.Err(err))
		if timp.IsAuthError(err) && s.alerter != nil {
			s.alerter.Alert(cctx, 8, fmt.Sprintf("🔑 Token refresh failed: %v", err))
		}
		return
	}
	s.log.Info("token refreshed by maintenance job")
}

func (s *Service) heartbeat(ctx context.Context) {
	if s.alerter == nil || s.statusF == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	s.alerter.Alert(cctx, 1, "💓 "+s.statusF())
}
