package timp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	logx "timpbot/pkg/logx"
)

// refreshMargin is the safety buffer when deciding whether the token will
// outlive a target booking instant.
const refreshMargin = time.Hour

type SessionConfig struct {
	BaseURL   string
	AccessKey string
	Email     string
	Password  string
	// StaticToken seeds the session with a pre-captured token (unknown
	// expiry). Without email/password it is also unrefreshable.
	StaticToken string
	ActivityID  int
	Location    *time.Location
	Timeout     time.Duration
}

// Session owns the one live credential: the bearer token, its expiry, and
// the refresh policy. All mutation goes through refresh(); concurrent
// refreshers coalesce onto a single in-flight authentication.
type Session struct {
	cfg SessionConfig
	hc  *http.Client
	log logx.Logger

	// onRefresh, if set, is invoked after every successful authentication.
	onRefresh func(expiresAt time.Time)

	mu        sync.Mutex
	token     string
	expiresAt time.Time // zero when unknown
	inflight  *refreshCall
}

type refreshCall struct {
	done chan struct{}
	err  error
}

func NewSession(cfg SessionConfig, log logx.Logger) *Session {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Session{
		cfg:   cfg,
		hc:    &http.Client{Timeout: timeout},
		log:   log,
		token: cfg.StaticToken,
	}
}

// SetRefreshHook registers a callback fired after each successful
// authentication. Must be set before the session is shared.
func (s *Session) SetRefreshHook(fn func(expiresAt time.Time)) { s.onRefresh = fn }

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// ExpiresAt returns the token expiry and whether it is known.
func (s *Session) ExpiresAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt, !s.expiresAt.IsZero()
}

func (s *Session) canRefresh() bool {
	return s.cfg.Email != "" && s.cfg.Password != ""
}

// Login establishes a working session at startup: fetch a fresh token when
// account credentials exist (falling back to a static token if the fetch
// fails), then verify it with a probe.
func (s *Session) Login(ctx context.Context) error {
	if s.canRefresh() {
		if err := s.Refresh(ctx); err != nil {
			if s.Token() == "" {
				return err
			}
			s.log.Warn("could not get fresh token, trying existing one", logx.Err(err))
		}
	}
	if s.Token() == "" {
		return &AuthError{Op: "login", Err: errors.New("no token available")}
	}
	if !s.Valid(ctx) {
		return &AuthError{Op: "login", Err: errors.New("token rejected by probe")}
	}
	return nil
}

// Refresh exchanges account credentials for a fresh token. It is
// single-flight: a caller that finds a refresh already underway waits for it
// and shares its result instead of issuing a second login.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if c := s.inflight; c != nil {
		s.mu.Unlock()
		select {
		case <-c.done:
			return c.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c := &refreshCall{done: make(chan struct{})}
	s.inflight = c
	s.mu.Unlock()

	err := s.authenticate(ctx)

	s.mu.Lock()
	s.inflight = nil
	s.mu.Unlock()
	c.err = err
	close(c.done)
	return err
}

func (s *Session) authenticate(ctx context.Context) error {
	if !s.canRefresh() {
		return &AuthError{Op: "refresh", Err: errors.New("no account credentials configured")}
	}

	body, err := json.Marshal(map[string]string{
		"email":    s.cfg.Email,
		"password": s.cfg.Password,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/api/user_app/v2/sessions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/timp.user-app-v2")
	req.Header.Set("api-access-key", s.cfg.AccessKey)
	req.Header.Set("App-Platform", "web")
	req.Header.Set("App-Version", "8.11.0")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://web.timp.pro")
	req.Header.Set("Referer", "https://web.timp.pro/")

	res, err := s.hc.Do(req)
	if err != nil {
		return &AuthError{Op: "create session", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return &AuthError{Op: "create session", Err: fmt.Errorf("status %d", res.StatusCode)}
	}

	var out struct {
		Serial    string `json:"serial"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return &AuthError{Op: "create session", Err: err}
	}
	if out.Serial == "" {
		return &AuthError{Op: "create session", Err: errors.New("no token in response")}
	}

	var exp time.Time
	if out.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, out.ExpiresAt); err == nil {
			exp = t
		} else {
			s.log.Warn("unparseable token expiry", logx.String("expires_at", out.ExpiresAt))
		}
	}

	s.mu.Lock()
	s.token = out.Serial
	s.expiresAt = exp
	s.mu.Unlock()

	if exp.IsZero() {
		s.log.Info("token refreshed", logx.String("expires", "unknown"))
	} else {
		s.log.Info("token refreshed", logx.Time("expires", exp))
	}
	if s.onRefresh != nil {
		s.onRefresh(exp)
	}
	return nil
}

// Valid probes the API with a cheap admissions request. Only a 401 marks the
// token invalid; any other status means the token was accepted. Network
// errors count as invalid, conservatively.
func (s *Session) Valid(ctx context.Context) bool {
	u := fmt.Sprintf("%s/api/user_app/v2/activities/%d/admissions", s.cfg.BaseURL, s.cfg.ActivityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false
	}
	q := url.Values{}
	q.Set("date", time.Now().In(s.cfg.Location).Format("2006-01-02"))
	req.URL.RawQuery = q.Encode()
	s.Decorate(req)

	res, err := s.hc.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return res.StatusCode != http.StatusUnauthorized
}

// RefreshIfNeeded re-authenticates ahead of time when the token would not
// survive until target (plus a one hour margin), or unconditionally when the
// expiry is unknown. Only an expiring token that cannot be refreshed is
// fatal; the unknown-expiry refresh is best-effort.
func (s *Session) RefreshIfNeeded(ctx context.Context, target time.Time) error {
	if !s.canRefresh() {
		return nil
	}

	exp, known := s.ExpiresAt()
	if !known {
		s.log.Info("token expiry unknown, refreshing to be safe")
		if err := s.Refresh(ctx); err != nil {
			s.log.Warn("precautionary refresh failed", logx.Err(err))
		}
		return nil
	}

	deadline := target.Add(refreshMargin)
	if exp.After(deadline) {
		s.log.Debug("token outlives booking target", logx.Time("expires", exp), logx.Time("target", target))
		return nil
	}

	s.log.Info("token expires before booking target, refreshing", logx.Time("expires", exp), logx.Time("target", target))
	if err := s.Refresh(ctx); err != nil {
		return &AuthError{Op: "refresh before booking", Err: err}
	}
	return nil
}

// Decorate attaches the current token and the fixed client-identification
// headers to an outgoing request.
func (s *Session) Decorate(req *http.Request) {
	req.Header.Set("Accept", "application/timp.user-app-v2")
	req.Header.Set("api-access-token", s.Token())
	req.Header.Set("api-access-key", s.cfg.AccessKey)
	req.Header.Set("App-Platform", "web")
	req.Header.Set("App-Version", "8.11.0")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Origin", "https://web.timp.pro")
	req.Header.Set("Referer", "https://web.timp.pro/")
	req.Header.Set("Accept-Language", "es_ES")
	req.Header.Set("Content-Type", "application/json")
}
