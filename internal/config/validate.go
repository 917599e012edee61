package config

import (
	"fmt"
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekdays maps lowercase weekday names to time.Weekday values.
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(names))
	for _, n := range names {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", n)
		}
		out = append(out, wd)
	}
	return out, nil
}

// Validate rejects configs the bot cannot run with. It is also the hot-reload
// gate: a config that fails here is never committed or published.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	hasLogin := strings.TrimSpace(cfg.API.Email) != "" && strings.TrimSpace(cfg.API.Password) != ""
	if !hasLogin && strings.TrimSpace(cfg.API.Token) == "" {
		return fmt.Errorf("api: either email+password or a static token is required")
	}
	if _, err := ParseDurationField("api.timeout", cfg.API.Timeout); err != nil {
		return err
	}

	b := cfg.Booking
	if tz := strings.TrimSpace(b.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("booking.timezone: invalid %q: %w", tz, err)
		}
	}
	wds, err := ParseWeekdays(b.TriggerWeekdays)
	if err != nil {
		return fmt.Errorf("booking.trigger_weekdays: %w", err)
	}
	if len(wds) == 0 {
		return fmt.Errorf("booking.trigger_weekdays must not be empty")
	}
	if b.DaysAhead != nil && *b.DaysAhead < 0 {
		return fmt.Errorf("booking.days_ahead must be >= 0")
	}
	if strings.TrimSpace(b.TargetHours) == "" {
		return fmt.Errorf("booking.target_hours is required")
	}
	if b.TargetProfessionalID <= 0 {
		return fmt.Errorf("booking.target_professional_id must be > 0")
	}
	if b.ActivityID <= 0 {
		return fmt.Errorf("booking.activity_id must be > 0")
	}
	for _, f := range []struct{ path, raw string }{
		{"booking.trigger_offset", b.TriggerOffset},
		{"booking.window", b.Window},
		{"booking.poll_interval", b.PollInterval},
		{"booking.retry_interval", b.RetryInterval},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}

	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if cfg.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required when telegram.enabled")
	}

	if n := cfg.Notifier; n != nil {
		if n.QueueSize < 0 {
			return fmt.Errorf("notifier.queue_size must be >= 0")
		}
		if n.RetryMax < 0 {
			return fmt.Errorf("notifier.retry_max must be >= 0")
		}
		if _, err := ParseDurationField("notifier.retry_base", n.RetryBase); err != nil {
			return err
		}
		if _, err := ParseDurationField("notifier.dedup_window", n.DedupWindow); err != nil {
			return err
		}
	}

	if cfg.Pprof.Enabled && !cfg.Pprof.AllowInsecure && strings.TrimSpace(cfg.Pprof.Token) == "" {
		addr := strings.TrimSpace(cfg.Pprof.Addr)
		if addr != "" && !strings.HasPrefix(addr, "127.0.0.1") && !strings.HasPrefix(addr, "localhost") {
			return fmt.Errorf("pprof: non-loopback addr %q requires token or allow_insecure", addr)
		}
	}

	return nil
}
