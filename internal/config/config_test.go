package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
telegram:
  enabled: true
  token: "123:abc"
  chat_id: -100123
  owner_user_ids: [42]
logging:
  level: "info"
  console: true
api:
  base_url: "https://api.example.com"
  access_key: "key-123"
  email: "user@example.com"
  password: "hunter2"
booking:
  timezone: "Europe/Madrid"
  trigger_weekdays: ["monday", "thursday"]
  days_ahead: 2
  target_hours: "17:00 - 18:00"
  target_professional_id: 44640
  activity_id: 42
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfig(t, "config.yaml", sampleYAML))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !cfg.Telegram.Enabled || cfg.Telegram.ChatID != -100123 {
		t.Fatalf("telegram section = %+v", cfg.Telegram)
	}
	if cfg.Booking.TargetProfessionalID != 44640 {
		t.Fatalf("target_professional_id = %d", cfg.Booking.TargetProfessionalID)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfig(t, "config.yaml", sampleYAML+"\nnot_a_field: true\n"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfig(t, "config.json", `{
		"api": {"base_url": "https://api.example.com", "token": "static"},
		"booking": {
			"trigger_weekdays": ["thursday"],
			"target_hours": "17:00 - 18:00",
			"target_professional_id": 1,
			"activity_id": 2
		}
	}`))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("EMAIL", "env@example.com")
	t.Setenv("PASSWORD", "env-pass")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("TARGET_PROFESSIONAL_ID", "777")

	m := NewManager(writeConfig(t, "config.yaml", sampleYAML))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.API.Email != "env@example.com" || cfg.API.Password != "env-pass" {
		t.Fatalf("env credentials not applied: %+v", cfg.API)
	}
	if !cfg.Booking.DryRun {
		t.Fatal("DRY_RUN not applied")
	}
	if cfg.Booking.TargetProfessionalID != 777 {
		t.Fatalf("TARGET_PROFESSIONAL_ID = %d, want 777", cfg.Booking.TargetProfessionalID)
	}
}

func TestParseWeekdays(t *testing.T) {
	t.Parallel()

	got, err := ParseWeekdays([]string{"Monday", " thursday "})
	if err != nil {
		t.Fatalf("ParseWeekdays error: %v", err)
	}
	if len(got) != 2 || got[0] != time.Monday || got[1] != time.Thursday {
		t.Fatalf("ParseWeekdays = %v", got)
	}

	if _, err := ParseWeekdays([]string{"someday"}); err == nil {
		t.Fatal("expected error for unknown weekday")
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		m := NewManager(writeConfig(t, "config.yaml", sampleYAML))
		cfg, err := m.Parse()
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{name: "missing base url", mut: func(c *Config) { c.API.BaseURL = "" }, want: "base_url"},
		{name: "no credentials", mut: func(c *Config) { c.API.Email = ""; c.API.Password = ""; c.API.Token = "" }, want: "email+password"},
		{name: "bad timezone", mut: func(c *Config) { c.Booking.Timezone = "Mars/Olympus" }, want: "timezone"},
		{name: "empty weekdays", mut: func(c *Config) { c.Booking.TriggerWeekdays = nil }, want: "trigger_weekdays"},
		{name: "bad weekday", mut: func(c *Config) { c.Booking.TriggerWeekdays = []string{"noday"} }, want: "trigger_weekdays"},
		{name: "missing hours", mut: func(c *Config) { c.Booking.TargetHours = "" }, want: "target_hours"},
		{name: "bad duration", mut: func(c *Config) { c.Booking.Window = "soon" }, want: "window"},
		{name: "negative days_ahead", mut: func(c *Config) { n := -1; c.Booking.DaysAhead = &n }, want: "days_ahead"},
		{name: "telegram enabled without token", mut: func(c *Config) { c.Telegram.Token = "" }, want: "telegram.token"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mut(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestDaysAheadField(t *testing.T) {
	t.Parallel()

	// Explicit values survive parsing, including zero; zero means booking
	// for the trigger date itself and must pass validation.
	m := NewManager(writeConfig(t, "config.yaml", strings.Replace(sampleYAML, "days_ahead: 2", "days_ahead: 0", 1)))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Booking.DaysAhead == nil || *cfg.Booking.DaysAhead != 0 {
		t.Fatalf("DaysAhead = %v, want explicit 0", cfg.Booking.DaysAhead)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	// An omitted field stays nil so callers can apply their own default.
	m = NewManager(writeConfig(t, "config.yaml", strings.Replace(sampleYAML, "  days_ahead: 2\n", "", 1)))
	cfg, err = m.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Booking.DaysAhead != nil {
		t.Fatalf("DaysAhead = %d, want nil when omitted", *cfg.Booking.DaysAhead)
	}
}

func TestDaysAheadEnvOverlay(t *testing.T) {
	t.Setenv("DAYS_AHEAD", "0")

	m := NewManager(writeConfig(t, "config.yaml", sampleYAML))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Booking.DaysAhead == nil || *cfg.Booking.DaysAhead != 0 {
		t.Fatalf("DaysAhead = %v, want 0 from env", cfg.Booking.DaysAhead)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	if d, err := ParseDurationField("x", "90s"); err != nil || d != 90*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty should be zero, got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if d, err := ParseDurationOrDefault("x", "", 2*time.Minute); err != nil || d != 2*time.Minute {
		t.Fatalf("default not applied: %v, %v", d, err)
	}
}
