package config

// Config is the full bot configuration, loaded from a YAML or JSON file and
// then overlaid with environment variables (see ApplyEnv).
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// API describes the TIMP endpoint and account.
	API APIConfig `json:"api"`

	// Booking controls the trigger schedule and slot criteria.
	Booking BookingConfig `json:"booking"`

	// Notifier controls the async alert pipeline. If the whole section is
	// omitted it defaults to enabled.
	Notifier *NotifierConfig `json:"notifier,omitempty"`

	// Maintenance controls background jobs (token checks, heartbeat).
	Maintenance MaintenanceConfig `json:"maintenance,omitempty"`

	Pprof PprofConfig `json:"pprof,omitempty"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	// ChatID is the chat that receives booking alerts and owner commands.
	ChatID       int64   `json:"chat_id"`
	ThreadID     int     `json:"thread_id,omitempty"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// APIConfig holds the TIMP endpoint, API key and account credentials.
// Secrets are normally supplied via environment (EMAIL, PASSWORD, TOKEN,
// API_ACCESS_KEY) rather than the config file.
type APIConfig struct {
	BaseURL   string `json:"base_url"`
	AccessKey string `json:"access_key"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	// Token is an optional pre-captured session token. With email/password
	// set it is only a fallback; alone it disables refresh.
	Token string `json:"token,omitempty"`
	// Timeout bounds each outbound HTTP call (Go duration string).
	Timeout string `json:"timeout,omitempty"`
}

// BookingConfig describes the schedule and slot criteria: which
// weekdays open a booking window, how far ahead the target date lies, and
// what slot to grab.
type BookingConfig struct {
	Timezone string `json:"timezone"`

	// TriggerWeekdays are lowercase English weekday names ("monday", ...).
	TriggerWeekdays []string `json:"trigger_weekdays"`
	// TriggerOffset shifts the trigger past start-of-day to dodge the
	// service's own midnight rollover (Go duration string, default "1s").
	TriggerOffset string `json:"trigger_offset,omitempty"`

	// DaysAhead offsets the target date from the trigger date. 0 books for
	// the trigger date itself; omitted defaults to 7.
	DaysAhead *int `json:"days_ahead,omitempty"`

	TargetHours          string `json:"target_hours"`
	TargetProfessionalID int    `json:"target_professional_id"`
	ActivityID           int    `json:"activity_id"`
	BranchBuildingID     int    `json:"branch_building_id,omitempty"`

	// Window is the polling window after the trigger (default "2m").
	Window string `json:"window,omitempty"`
	// PollInterval paces slot listing inside the window (default "1s").
	PollInterval string `json:"poll_interval,omitempty"`
	// RetryInterval paces booking retries after a rejection (default "2s").
	RetryInterval string `json:"retry_interval,omitempty"`

	DryRun bool `json:"dry_run"`
}

type NotifierConfig struct {
	Enabled    bool `json:"enabled"`
	QueueSize  int  `json:"queue_size,omitempty"`
	RatePerSec int  `json:"rate_per_sec,omitempty"`
	RetryMax   int  `json:"retry_max,omitempty"`
	// RetryBase and DedupWindow are Go duration strings.
	RetryBase   string `json:"retry_base,omitempty"`
	DedupWindow string `json:"dedup_window,omitempty"`
}

type MaintenanceConfig struct {
	Enabled bool `json:"enabled"`
	// TokenCheck is a cron spec or "@every <dur>" (default "@every 6h").
	TokenCheck string `json:"token_check,omitempty"`
	// Heartbeat posts a daily status summary; empty disables it.
	Heartbeat string `json:"heartbeat,omitempty"`
}

// PprofConfig controls the optional pprof HTTP server.
//
// Prefer binding to localhost; a non-loopback bind requires a token or an
// explicit allow_insecure.
type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default "127.0.0.1:6060"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}
