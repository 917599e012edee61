package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnv overlays environment variables onto cfg. The variable names match
// the deployment surface the bot has always used, so secrets can stay out of
// the config file entirely.
func ApplyEnv(cfg *Config) {
	if cfg == nil {
		return
	}

	setString(&cfg.API.Email, "EMAIL")
	setString(&cfg.API.Password, "PASSWORD")
	setString(&cfg.API.BaseURL, "BASE_URL")
	setString(&cfg.API.AccessKey, "API_ACCESS_KEY")
	setString(&cfg.API.Token, "TOKEN")

	setString(&cfg.Booking.Timezone, "TIMEZONE")
	setString(&cfg.Booking.TargetHours, "TARGET_HOURS")
	setInt(&cfg.Booking.TargetProfessionalID, "TARGET_PROFESSIONAL_ID")
	setInt(&cfg.Booking.ActivityID, "ACTIVITY_ID")
	setInt(&cfg.Booking.BranchBuildingID, "BRANCH_BUILDING_ID")
	if v, ok := lookup("DAYS_AHEAD"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Booking.DaysAhead = &n
		}
	}
	setBool(&cfg.Booking.DryRun, "DRY_RUN")

	setBool(&cfg.Telegram.Enabled, "TELEGRAM_ENABLED")
	setString(&cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	if v, ok := lookup("TELEGRAM_CHAT_ID"); ok {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}
