package booking

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
}

func TestNextTrigger(t *testing.T) {
	t.Parallel()

	monThu := []time.Weekday{time.Monday, time.Thursday}

	tests := []struct {
		name     string
		now      time.Time
		weekdays []time.Weekday
		offset   time.Duration
		want     time.Time
	}{
		{
			name:     "tuesday evening goes to thursday midnight",
			now:      date(2026, time.March, 3, 21, 30, 0), // Tuesday
			weekdays: monThu,
			offset:   time.Second,
			want:     date(2026, time.March, 5, 0, 0, 1),
		},
		{
			name:     "monday just after trigger goes to thursday",
			now:      date(2026, time.March, 2, 0, 0, 2), // Monday 00:00:02
			weekdays: monThu,
			offset:   time.Second,
			want:     date(2026, time.March, 5, 0, 0, 1),
		},
		{
			name:     "monday just before trigger stays on monday",
			now:      date(2026, time.March, 2, 0, 0, 0),
			weekdays: monThu,
			offset:   time.Second,
			want:     date(2026, time.March, 2, 0, 0, 1),
		},
		{
			name:     "friday wraps to next monday",
			now:      date(2026, time.March, 6, 12, 0, 0), // Friday
			weekdays: monThu,
			offset:   time.Second,
			want:     date(2026, time.March, 9, 0, 0, 1),
		},
		{
			name:     "single weekday same day already past wraps a full week",
			now:      date(2026, time.March, 4, 8, 0, 0), // Wednesday
			weekdays: []time.Weekday{time.Wednesday},
			offset:   time.Second,
			want:     date(2026, time.March, 11, 0, 0, 1),
		},
		{
			name:     "custom offset",
			now:      date(2026, time.March, 3, 21, 30, 0),
			weekdays: []time.Weekday{time.Thursday},
			offset:   6 * time.Hour,
			want:     date(2026, time.March, 5, 6, 0, 0),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NextTrigger(tt.now, tt.weekdays, tt.offset)
			if err != nil {
				t.Fatalf("NextTrigger error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("NextTrigger = %v, want %v", got, tt.want)
			}
			if !got.After(tt.now) {
				t.Fatalf("trigger %v is not strictly after now %v", got, tt.now)
			}
		})
	}
}

func TestNextTriggerEmptyWeekdays(t *testing.T) {
	t.Parallel()
	_, err := NextTrigger(date(2026, time.March, 3, 12, 0, 0), nil, time.Second)
	if !errors.Is(err, ErrNoTrigger) {
		t.Fatalf("err = %v, want ErrNoTrigger", err)
	}
}

func TestNextTriggerAlwaysWithinHorizon(t *testing.T) {
	t.Parallel()
	// Any single weekday must yield a trigger at most 8 days out, from any
	// starting weekday.
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		for d := 0; d < 7; d++ {
			now := date(2026, time.March, 1+d, 13, 45, 0)
			got, err := NextTrigger(now, []time.Weekday{wd}, time.Second)
			if err != nil {
				t.Fatalf("NextTrigger(%v from %v) error: %v", wd, now, err)
			}
			if got.Weekday() != wd {
				t.Fatalf("trigger lands on %v, want %v", got.Weekday(), wd)
			}
			if got.Sub(now) > 8*24*time.Hour {
				t.Fatalf("trigger %v more than 8 days after %v", got, now)
			}
		}
	}
}
