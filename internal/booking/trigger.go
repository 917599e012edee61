package booking

import (
	"errors"
	"sort"
	"time"
)

// ErrNoTrigger means no configured weekday falls inside the scan horizon.
// The loop cannot make progress, so this is fatal.
var ErrNoTrigger = errors.New("booking: no trigger instant within scan horizon")

// triggerScanDays bounds the forward scan. Eight days covers a full week
// plus today, so any non-empty weekday set always yields a hit.
const triggerScanDays = 8

// NextTrigger returns the earliest instant strictly after now that lands on
// one of the configured weekdays at start-of-day plus offset, in now's
// location. With the default one second offset a Tuesday evening call and a
// Monday/Thursday weekday set yields Thursday 00:00:01.
func NextTrigger(now time.Time, weekdays []time.Weekday, offset time.Duration) (time.Time, error) {
	if len(weekdays) == 0 {
		return time.Time{}, ErrNoTrigger
	}

	want := map[time.Weekday]bool{}
	for _, wd := range weekdays {
		want[wd] = true
	}

	var candidates []time.Time
	for d := 0; d < triggerScanDays; d++ {
		day := now.AddDate(0, 0, d)
		if !want[day.Weekday()] {
			continue
		}
		t := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location()).Add(offset)
		if t.After(now) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return time.Time{}, ErrNoTrigger
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })
	return candidates[0], nil
}
