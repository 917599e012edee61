package booking

import (
	"context"
	"time"
)

// Clock abstracts wall time so the window and trigger machinery can run
// against a fake clock in tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SleepUntil sleeps toward target in short steps so a wall clock jump
// (suspend/resume, NTP step) is picked up within a tick rather than
// oversleeping the whole remaining duration.
func SleepUntil(ctx context.Context, clk Clock, target time.Time) error {
	const tick = 500 * time.Millisecond
	for {
		remaining := target.Sub(clk.Now())
		if remaining <= 0 {
			return ctx.Err()
		}
		step := remaining
		if step > tick {
			step = tick
		}
		if err := clk.Sleep(ctx, step); err != nil {
			return err
		}
	}
}
