package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	kit "timpbot/internal/transport"
	logx "timpbot/pkg/logx"
)

func TestNotifyDisabled(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: false}, nil, logx.Nop())
	err := s.Notify(context.Background(), kit.Notification{Text: "hi"})
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestNotifyBeforeStart(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: true}, nil, logx.Nop())
	err := s.Notify(context.Background(), kit.Notification{Text: "hi"})
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestNotifyQueueFull(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: true, QueueSize: 1}, nil, logx.Nop())
	// Open intake without a draining worker so the queue fills up.
	s.queue = make(chan job, 1)
	s.accepting = true

	if err := s.Notify(context.Background(), kit.Notification{Text: "first"}); err != nil {
		t.Fatalf("first Notify error: %v", err)
	}
	err := s.Notify(context.Background(), kit.Notification{Text: "second"})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
}

func TestDedupWindow(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: true, DedupWindow: time.Minute}, nil, logx.Nop())

	n := kit.Notification{Target: kit.ChatTarget{ChatID: 1}, Text: "same"}
	key := dedupKey(n)
	if !s.dedupAllow(key, time.Minute) {
		t.Fatal("first send must be allowed")
	}
	if s.dedupAllow(key, time.Minute) {
		t.Fatal("duplicate inside window must be suppressed")
	}

	other := kit.Notification{Target: kit.ChatTarget{ChatID: 1}, Text: "different"}
	if !s.dedupAllow(dedupKey(other), time.Minute) {
		t.Fatal("different text must be allowed")
	}
}

func TestDedupKeyDistinguishesTargets(t *testing.T) {
	t.Parallel()

	a := dedupKey(kit.Notification{Target: kit.ChatTarget{ChatID: 1}, Text: "x"})
	b := dedupKey(kit.Notification{Target: kit.ChatTarget{ChatID: 2}, Text: "x"})
	if a == b {
		t.Fatal("keys for different chats must differ")
	}
}

func TestPrefixForPriority(t *testing.T) {
	t.Parallel()

	if got := prefixForPriority(9); got != "🚨 " {
		t.Fatalf("priority 9 prefix = %q", got)
	}
	if got := prefixForPriority(5); got != "⚠️ " {
		t.Fatalf("priority 5 prefix = %q", got)
	}
	if got := prefixForPriority(1); got != "" {
		t.Fatalf("priority 1 prefix = %q", got)
	}
}

func TestRetryDelayBounded(t *testing.T) {
	t.Parallel()

	for attempt := 1; attempt <= 20; attempt++ {
		d := retryDelay(500*time.Millisecond, attempt)
		if d <= 0 || d > 10*time.Second {
			t.Fatalf("attempt %d: delay %v out of bounds", attempt, d)
		}
	}
}
