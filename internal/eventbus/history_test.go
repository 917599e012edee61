package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestHistoryKeepsLastN(t *testing.T) {
	t.Parallel()

	h := NewHistory(3)
	for _, typ := range []string{"a", "b", "c", "d", "e"} {
		h.Record(Event{Type: typ})
	}

	got := h.Recent()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"c", "d", "e"} {
		if got[i].Type != want {
			t.Fatalf("event %d = %q, want %q", i, got[i].Type, want)
		}
	}
}

func TestHistoryRecentIsACopy(t *testing.T) {
	t.Parallel()

	h := NewHistory(4)
	h.Record(Event{Type: "x"})
	got := h.Recent()
	got[0].Type = "mutated"
	if h.Recent()[0].Type != "x" {
		t.Fatal("Recent must return a copy")
	}
}

func TestHistoryConsumesBus(t *testing.T) {
	t.Parallel()

	b := New()
	h := NewHistory(8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx, b)
	}()

	b.Publish(Event{Type: "booking.booked"})

	deadline := time.Now().Add(time.Second)
	for len(h.Recent()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event never recorded")
		}
		time.Sleep(time.Millisecond)
	}
	if h.Recent()[0].Type != "booking.booked" {
		t.Fatalf("got %q", h.Recent()[0].Type)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
