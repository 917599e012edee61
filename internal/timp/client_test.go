package timp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	logx "timpbot/pkg/logx"
)

func testSession(t *testing.T, baseURL string) *Session {
	t.Helper()
	return NewSession(SessionConfig{
		BaseURL:    baseURL,
		AccessKey:  "key-123",
		Email:      "user@example.com",
		Password:   "hunter2",
		ActivityID: 42,
	}, logx.Nop())
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestAdmissionsNotPublishedYet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(testSession(t, srv.URL), logx.Nop())
	slots, err := c.Admissions(context.Background(), "2026-03-07")
	if err != nil {
		t.Fatalf("Admissions error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("slots = %v, want empty", slots)
	}
}

func TestAdmissionsParsesSlots(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/user_app/v2/activities/42/admissions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("date"); got != "2026-03-07" {
			t.Errorf("date = %q", got)
		}
		if got := r.Header.Get("api-access-key"); got != "key-123" {
			t.Errorf("api-access-key = %q", got)
		}
		writeJSON(t, w, []Slot{
			{ID: 1, Status: "booked", Hours: "16:00 - 17:00"},
			{ID: 2, Status: "available", Hours: "17:00 - 18:00", Professional: Professional{ID: 44640, Name: "Ana"}},
		})
	}))
	defer srv.Close()

	c := NewClient(testSession(t, srv.URL), logx.Nop())
	slots, err := c.Admissions(context.Background(), "2026-03-07")
	if err != nil {
		t.Fatalf("Admissions error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("len(slots) = %d, want 2", len(slots))
	}
	if slots[1].Professional.ID != 44640 {
		t.Fatalf("professional = %d, want 44640", slots[1].Professional.ID)
	}
}

func TestUnauthorizedRefreshesOnceAndRetries(t *testing.T) {
	t.Parallel()

	var admissionCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user_app/v2/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]string{"serial": "fresh-token", "expires_at": "2026-04-01T00:00:00Z"})
	})
	mux.HandleFunc("/api/user_app/v2/activities/42/admissions", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&admissionCalls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.Header.Get("api-access-token"); got != "fresh-token" {
			t.Errorf("retry used token %q, want fresh-token", got)
		}
		writeJSON(t, w, []Slot{{ID: 9, Status: "available"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(testSession(t, srv.URL), logx.Nop())
	slots, err := c.Admissions(context.Background(), "2026-03-07")
	if err != nil {
		t.Fatalf("Admissions error: %v", err)
	}
	if len(slots) != 1 || slots[0].ID != 9 {
		t.Fatalf("slots = %v", slots)
	}
	if n := atomic.LoadInt32(&admissionCalls); n != 2 {
		t.Fatalf("admission calls = %d, want 2", n)
	}
}

func TestPersistentUnauthorizedIsAuthError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/user_app/v2/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]string{"serial": "still-bad"})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(testSession(t, srv.URL), logx.Nop())
	_, err := c.Admissions(context.Background(), "2026-03-07")
	if !IsAuthError(err) {
		t.Fatalf("err = %v, want AuthError", err)
	}
}

func TestNotModifiedReplaysCachedBody(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			writeJSON(t, w, []Slot{{ID: 3, Status: "available", Hours: "17:00 - 18:00"}})
			return
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	c := NewClient(testSession(t, srv.URL), logx.Nop())

	first, err := c.Admissions(context.Background(), "2026-03-07")
	if err != nil {
		t.Fatalf("first Admissions error: %v", err)
	}
	second, err := c.Admissions(context.Background(), "2026-03-07")
	if err != nil {
		t.Fatalf("second Admissions error: %v", err)
	}
	if len(second) != len(first) || second[0].ID != first[0].ID {
		t.Fatalf("304 replay = %v, want %v", second, first)
	}
}

func TestUnexpectedStatusIsStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(testSession(t, srv.URL), logx.Nop())
	_, err := c.Admissions(context.Background(), "2026-03-07")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
		t.Fatalf("err = %v, want StatusError 502", err)
	}
}

func TestBookTicket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		wantID int
	}{
		{name: "confirmed", body: `{"id": 555}`, wantID: 555},
		{name: "rejected empty body", body: "", wantID: 0},
		{name: "rejected empty array", body: "[]", wantID: 0},
		{name: "rejected null", body: "null", wantID: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s, want POST", r.Method)
				}
				if r.URL.Path != "/api/user_app/v2/admissions/8/tickets" {
					t.Errorf("path = %s", r.URL.Path)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(testSession(t, srv.URL), logx.Nop())
			tk, err := c.BookTicket(context.Background(), 8)
			if err != nil {
				t.Fatalf("BookTicket error: %v", err)
			}
			if tk.ID != tt.wantID {
				t.Fatalf("ticket ID = %d, want %d", tk.ID, tt.wantID)
			}
		})
	}
}
