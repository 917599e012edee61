package timp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	logx "timpbot/pkg/logx"
)

// Client wraps a Session with the status normalization every endpoint needs:
// a 401 triggers one refresh-and-retry, 404 means "nothing published yet",
// and 304 replays the last body the server sent for that URL.
type Client struct {
	session *Session
	hc      *http.Client
	log     logx.Logger

	// cacheMu guards cached 2xx GET bodies keyed by full URL, replayed on 304.
	cacheMu sync.Mutex
	cache   map[string][]byte
}

func NewClient(session *Session, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := session.cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		session: session,
		hc:      &http.Client{Timeout: timeout},
		log:     log,
		cache:   map[string][]byte{},
	}
}

// Do issues one API request and normalizes the response:
//
//	2xx -> body
//	304 -> cached body for the URL (nil if none cached)
//	404 -> nil, nil ("not published yet", not an error)
//	401 -> refresh once and retry; a second 401 is an AuthError
//
// Anything else is a StatusError the caller may retry.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	u := c.session.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	retried := false
	for {
		res, data, err := c.once(ctx, method, u, body)
		if err != nil {
			return nil, fmt.Errorf("timp: %s %s: %w", method, path, err)
		}

		switch {
		case res.StatusCode/100 == 2:
			if method == http.MethodGet {
				c.storeCached(u, data)
			}
			return data, nil
		case res.StatusCode == http.StatusNotModified:
			return c.loadCached(u), nil
		case res.StatusCode == http.StatusNotFound:
			return nil, nil
		case res.StatusCode == http.StatusUnauthorized:
			if retried {
				return nil, &AuthError{Op: fmt.Sprintf("%s %s", method, path), Err: fmt.Errorf("still unauthorized after refresh")}
			}
			c.log.Info("got 401, refreshing token", logx.String("path", path))
			if err := c.session.Refresh(ctx); err != nil {
				return nil, err
			}
			retried = true
		default:
			return nil, &StatusError{Code: res.StatusCode}
		}
	}
}

func (c *Client) once(ctx context.Context, method, u string, body []byte) (*http.Response, []byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, nil, err
	}
	c.session.Decorate(req)

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, nil, err
	}
	return res, data, nil
}

func (c *Client) storeCached(u string, data []byte) {
	c.cacheMu.Lock()
	c.cache[u] = data
	c.cacheMu.Unlock()
}

func (c *Client) loadCached(u string) []byte {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	return c.cache[u]
}

// Admissions fetches the slot list for the configured activity on a date
// (YYYY-MM-DD). An empty list means the schedule is not published yet.
func (c *Client) Admissions(ctx context.Context, date string) ([]Slot, error) {
	path := fmt.Sprintf("/api/user_app/v2/activities/%d/admissions", c.session.cfg.ActivityID)
	q := url.Values{}
	q.Set("date", date)

	data, err := c.Do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var slots []Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, fmt.Errorf("timp: decode admissions: %w", err)
	}
	return slots, nil
}

// BookTicket books an admission slot. A 2xx with an empty or null body means
// the service rejected the booking; that surfaces as a zero-ID Ticket, not an
// error, so the caller can keep retrying inside its window.
func (c *Client) BookTicket(ctx context.Context, slotID int) (Ticket, error) {
	path := fmt.Sprintf("/api/user_app/v2/admissions/%d/tickets", slotID)

	data, err := c.Do(ctx, http.MethodPost, path, nil, []byte("{}"))
	if err != nil {
		return Ticket{}, err
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" || trimmed == "[]" {
		return Ticket{}, nil
	}

	var t Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		return Ticket{}, fmt.Errorf("timp: decode ticket: %w", err)
	}
	return t, nil
}
