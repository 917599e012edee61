// Package timp talks to the TIMP user-app API: session lifecycle (bearer
// token, expiry, refresh) and the handful of endpoints the bot needs.
package timp

import (
	"errors"
	"fmt"
)

const StatusAvailable = "available"

type Professional struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Slot is one admission entry for an activity on a date. Immutable once
// fetched; a fresh set is fetched per poll.
type Slot struct {
	ID           int          `json:"id"`
	Status       string       `json:"status"`
	Hours        string       `json:"hours"` // e.g. "17:00 - 18:00"
	Professional Professional `json:"professional"`
}

// Ticket is the booking confirmation. A zero ID means the service rejected
// the booking (it answers 2xx with an empty body in that case).
type Ticket struct {
	ID int `json:"id"`
}

// AuthError is fatal: the session could not be established or re-established.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("timp: %s: authentication failed", e.Op)
	}
	return fmt.Sprintf("timp: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// StatusError is a recoverable transport-level failure: the service answered
// with a status the client does not normalize (not 2xx/304/404/401).
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("timp: unexpected status %d", e.Code)
}
