package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrTransient tags failures worth retrying: network errors, 5xx, 408, 429
var ErrTransient = errors.New("transient remote error")

// TransientError carries retry context for a transient failure
type TransientError struct {
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient remote error: %v", e.Err)
	}
	return fmt.Sprintf("transient remote error: status %d", e.Status)
}

func (e *TransientError) Unwrap() error { return ErrTransient }

// RejectionError is terminal for the mutation that caused it: the server
// refused the change or holds a newer version than the client assumed.
// Authoritative carries the server's current state when it was returned.
type RejectionError struct {
	Status        int
	Message       string
	Authoritative json.RawMessage
}

func (e *RejectionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server rejected change (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server rejected change (status %d)", e.Status)
}

// IsTransient reports whether the error should be retried with backoff
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
