package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrTransient marks failures worth retrying: timeouts, rate limits, 5xx.
	ErrTransient = errors.New("transient external failure")
	// ErrNotFound is returned when a keyed ledger row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyHeld is returned when opening a position for a held ticker.
	ErrAlreadyHeld = errors.New("ticker already held")
	// ErrInvalidResponse marks an external payload that could not be decoded.
	ErrInvalidResponse = errors.New("invalid response payload")
)

// StatusError is a non-2xx answer from an HTTP collaborator.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsTransient classifies err for the retry policy.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// transientMarkers are substrings of Gemini API errors that signal quota
// exhaustion or a temporarily unavailable model.
var transientMarkers = []string{
	"RESOURCE_EXHAUSTED",
	"UNAVAILABLE",
	"DEADLINE_EXCEEDED",
	"INTERNAL",
	"Error 429",
	"Error 500",
	"Error 502",
	"Error 503",
	"Error 504",
}

func classifyGeminiError(err error) error {
	if err == nil || IsTransient(err) {
		return err
	}
	msg := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
	}
	return err
}
