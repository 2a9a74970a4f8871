package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// AuthError means the provider rejected our credentials. It is never
// retried; the session aborts so the user can fix the key.
type AuthError struct {
	Provider string
	Status   int
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed (HTTP %d): %s", e.Provider, e.Status, e.Message)
}

// RateLimitError means the provider throttled the request. RetryAfter holds
// the delay the provider asked for, zero when it gave no hint.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited: %s", e.Provider, e.Message)
}

// TransientError covers server-side failures and network errors that may
// succeed on a later attempt.
type TransientError struct {
	Provider string
	Status   int // 0 for network errors
	Err      error
}

func (e *TransientError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s request failed (HTTP %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// MalformedResponseError means the provider answered 200 but the body did
// not contain a usable completion. Retrying the same prompt rarely helps,
// so callers treat it as a per-file failure rather than waiting out a
// backoff.
type MalformedResponseError struct {
	Provider string
	Reason   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s returned an unusable response: %s", e.Provider, e.Reason)
}

// IsRetryable reports whether another attempt at the same request could
// succeed.
func IsRetryable(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var tr *TransientError
	return errors.As(err, &tr)
}

// IsAuth reports whether err is a credential rejection.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// classifyHTTPError maps a non-200 status to the error taxonomy above.
func classifyHTTPError(provider string, status int, retryAfter string, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	msg = truncateForError(msg, 300)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Provider: provider, Status: status, Message: msg}
	case status == http.StatusTooManyRequests:
		return &RateLimitError{Provider: provider, RetryAfter: retryDelayHint(retryAfter, msg), Message: msg}
	case status >= http.StatusInternalServerError:
		return &TransientError{Provider: provider, Status: status, Err: errors.New(msg)}
	default:
		return fmt.Errorf("%s API error %d: %s", provider, status, msg)
	}
}

// retryDelayHint extracts the wait a throttling response asked for, from the
// Retry-After header or the "please try again in 250ms" phrasing some APIs
// put in the body. Zero means no hint.
func retryDelayHint(retryAfterHeader, body string) time.Duration {
	if ra := strings.TrimSpace(retryAfterHeader); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	bl := strings.ToLower(body)
	idx := strings.Index(bl, "try again in ")
	if idx < 0 {
		return 0
	}
	fields := strings.Fields(bl[idx+len("try again in "):])
	if len(fields) == 0 {
		return 0
	}
	token := strings.Trim(fields[0], ".,")
	if strings.HasSuffix(token, "ms") {
		if n, err := strconv.ParseFloat(strings.TrimSuffix(token, "ms"), 64); err == nil && n > 0 {
			return time.Duration(n * float64(time.Millisecond))
		}
	}
	if strings.HasSuffix(token, "s") {
		if n, err := strconv.ParseFloat(strings.TrimSuffix(token, "s"), 64); err == nil && n > 0 {
			return time.Duration(n * float64(time.Second))
		}
	}
	return 0
}

func truncateForError(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
