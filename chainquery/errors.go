package chainquery

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a reference resolves to nothing on chain:
// unknown transaction, missing output index, or a policy with no assets.
var ErrNotFound = errors.New("not found")

// throttleError is an internal marker for a backend throttling response.
// The retry loop consumes it; it never escapes the client.
type throttleError struct {
	retryAfter time.Duration // zero when the backend supplied no hint
}

func (e *throttleError) Error() string {
	if e.retryAfter > 0 {
		return fmt.Sprintf("throttled, retry after %s", e.retryAfter)
	}
	return "throttled"
}

// MirrorFailure records why one mirror could not serve a request.
type MirrorFailure struct {
	Mirror string
	Err    error
}

func (m MirrorFailure) String() string {
	return fmt.Sprintf("%s: %v", m.Mirror, m.Err)
}

// BackendExhaustedError aggregates the failure of every mirror tried for
// one request. It is fatal for that request only, not for the session.
type BackendExhaustedError struct {
	Backend  string
	Failures []MirrorFailure
}

func (e *BackendExhaustedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%s: all mirrors failed: %s", e.Backend, strings.Join(parts, "; "))
}

// Unwrap exposes the last failure's cause so errors.Is can still match
// transport-level sentinels.
func (e *BackendExhaustedError) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[len(e.Failures)-1].Err
}

// statusError is a non-throttle, non-404 HTTP failure from a backend.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("unexpected status %d", e.code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}
