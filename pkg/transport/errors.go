package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured is returned when no backend base URL is set. Callers
// must treat every operation as a no-op failure, not a crash.
var ErrNotConfigured = errors.New("knowledge-graph backend URL is not configured")

// ErrTimeout is returned when a call exceeds the per-call ceiling.
var ErrTimeout = errors.New("backend call timed out")

// HTTPError is a non-2xx response from the backend. The status and body
// text are preserved for the caller's error message.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend returned HTTP %d: %s", e.StatusCode, e.Body)
}

// ProtocolError is a JSON-RPC level error or a malformed/unparseable
// response payload.
type ProtocolError struct {
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
	}
	return "protocol error: " + e.Message
}

// isSessionExpired recognizes the server telling us our session is gone:
// an HTTP client error whose body references the session.
func isSessionExpired(err error) bool {
	var he *HTTPError
	if !errors.As(err, &he) {
		return false
	}
	if he.StatusCode < 400 || he.StatusCode >= 500 {
		return false
	}
	return strings.Contains(strings.ToLower(he.Body), "session")
}

// mapCallErr converts context deadline hits into ErrTimeout so callers
// can tell timeouts apart from transport failures.
func mapCallErr(err error, ceiling string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, ceiling)
	}
	return err
}
