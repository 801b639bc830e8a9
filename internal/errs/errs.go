// Package errs defines the error types shared across the harvest engine and
// its collaborators (spec §7): configuration, auth, transport, rate-limit,
// remote-query, and sink errors, plus the aggregate error the retry envelope
// raises on exhaustion. State-persistence failures and aggregation anomalies
// have no type here; they are only logged.
package errs

import "fmt"

// ConfigError signals a missing or invalid invocation option. Non-retryable.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Reason }

// AuthError signals a token mint or refresh failure. Non-retryable at the
// engine level; propagates all the way up to the invoker.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error: %s: %v", e.Reason, e.Err)
	}
	return "auth error: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError wraps a network or server 5xx failure. Retryable by the
// retry envelope.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}
func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitError signals an exhaustion detected by the governor (or, when
// Fatal is set, a governor pause-cap breach escalated to fatal per §4.3).
type RateLimitError struct {
	Message string
	Fatal   bool
}

func (e *RateLimitError) Error() string { return "rate limit: " + e.Message }

// RemoteQueryError signals a query-shape problem reported by the remote,
// e.g. a page size too large. Logged with a diagnostic hint and propagated.
type RemoteQueryError struct {
	Message string
	Hint    string
}

func (e *RemoteQueryError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("remote query error: %s (%s)", e.Message, e.Hint)
	}
	return "remote query error: " + e.Message
}

// SinkError wraps a row-write failure. Fatal for the current attempt,
// retryable by the envelope.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string { return fmt.Sprintf("sink error: %v", e.Err) }
func (e *SinkError) Unwrap() error { return e.Err }

// AggregateError names the attempt count and wraps the last observed error,
// surfaced to the invoker after retry exhaustion (spec §4.2, §7).
type AggregateError struct {
	Attempts int
	Last     error
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *AggregateError) Unwrap() error { return e.Last }
