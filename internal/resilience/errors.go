package resilience

import (
	"errors"
	"net"
	"syscall"
)

// TransientError marks a failure that may succeed on retry (429, 5xx,
// network timeouts).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error, status int) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err, StatusCode: status}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED)
}

// SkippedError marks a call that never reached the remote service, such as
// an abandoned rate-limiter wait. Breakers do not count it as a failure.
type SkippedError struct {
	Err error
}

func (e *SkippedError) Error() string { return e.Err.Error() }

func (e *SkippedError) Unwrap() error { return e.Err }

// Skipped wraps err as a call that was never attempted.
func Skipped(err error) error {
	if err == nil {
		return nil
	}
	return &SkippedError{Err: err}
}

// IsSkipped reports whether err marks a call that was never attempted.
func IsSkipped(err error) bool {
	var se *SkippedError
	return errors.As(err, &se)
}

// IsTransientStatus reports whether an HTTP status code is retryable.
func IsTransientStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
