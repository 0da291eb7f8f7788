package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError wraps an error that is safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError marks err as transient.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// transientPatterns are message fragments of failures that tend to clear up
// on a second try: the browser's debugging endpoint not listening yet, a
// dropped websocket, a flaky network.
var transientPatterns = []string{
	"connection reset by peer",
	"connection refused",
	"broken pipe",
	"websocket",
	"devtools",
	"context deadline exceeded",
	"temporary failure in name resolution",
	"i/o timeout",
}

// IsTransient reports whether err (or any error in its chain) is a
// TransientError, a network timeout, a connection reset/refused, or carries
// one of the known transient messages.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
