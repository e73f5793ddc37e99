package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrNotConfigured signals that no credential is present. It is surfaced to
// the reader as a static configuration apology and never retried.
var ErrNotConfigured = errors.New("backend not configured")

type BackendErrorKind string

const (
	BackendErrorInvalidKey BackendErrorKind = "invalid-key"
	BackendErrorRateLimit  BackendErrorKind = "rate-limit"
	BackendErrorTimeout    BackendErrorKind = "timeout"
	BackendErrorTransport  BackendErrorKind = "transport"
)

// BackendError wraps a failed provider call with a coarse classification the
// orchestrator uses to pick an apology message.
type BackendError struct {
	Kind BackendErrorKind
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error (%s): %v", e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// ClassifyError folds a provider error into a BackendError. Classification
// is best-effort string matching over the provider's message; anything
// unrecognized is a transport error.
func ClassifyError(err error) *BackendError {
	if be, ok := err.(*BackendError); ok {
		return be
	}

	kind := BackendErrorTransport
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = BackendErrorTimeout
	case strings.Contains(msg, "API_KEY_INVALID"),
		strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "Incorrect API key"),
		strings.Contains(msg, "401"):
		kind = BackendErrorInvalidKey
	case strings.Contains(msg, "RATE_LIMIT_EXCEEDED"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "429"):
		kind = BackendErrorRateLimit
	}

	return &BackendError{Kind: kind, Err: err}
}
