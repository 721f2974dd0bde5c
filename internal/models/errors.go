package models

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error kinds. Concrete errors unwrap to exactly one of these so callers can use errors.Is.
var (
	ErrValidation           = errors.New("validation error")
	ErrProviderRateLimited  = errors.New("provider rate limited")
	ErrProviderUnavailable  = errors.New("provider unavailable")
	ErrProviderMalformed    = errors.New("provider returned malformed response")
	ErrProviderFailed       = errors.New("provider request failed")
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
)

// ValidationError reports bad caller input. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ProviderError is a failure talking to an embedding or generation provider.
// Kind is one of the ErrProvider* sentinels.
type ProviderError struct {
	Provider   string
	Kind       error
	StatusCode int
	RetryAfter time.Duration
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether err is a kind the caller may retry after a delay.
func Retryable(err error) bool {
	return errors.Is(err, ErrProviderRateLimited) || errors.Is(err, ErrProviderUnavailable)
}

// RetryAfter returns the provider-suggested delay carried by err, or 0.
func RetryAfter(err error) time.Duration {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}

// Kind returns a stable short name for the error's kind, suitable for logs and metrics.
// A retrieval failure wins over the provider error that caused it: the retrieval
// cache has no generation to serve, whatever the embedder reported.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrRetrievalUnavailable):
		return "retrieval_unavailable"
	case errors.Is(err, ErrProviderRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrProviderUnavailable):
		return "unavailable"
	case errors.Is(err, ErrProviderMalformed):
		return "malformed"
	case errors.Is(err, ErrProviderFailed):
		return "failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
