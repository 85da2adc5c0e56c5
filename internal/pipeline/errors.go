package pipeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingSignature and ErrInvalidSignature are both surfaced to the
	// caller with the same generic message to avoid signature oracle and
	// tenant enumeration leakage.
	ErrMissingSignature = errors.New("pipeline: signature header missing")
	ErrInvalidSignature = errors.New("pipeline: signature mismatch")
)

// RateLimitedError carries the retry-after hint for a 429 response.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("pipeline: rate limit exceeded, retry after %s", e.RetryAfter)
}
