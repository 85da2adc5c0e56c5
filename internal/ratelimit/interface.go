package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is a hint for rejected callers; zero when allowed.
	RetryAfter time.Duration
	// Degraded is set when the backing store was unreachable and the
	// limiter failed open instead of enforcing the ceiling.
	Degraded bool
}

type Limiter interface {
	// Admit atomically prunes, counts and conditionally records a request
	// marker for key, so two concurrent requests can never both observe
	// count < limit and both pass.
	Admit(ctx context.Context, key string) (Decision, error)

	Limit() int

	Window() time.Duration
}
