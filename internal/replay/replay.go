package replay

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrBadTimestamp    = errors.New("replay: timestamp is not a valid RFC3339 value")
	ErrNoTimezone      = errors.New("replay: timestamp has no timezone offset")
	ErrStaleTimestamp  = errors.New("replay: timestamp is older than the staleness tolerance")
	ErrFutureTimestamp = errors.New("replay: timestamp is further in the future than the skew tolerance")
)

// naiveLayout matches RFC3339 minus the offset. Used only to tell
// "missing timezone" apart from "not a timestamp at all".
const naiveLayout = "2006-01-02T15:04:05"

// Guard rejects events whose declared timestamp falls outside the accepted
// window. Staleness is deliberately much larger than skew: backward drift
// and network latency are expected, large forward timestamps are not.
type Guard struct {
	staleness time.Duration
	skew      time.Duration
	now       func() time.Time
}

func NewGuard(staleness, skew time.Duration) *Guard {
	return &Guard{
		staleness: staleness,
		skew:      skew,
		now:       time.Now,
	}
}

// WithNow substitutes the clock, used by tests.
func (g *Guard) WithNow(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Check validates the declared timestamp. Both boundaries are inclusive:
// exactly now-staleness and exactly now+skew pass.
func (g *Guard) Check(declared string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, declared)
	if err != nil {
		if _, naiveErr := time.Parse(naiveLayout, declared); naiveErr == nil {
			return time.Time{}, ErrNoTimezone
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, declared)
	}

	now := g.now()
	if now.Sub(ts) > g.staleness {
		return time.Time{}, ErrStaleTimestamp
	}
	if ts.Sub(now) > g.skew {
		return time.Time{}, ErrFutureTimestamp
	}

	return ts, nil
}
