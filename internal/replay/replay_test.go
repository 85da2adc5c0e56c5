package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedGuard(staleness, skew time.Duration) (*Guard, time.Time) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	g := NewGuard(staleness, skew).WithNow(func() time.Time { return now })
	return g, now
}

func TestCheckBoundaries(t *testing.T) {
	g, now := fixedGuard(300*time.Second, 30*time.Second)

	tests := []struct {
		name    string
		ts      time.Time
		wantErr error
	}{
		{"current time", now, nil},
		{"exactly at staleness tolerance", now.Add(-300 * time.Second), nil},
		{"one second past staleness", now.Add(-301 * time.Second), ErrStaleTimestamp},
		{"exactly at skew tolerance", now.Add(30 * time.Second), nil},
		{"one second past skew", now.Add(31 * time.Second), ErrFutureTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Check(tt.ts.Format(time.RFC3339))
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCheckHonorsNonUTCOffsets(t *testing.T) {
	g, now := fixedGuard(300*time.Second, 30*time.Second)

	// Same instant expressed in a +05:30 offset.
	local := now.In(time.FixedZone("IST", 5*3600+1800))
	ts, err := g.Check(local.Format(time.RFC3339))
	require.NoError(t, err)
	assert.True(t, ts.Equal(now))
}

func TestCheckRejectsNaiveTimestamps(t *testing.T) {
	g, _ := fixedGuard(300*time.Second, 30*time.Second)

	_, err := g.Check("2026-08-28T12:00:00")
	assert.ErrorIs(t, err, ErrNoTimezone)
}

func TestCheckRejectsGarbage(t *testing.T) {
	g, _ := fixedGuard(300*time.Second, 30*time.Second)

	for _, raw := range []string{"", "yesterday", "1724846400", "2026-08-28 12:00:00Z"} {
		_, err := g.Check(raw)
		assert.ErrorIs(t, err, ErrBadTimestamp, "input %q", raw)
	}
}
