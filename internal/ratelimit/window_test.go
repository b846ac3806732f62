package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/llm-router/internal/config"
)

func mustParse(t *testing.T, s string) int64 {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return tm.UnixMilli()
}

func TestResolveWindowRangeSeedTable(t *testing.T) {
	now := mustParse(t, "2026-02-28T15:42:30Z")

	cases := []struct {
		unit string
		size int
		key  string
	}{
		{"hour", 1, "hour:1:2026-02-28T15:00Z"},
		{"hour", 6, "hour:6:2026-02-28T12:00Z"},
		{"day", 1, "day:1:2026-02-28"},
		{"week", 1, "week:1:2026-02-23"},
		{"month", 1, "month:1:2026-02"},
	}
	for _, c := range cases {
		w, err := ResolveWindowRange(config.RateLimitWindow{Unit: c.unit, Size: c.size}, now)
		require.NoError(t, err)
		assert.Equal(t, c.key, w.Key, "unit=%s size=%d", c.unit, c.size)
	}
}

func TestResolveWindowRangeSpanInvariant(t *testing.T) {
	now := mustParse(t, "2026-02-28T15:42:30Z")
	units := []config.RateLimitWindow{
		{Unit: "second", Size: 30},
		{Unit: "minute", Size: 5},
		{Unit: "hour", Size: 1},
		{Unit: "day", Size: 1},
	}
	for _, w := range units {
		resolved, err := ResolveWindowRange(w, now)
		require.NoError(t, err)
		assert.Equal(t, resolved.EndsAt-resolved.StartsAt > 0, true)
	}
}

func TestResolveWindowRangeAgreesAtBoundaries(t *testing.T) {
	now := mustParse(t, "2026-02-28T15:42:30Z")
	w := config.RateLimitWindow{Unit: "hour", Size: 1}

	resolved, err := ResolveWindowRange(w, now)
	require.NoError(t, err)

	atStart, err := ResolveWindowRange(w, resolved.StartsAt)
	require.NoError(t, err)
	atEndMinus1, err := ResolveWindowRange(w, resolved.EndsAt-1)
	require.NoError(t, err)

	assert.Equal(t, resolved, atStart)
	assert.Equal(t, resolved, atEndMinus1)
}

func TestResolveWindowRangeMonthCrossesYear(t *testing.T) {
	now := mustParse(t, "2026-12-31T23:59:59Z")
	w, err := ResolveWindowRange(config.RateLimitWindow{Unit: "month", Size: 1}, now)
	require.NoError(t, err)
	assert.Equal(t, "month:1:2026-12", w.Key)

	next, err := ResolveWindowRange(config.RateLimitWindow{Unit: "month", Size: 1}, w.EndsAt)
	require.NoError(t, err)
	assert.Equal(t, "month:1:2027-01", next.Key)
}

func TestResolveWindowRangeWeekGroupedSize(t *testing.T) {
	now := mustParse(t, "2026-02-28T15:42:30Z")
	w, err := ResolveWindowRange(config.RateLimitWindow{Unit: "week", Size: 2}, now)
	require.NoError(t, err)
	assert.Equal(t, w.EndsAt-w.StartsAt, int64(2*7*24*60*60*1000))
}
