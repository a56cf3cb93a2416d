package marketday

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
	"github.com/BaekSe/tootoo-recomendation/pkg/config"
)

func newTestResolver() *Resolver {
	return NewResolver(config.MarketConfig{
		CutoffHour: 16,
		Holidays: []time.Time{
			time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC),
		},
	})
}

func TestResolveExplicitDate(t *testing.T) {
	r := newTestResolver()

	d, err := r.Resolve("2026-01-15", time.Now())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), d)
}

func TestResolveRejectsMalformedDate(t *testing.T) {
	r := newTestResolver()

	for _, bad := range []string{"15-01-2026", "2026/01/15", "not-a-date", "2026-13-40"} {
		_, err := r.Resolve(bad, time.Now())
		require.Error(t, err, "input %q", bad)
		assert.True(t, errors.Is(err, contracts.ErrInvalidDate))
	}
}

func TestResolveUsesPreviousDayBeforeCutoff(t *testing.T) {
	r := newTestResolver()

	// 2026-01-05 06:00 UTC = 15:00 KST, before the 16:00 cutoff.
	now := time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC)
	d, err := r.Resolve("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC), d)
}

func TestResolveUsesSameDayAfterCutoff(t *testing.T) {
	r := newTestResolver()

	// 2026-01-05 08:00 UTC = 17:00 KST, after the cutoff.
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	d, err := r.Resolve("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), d)
}

func TestResolveDoesNotRollOverWeekend(t *testing.T) {
	r := newTestResolver()

	// 2026-01-03 is a Saturday; after the cutoff the resolver still returns
	// the literal calendar date. Empty feature data handles the rest.
	now := time.Date(2026, 1, 3, 8, 0, 0, 0, time.UTC)
	d, err := r.Resolve("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), d)
	assert.False(t, r.IsTradingDay(d))
}

func TestIsTradingDay(t *testing.T) {
	r := newTestResolver()

	cases := []struct {
		date time.Time
		want bool
	}{
		{time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), true},   // Monday
		{time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), false},  // Saturday
		{time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC), false},  // Sunday
		{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), false},  // configured holiday
		{time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC), false}, // configured holiday
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, r.IsTradingDay(tc.date), "date %s", tc.date.Format("2006-01-02"))
	}
}
