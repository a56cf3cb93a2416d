package marketday

import (
	"fmt"
	"strings"
	"time"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
	"github.com/BaekSe/tootoo-recomendation/pkg/config"
)

// KST is the exchange-local timezone (UTC+9, no DST).
var KST = time.FixedZone("KST", 9*3600)

// Resolver determines the canonical as-of trading date for a run
// ⭐ SSOT: as-of 날짜 판정은 여기서만
type Resolver struct {
	cutoffHour int
	holidays   map[string]bool
}

// NewResolver creates a resolver from market configuration
func NewResolver(cfg config.MarketConfig) *Resolver {
	holidays := make(map[string]bool, len(cfg.Holidays))
	for _, d := range cfg.Holidays {
		holidays[d.Format(contracts.DateFormat)] = true
	}
	return &Resolver{
		cutoffHour: cfg.CutoffHour,
		holidays:   holidays,
	}
}

// Resolve returns the as-of date for a run.
//
// When requested is non-empty it must be YYYY-MM-DD; anything else fails with
// ErrInvalidDate. When empty, the date is taken from now in KST: before the
// close cutoff the EOD data for today is not authoritative yet, so the
// previous calendar date is used.
//
// Non-trading days are NOT rolled over: a weekend or holiday resolves to the
// literal calendar date, and the run short-circuits later on the empty
// feature data. 휴장일 판단은 유니버스 빌더 몫.
func (r *Resolver) Resolve(requested string, now time.Time) (time.Time, error) {
	if s := strings.TrimSpace(requested); s != "" {
		d, err := time.Parse(contracts.DateFormat, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", contracts.ErrInvalidDate, requested)
		}
		return d.UTC(), nil
	}

	nowKST := now.In(KST)
	date := time.Date(nowKST.Year(), nowKST.Month(), nowKST.Day(), 0, 0, 0, 0, time.UTC)
	if nowKST.Hour() < r.cutoffHour {
		date = date.AddDate(0, 0, -1)
	}

	return date, nil
}

// IsTradingDay reports whether date is a weekday outside the configured
// holiday list. Logging/scheduling 용도. Resolve는 이걸 쓰지 않는다.
func (r *Resolver) IsTradingDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !r.holidays[date.Format(contracts.DateFormat)]
}
