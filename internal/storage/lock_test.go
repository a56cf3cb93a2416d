package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockKeyForDateIsStable(t *testing.T) {
	d := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, lockKeyForDate(d), lockKeyForDate(d))
}

func TestLockKeyForDateDiffersAcrossDates(t *testing.T) {
	a := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	b := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)

	assert.NotEqual(t, lockKeyForDate(a), lockKeyForDate(b))
}

func TestLockKeyIgnoresTimeOfDay(t *testing.T) {
	// 시간 성분이 달라도 같은 날짜면 같은 키
	midnight := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	noon := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, lockKeyForDate(midnight), lockKeyForDate(noon))
}
