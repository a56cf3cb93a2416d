package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
)

// Advisory locks are scoped to the Postgres session: a crashed run's session
// dies and the lock goes with it, so a date can never stay locked forever.
// 락 획득과 해제는 반드시 같은 커넥션에서 해야 함.
const lockNamespace int64 = 0x544F4F544F4F // "TOOTOO"

// AdvisoryLock is the date-scoped run lock backed by pg advisory locks
// ⭐ SSOT: run 상호배제는 이 락으로만
type AdvisoryLock struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewAdvisoryLock creates a new AdvisoryLock
func NewAdvisoryLock(db *pgxpool.Pool, log *logger.Logger) *AdvisoryLock {
	return &AdvisoryLock{db: db, log: log}
}

// lockKeyForDate derives a stable 64-bit key from the as-of date.
func lockKeyForDate(asOfDate time.Time) int64 {
	days := asOfDate.Unix() / 86400
	return lockNamespace ^ days
}

// TryAcquire attempts the date lock without blocking. On success the returned
// release function unlocks and returns the session to the pool; it is safe to
// defer and runs at most once.
func (l *AdvisoryLock) TryAcquire(ctx context.Context, asOfDate time.Time) (bool, func(), error) {
	key := lockKeyForDate(asOfDate)

	// Dedicated connection: the lock lives on this session.
	conn, err := l.db.Acquire(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("acquire connection for advisory lock: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Release()
		return false, nil, fmt.Errorf("pg_try_advisory_lock (key=%d): %w", key, err)
	}

	if !acquired {
		conn.Release()
		return false, nil, nil
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true

		// Fresh context: the run's context may already be cancelled on the
		// failure paths, and the unlock must still go out.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := conn.Exec(unlockCtx, "SELECT pg_advisory_unlock($1)", key); err != nil {
			l.log.WithError(err).WithField("key", key).Warn("Failed to release advisory lock; session release will clear it")
		}
		conn.Release()
	}

	return true, release, nil
}
