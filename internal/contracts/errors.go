package contracts

import "errors"

// ⭐ SSOT: run 전체에서 공유하는 sentinel 에러는 여기서만 정의

var (
	// ErrInvalidDate means the requested as-of date could not be parsed.
	// Fatal to the run, nothing is written.
	ErrInvalidDate = errors.New("invalid as-of date")

	// ErrNoFeatureData means zero feature rows exist for the as-of date.
	// Recorded as a failed snapshot, not a crash.
	ErrNoFeatureData = errors.New("no feature data for as-of date")

	// ErrUndersizedUniverse means the candidate set came out below the
	// configured minimum. The provider is never invoked on one of these.
	ErrUndersizedUniverse = errors.New("candidate universe below configured minimum")

	// ErrDuplicateSuccess means a successful snapshot already exists for the
	// as-of date. Benign: callers treat it as a no-op, not a failure.
	ErrDuplicateSuccess = errors.New("successful snapshot already exists for as-of date")

	// ErrNotFound is returned by read-side lookups with no matching row.
	ErrNotFound = errors.New("not found")
)
