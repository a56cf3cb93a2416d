package contracts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ⭐ SSOT: 컴포넌트 경계 인터페이스 정의는 여기서만

// FeatureReader reads per-date feature rows. Ingest 쪽이 쓰기를 소유하고,
// 코어는 읽기만 한다.
type FeatureReader interface {
	ListByDate(ctx context.Context, asOfDate time.Time) ([]FeatureRow, error)
}

// UniverseBuilder reduces the full listing to a bounded candidate set.
type UniverseBuilder interface {
	Build(ctx context.Context, asOfDate time.Time) (*CandidateSet, error)
}

// Generator is the LLM provider capability. One implementation per backend;
// 백엔드 교체는 설정이지 Run Coordinator 수정이 아님.
type Generator interface {
	Provider() string
	Generate(ctx context.Context, set *CandidateSet) (*RecommendationSnapshot, json.RawMessage, error)
}

// SnapshotStore is the append-only persistence boundary.
type SnapshotStore interface {
	// InsertSuccess writes snapshot + items in one transaction.
	// Returns ErrDuplicateSuccess when the partial unique index rejects it.
	InsertSuccess(ctx context.Context, snapshot *RecommendationSnapshot, provider string, raw json.RawMessage) (uuid.UUID, error)

	// InsertFailure records a failed run. Repeated failures for a date are
	// legal history.
	InsertFailure(ctx context.Context, asOfDate time.Time, provider string, errMsg string, raw json.RawMessage) (uuid.UUID, error)

	SuccessExists(ctx context.Context, asOfDate time.Time) (bool, error)
	GetLatestSuccess(ctx context.Context) (*RecommendationSnapshot, error)
	GetSuccessByDate(ctx context.Context, asOfDate time.Time) (*RecommendationSnapshot, error)
	GetItem(ctx context.Context, asOfDate time.Time, ticker string) (*RecommendationItem, error)
}

// RunLock is the exclusive, date-scoped mutual exclusion across runs.
// release는 세션 종료 시 자동 해제되는 메커니즘 위에 구현할 것.
type RunLock interface {
	// TryAcquire returns (acquired, release, error). When acquired is false
	// another run holds the date; callers must not proceed. release is
	// non-nil iff acquired.
	TryAcquire(ctx context.Context, asOfDate time.Time) (bool, func(), error)
}
