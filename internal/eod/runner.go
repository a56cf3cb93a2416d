package eod

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
	"github.com/BaekSe/tootoo-recomendation/internal/llm"
	"github.com/BaekSe/tootoo-recomendation/internal/marketday"
	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
)

// Outcome is the terminal state of one EOD run.
type Outcome string

const (
	// OutcomeDryRun: 날짜 판정까지만 하고 종료. DB 접근 없음.
	OutcomeDryRun Outcome = "dry_run"

	// OutcomeLocked: 같은 날짜의 다른 run이 락을 쥐고 있어 아무것도 안 함.
	OutcomeLocked Outcome = "locked"

	// OutcomeAlreadyDone: success 스냅샷이 이미 있어 조용히 종료.
	OutcomeAlreadyDone Outcome = "already_done"

	// OutcomeSuccess: success 스냅샷을 새로 기록.
	OutcomeSuccess Outcome = "success"

	// OutcomeFailed: failed 스냅샷을 기록 (유니버스/프로바이더 실패).
	OutcomeFailed Outcome = "failed"
)

// Result reports what a run did.
type Result struct {
	AsOfDate   time.Time
	Outcome    Outcome
	SnapshotID uuid.UUID // zero unless a row was written
}

// Runner coordinates one EOD recommendation run end to end
// ⭐ SSOT: run 상태 기계는 여기서만. 날짜 판정 → 락 → 중복 확인 → 유니버스
// → 생성 → 영속화, 순차 실행. run 내부 병렬성은 없음.
type Runner struct {
	resolver  *marketday.Resolver
	universe  contracts.UniverseBuilder
	generator contracts.Generator
	store     contracts.SnapshotStore
	lock      contracts.RunLock
	logger    *logger.Logger
}

// NewRunner wires a Runner from its collaborators
func NewRunner(
	resolver *marketday.Resolver,
	universe contracts.UniverseBuilder,
	generator contracts.Generator,
	store contracts.SnapshotStore,
	lock contracts.RunLock,
	log *logger.Logger,
) *Runner {
	return &Runner{
		resolver:  resolver,
		universe:  universe,
		generator: generator,
		store:     store,
		lock:      lock,
		logger:    log,
	}
}

// Run executes one EOD run for the requested date ("" = resolve from now).
//
// 실패 정책: 날짜 오류는 DB에 아무것도 남기지 않고 에러 반환. 유니버스/
// 프로바이더 실패는 failed 스냅샷으로 기록하고 정상 종료 (run 이력 보존).
// 저장 실패만이 에러로 전파된다. run이 성공을 주장하면 안 되므로.
func (r *Runner) Run(ctx context.Context, requestedDate string, dryRun bool) (*Result, error) {
	asOfDate, err := r.resolver.Resolve(requestedDate, time.Now())
	if err != nil {
		return nil, err
	}

	log := r.logger.WithField("as_of_date", asOfDate.Format(contracts.DateFormat))
	if !r.resolver.IsTradingDay(asOfDate) {
		log.Warn("as-of date is not a trading day; expecting no feature data")
	}

	if dryRun {
		log.Info("dry run: resolved as-of date, stopping before any database access")
		return &Result{AsOfDate: asOfDate, Outcome: OutcomeDryRun}, nil
	}

	acquired, release, err := r.lock.TryAcquire(ctx, asOfDate)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		log.Warn("run lock not acquired; another run for this date is in progress")
		return &Result{AsOfDate: asOfDate, Outcome: OutcomeLocked}, nil
	}
	defer release()

	exists, err := r.store.SuccessExists(ctx, asOfDate)
	if err != nil {
		return nil, fmt.Errorf("check existing snapshot: %w", err)
	}
	if exists {
		log.Info("success snapshot already exists; exiting as no-op")
		return &Result{AsOfDate: asOfDate, Outcome: OutcomeAlreadyDone}, nil
	}

	provider := r.generator.Provider()

	set, err := r.universe.Build(ctx, asOfDate)
	if err != nil {
		if errors.Is(err, contracts.ErrNoFeatureData) || errors.Is(err, contracts.ErrUndersizedUniverse) {
			// 프로바이더 호출 없이 실패로 기록 (빈 날도 이력으로 남긴다)
			log.WithError(err).Warn("candidate universe unavailable; recording failed snapshot")
			return r.recordFailure(ctx, log, asOfDate, provider, err.Error(), nil)
		}
		return nil, fmt.Errorf("build universe: %w", err)
	}

	log.Infof("candidate universe built (%d candidates)", set.Count())

	snapshot, raw, err := r.generator.Generate(ctx, set)
	if err != nil {
		var provErr *llm.ProviderError
		if errors.As(err, &provErr) {
			log.WithError(err).Error("provider failed after repair pass; recording failed snapshot")
			return r.recordFailure(ctx, log, asOfDate, provider, err.Error(), raw)
		}
		return nil, fmt.Errorf("generate recommendations: %w", err)
	}

	snapshotID, err := r.store.InsertSuccess(ctx, snapshot, provider, raw)
	if err != nil {
		if errors.Is(err, contracts.ErrDuplicateSuccess) {
			// 락을 우회한 경쟁 run이 먼저 기록한 경우. 에러 아님.
			log.Info("success snapshot already recorded by a concurrent run; exiting as no-op")
			return &Result{AsOfDate: asOfDate, Outcome: OutcomeAlreadyDone}, nil
		}
		return nil, fmt.Errorf("persist success snapshot: %w", err)
	}

	log.WithField("snapshot_id", snapshotID.String()).
		Infof("persisted success snapshot (%d items)", len(snapshot.Items))
	return &Result{AsOfDate: asOfDate, Outcome: OutcomeSuccess, SnapshotID: snapshotID}, nil
}

func (r *Runner) recordFailure(ctx context.Context, log *logger.Logger, asOfDate time.Time, provider, errMsg string, raw json.RawMessage) (*Result, error) {
	snapshotID, err := r.store.InsertFailure(ctx, asOfDate, provider, errMsg, raw)
	if err != nil {
		return nil, fmt.Errorf("persist failed snapshot: %w", err)
	}
	log.WithField("snapshot_id", snapshotID.String()).Warn("recorded failed snapshot")
	return &Result{AsOfDate: asOfDate, Outcome: OutcomeFailed, SnapshotID: snapshotID}, nil
}
