package eod

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
	"github.com/BaekSe/tootoo-recomendation/internal/llm"
	"github.com/BaekSe/tootoo-recomendation/internal/marketday"
	"github.com/BaekSe/tootoo-recomendation/pkg/config"
	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
)

// memStore is an in-memory SnapshotStore enforcing the one-success-per-date
// rule the partial unique index enforces in Postgres.
type memStore struct {
	mu        sync.Mutex
	successes map[string]*contracts.RecommendationSnapshot
	failures  []string
	rawByDate map[string]json.RawMessage
}

func newMemStore() *memStore {
	return &memStore{
		successes: make(map[string]*contracts.RecommendationSnapshot),
		rawByDate: make(map[string]json.RawMessage),
	}
}

func (s *memStore) InsertSuccess(ctx context.Context, snapshot *contracts.RecommendationSnapshot, provider string, raw json.RawMessage) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := snapshot.AsOfDate.Format(contracts.DateFormat)
	if _, ok := s.successes[key]; ok {
		return uuid.Nil, contracts.ErrDuplicateSuccess
	}
	stored := *snapshot
	stored.ID = uuid.New()
	stored.Provider = provider
	s.successes[key] = &stored
	s.rawByDate[key] = raw
	return stored.ID, nil
}

func (s *memStore) InsertFailure(ctx context.Context, asOfDate time.Time, provider string, errMsg string, raw json.RawMessage) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errMsg)
	return uuid.New(), nil
}

func (s *memStore) SuccessExists(ctx context.Context, asOfDate time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.successes[asOfDate.Format(contracts.DateFormat)]
	return ok, nil
}

func (s *memStore) GetLatestSuccess(ctx context.Context) (*contracts.RecommendationSnapshot, error) {
	return nil, contracts.ErrNotFound
}

func (s *memStore) GetSuccessByDate(ctx context.Context, asOfDate time.Time) (*contracts.RecommendationSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap, ok := s.successes[asOfDate.Format(contracts.DateFormat)]; ok {
		return snap, nil
	}
	return nil, contracts.ErrNotFound
}

func (s *memStore) GetItem(ctx context.Context, asOfDate time.Time, ticker string) (*contracts.RecommendationItem, error) {
	return nil, contracts.ErrNotFound
}

func (s *memStore) successCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.successes)
}

// memLock is a date-scoped in-memory RunLock.
type memLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLock() *memLock {
	return &memLock{held: make(map[string]bool)}
}

func (l *memLock) TryAcquire(ctx context.Context, asOfDate time.Time) (bool, func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := asOfDate.Format(contracts.DateFormat)
	if l.held[key] {
		return false, nil, nil
	}
	l.held[key] = true
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}
	return true, release, nil
}

type fakeUniverse struct {
	set *contracts.CandidateSet
	err error
}

func (u *fakeUniverse) Build(ctx context.Context, asOfDate time.Time) (*contracts.CandidateSet, error) {
	if u.err != nil {
		return nil, u.err
	}
	set := *u.set
	set.AsOfDate = asOfDate
	return &set, nil
}

type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	snapshot *contracts.RecommendationSnapshot
	raw      json.RawMessage
	err      error
}

func (g *fakeGenerator) Provider() string { return "fake" }

func (g *fakeGenerator) Generate(ctx context.Context, set *contracts.CandidateSet) (*contracts.RecommendationSnapshot, json.RawMessage, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.raw, g.err
	}
	snap := *g.snapshot
	snap.AsOfDate = set.AsOfDate
	return &snap, g.raw, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func testSnapshot(n int) *contracts.RecommendationSnapshot {
	items := make([]contracts.RecommendationItem, 0, n)
	for rank := 1; rank <= n; rank++ {
		items = append(items, contracts.RecommendationItem{
			Rank:      rank,
			Ticker:    fmt.Sprintf("KRX:%06d", rank),
			Name:      fmt.Sprintf("Name %d", rank),
			Rationale: [3]string{"a", "b", "c"},
		})
	}
	return &contracts.RecommendationSnapshot{
		GeneratedAt: time.Now().UTC(),
		Status:      contracts.StatusSuccess,
		Items:       items,
	}
}

func testUniverse(n int) *fakeUniverse {
	candidates := make([]contracts.Candidate, 0, n)
	for i := 0; i < n; i++ {
		candidates = append(candidates, contracts.Candidate{
			Ticker:   fmt.Sprintf("KRX:%06d", i+1),
			Name:     fmt.Sprintf("Stock %d", i+1),
			Features: map[string]float64{"momentum": float64(i)},
		})
	}
	return &fakeUniverse{set: &contracts.CandidateSet{Candidates: candidates}}
}

func newTestRunner(universe contracts.UniverseBuilder, gen contracts.Generator, store contracts.SnapshotStore, lock contracts.RunLock) *Runner {
	resolver := marketday.NewResolver(config.MarketConfig{CutoffHour: 16})
	return NewRunner(resolver, universe, gen, store, lock, logger.NewNop())
}

func TestRunHappyPath(t *testing.T) {
	store := newMemStore()
	gen := &fakeGenerator{snapshot: testSnapshot(20), raw: json.RawMessage(`{"ok":true}`)}
	runner := newTestRunner(testUniverse(200), gen, store, newMemLock())

	result, err := runner.Run(context.Background(), "2026-03-10", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.NotEqual(t, uuid.Nil, result.SnapshotID)
	assert.Equal(t, 1, store.successCount())
	assert.Equal(t, 1, gen.callCount())

	stored, err := store.GetSuccessByDate(context.Background(), result.AsOfDate)
	require.NoError(t, err)
	assert.Equal(t, "fake", stored.Provider)
	assert.Len(t, stored.Items, 20)
}

func TestRunInvalidDate(t *testing.T) {
	store := newMemStore()
	gen := &fakeGenerator{snapshot: testSnapshot(5)}
	runner := newTestRunner(testUniverse(200), gen, store, newMemLock())

	_, err := runner.Run(context.Background(), "10-03-2026", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrInvalidDate))

	// 날짜 오류는 DB에 아무것도 남기지 않음
	assert.Equal(t, 0, store.successCount())
	assert.Empty(t, store.failures)
	assert.Equal(t, 0, gen.callCount())
}

func TestRunDryRun(t *testing.T) {
	store := newMemStore()
	gen := &fakeGenerator{snapshot: testSnapshot(5)}
	runner := newTestRunner(testUniverse(200), gen, store, newMemLock())

	result, err := runner.Run(context.Background(), "2026-03-10", true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDryRun, result.Outcome)
	assert.Equal(t, "2026-03-10", result.AsOfDate.Format(contracts.DateFormat))
	assert.Equal(t, 0, gen.callCount())
	assert.Equal(t, 0, store.successCount())
}

func TestRunBackfillIsNoOp(t *testing.T) {
	store := newMemStore()
	gen := &fakeGenerator{snapshot: testSnapshot(20), raw: json.RawMessage(`{}`)}
	runner := newTestRunner(testUniverse(200), gen, store, newMemLock())

	first, err := runner.Run(context.Background(), "2026-03-10", false)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, first.Outcome)

	// 같은 날짜 재실행: 프로바이더 호출 없이 no-op
	second, err := runner.Run(context.Background(), "2026-03-10", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyDone, second.Outcome)
	assert.Equal(t, 1, gen.callCount())
	assert.Equal(t, 1, store.successCount())
}

func TestRunLockHeldByAnotherRun(t *testing.T) {
	store := newMemStore()
	gen := &fakeGenerator{snapshot: testSnapshot(5)}
	lock := newMemLock()

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	acquired, release, err := lock.TryAcquire(context.Background(), date)
	require.NoError(t, err)
	require.True(t, acquired)
	defer release()

	runner := newTestRunner(testUniverse(200), gen, store, lock)
	result, err := runner.Run(context.Background(), "2026-03-10", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLocked, result.Outcome)
	assert.Equal(t, 0, gen.callCount())
}

func TestRunNoFeatureData(t *testing.T) {
	store := newMemStore()
	gen := &fakeGenerator{snapshot: testSnapshot(5)}
	universe := &fakeUniverse{err: fmt.Errorf("%w: 2026-03-08", contracts.ErrNoFeatureData)}
	runner := newTestRunner(universe, gen, store, newMemLock())

	result, err := runner.Run(context.Background(), "2026-03-08", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)

	// 프로바이더 호출 없이 failed 스냅샷만
	assert.Equal(t, 0, gen.callCount())
	require.Len(t, store.failures, 1)
	assert.Contains(t, store.failures[0], "no feature data")
}

func TestRunUndersizedUniverse(t *testing.T) {
	store := newMemStore()
	gen := &fakeGenerator{snapshot: testSnapshot(5)}
	universe := &fakeUniverse{err: fmt.Errorf("%w: 50 candidates", contracts.ErrUndersizedUniverse)}
	runner := newTestRunner(universe, gen, store, newMemLock())

	result, err := runner.Run(context.Background(), "2026-03-10", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, 0, gen.callCount())
	require.Len(t, store.failures, 1)
}

func TestRunProviderFailure(t *testing.T) {
	store := newMemStore()
	gen := &fakeGenerator{
		err: &llm.ProviderError{Provider: "fake", Stage: llm.StageValidate, Detail: "after repair pass"},
		raw: json.RawMessage(`{"raw_text":"garbage"}`),
	}
	runner := newTestRunner(testUniverse(200), gen, store, newMemLock())

	result, err := runner.Run(context.Background(), "2026-03-10", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, 0, store.successCount())
	require.Len(t, store.failures, 1)
	assert.Contains(t, store.failures[0], "stage=validate")
}

func TestRunDuplicateSuccessAtInsert(t *testing.T) {
	store := newMemStore()
	gen := &fakeGenerator{snapshot: testSnapshot(5), raw: json.RawMessage(`{}`)}

	// 락과 존재 확인을 통과한 뒤 다른 run이 먼저 기록한 상황을 흉내내기 위해
	// 미리 success를 심고 SuccessExists만 우회하는 스토어를 쓴다.
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err := store.InsertSuccess(context.Background(), &contracts.RecommendationSnapshot{
		AsOfDate:    date,
		GeneratedAt: time.Now().UTC(),
		Status:      contracts.StatusSuccess,
		Items:       testSnapshot(5).Items,
	}, "fake", nil)
	require.NoError(t, err)

	runner := newTestRunner(testUniverse(200), gen, &raceyStore{memStore: store}, newMemLock())

	result, err := runner.Run(context.Background(), "2026-03-10", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyDone, result.Outcome)
	assert.Equal(t, 1, store.successCount())
}

// raceyStore reports no existing success so the run proceeds to the insert,
// which then trips the duplicate defense.
type raceyStore struct {
	*memStore
}

func (s *raceyStore) SuccessExists(ctx context.Context, asOfDate time.Time) (bool, error) {
	return false, nil
}

func TestRunConcurrentRunsExactlyOneSuccess(t *testing.T) {
	store := newMemStore()
	gen := &fakeGenerator{snapshot: testSnapshot(20), raw: json.RawMessage(`{}`)}
	lock := newMemLock()
	runner := newTestRunner(testUniverse(200), gen, store, lock)

	const n = 8
	var wg sync.WaitGroup
	outcomes := make([]Outcome, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := runner.Run(context.Background(), "2026-03-10", false)
			errs[i] = err
			if result != nil {
				outcomes[i] = result.Outcome
			}
		}(i)
	}
	wg.Wait()

	successCount := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		if outcomes[i] == OutcomeSuccess {
			successCount++
		}
	}

	// 몇 개가 락에 막히고 몇 개가 no-op이 되든, success는 정확히 하나
	assert.Equal(t, 1, successCount)
	assert.Equal(t, 1, store.successCount())
}
