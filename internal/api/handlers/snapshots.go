package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
	"github.com/BaekSe/tootoo-recomendation/pkg/redis"
)

// SnapshotHandler serves the read-only recommendation endpoints
// ⭐ SSOT: 추천 조회 API 핸들러는 이 구조체에서만
type SnapshotHandler struct {
	store  contracts.SnapshotStore
	cache  *redis.Cache // nil이면 캐시 없이 동작
	logger *logger.Logger
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(store contracts.SnapshotStore, cache *redis.Cache, log *logger.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		store:  store,
		cache:  cache,
		logger: log,
	}
}

// snapshotResponse is the API view of a success snapshot.
// as_of_date는 타임스탬프가 아니라 YYYY-MM-DD로 나간다.
type snapshotResponse struct {
	SnapshotID  uuid.UUID      `json:"snapshot_id"`
	Provider    string         `json:"provider"`
	AsOfDate    string         `json:"as_of_date"`
	GeneratedAt time.Time      `json:"generated_at"`
	Items       []itemResponse `json:"items"`
}

type itemResponse struct {
	Rank       int       `json:"rank"`
	Ticker     string    `json:"ticker"`
	Name       string    `json:"name"`
	Rationale  [3]string `json:"rationale"`
	RiskNotes  *string   `json:"risk_notes,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
}

func toSnapshotResponse(s *contracts.RecommendationSnapshot) snapshotResponse {
	items := make([]itemResponse, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, itemResponse(item))
	}
	return snapshotResponse{
		SnapshotID:  s.ID,
		Provider:    s.Provider,
		AsOfDate:    s.AsOfDate.Format(contracts.DateFormat),
		GeneratedAt: s.GeneratedAt,
		Items:       items,
	}
}

// GetLatest returns the most recent success snapshot
// GET /snapshots/latest
func (h *SnapshotHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cached snapshotResponse
	if h.cacheGet(ctx, redis.LatestSnapshotKey(), &cached) {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	snapshot, err := h.store.GetLatestSuccess(ctx)
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No recommendation snapshot available")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve snapshot")
		return
	}

	resp := toSnapshotResponse(snapshot)
	h.cacheSet(ctx, redis.LatestSnapshotKey(), resp, redis.TTLLatest)
	respondJSON(w, http.StatusOK, resp)
}

// GetByDate returns the success snapshot for a date
// GET /snapshots/{as_of_date}
func (h *SnapshotHandler) GetByDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	asOfDate, ok := h.parseDate(w, mux.Vars(r)["as_of_date"])
	if !ok {
		return
	}
	dateStr := asOfDate.Format(contracts.DateFormat)

	var cached snapshotResponse
	if h.cacheGet(ctx, redis.SnapshotKey(dateStr), &cached) {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	snapshot, err := h.store.GetSuccessByDate(ctx, asOfDate)
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No recommendation snapshot for "+dateStr)
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get snapshot by date")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve snapshot")
		return
	}

	resp := toSnapshotResponse(snapshot)
	h.cacheSet(ctx, redis.SnapshotKey(dateStr), resp, redis.TTLSnapshot)
	respondJSON(w, http.StatusOK, resp)
}

// GetItem returns one recommendation item for (date, ticker)
// GET /items/{as_of_date}/{ticker}
func (h *SnapshotHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	asOfDate, ok := h.parseDate(w, vars["as_of_date"])
	if !ok {
		return
	}
	ticker := vars["ticker"]
	dateStr := asOfDate.Format(contracts.DateFormat)

	var cached itemResponse
	if h.cacheGet(ctx, redis.ItemKey(dateStr, ticker), &cached) {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	item, err := h.store.GetItem(ctx, asOfDate, ticker)
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No recommendation for "+ticker+" on "+dateStr)
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get recommendation item")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve item")
		return
	}

	resp := itemResponse(*item)
	h.cacheSet(ctx, redis.ItemKey(dateStr, ticker), resp, redis.TTLSnapshot)
	respondJSON(w, http.StatusOK, resp)
}

func (h *SnapshotHandler) parseDate(w http.ResponseWriter, raw string) (time.Time, bool) {
	d, err := time.Parse(contracts.DateFormat, raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "as_of_date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return d.UTC(), true
}

func (h *SnapshotHandler) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if h.cache == nil {
		return false
	}
	hit, err := h.cache.Get(ctx, key, dest)
	if err != nil {
		h.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		return false
	}
	return hit
}

func (h *SnapshotHandler) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(ctx, key, value, ttl); err != nil {
		h.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}
