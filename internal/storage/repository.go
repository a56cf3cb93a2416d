package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// Repository is the append-only snapshot store
// ⭐ SSOT: recommendation_snapshots/items 쓰기는 여기서만 (Run Coordinator가 유일한 호출자)
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// InsertSuccess writes a success snapshot and its items in one transaction.
// A second success for the same date trips the partial unique index and is
// surfaced as contracts.ErrDuplicateSuccess. 락과 별개인 저장소 차원의 방어선.
func (r *Repository) InsertSuccess(ctx context.Context, snapshot *contracts.RecommendationSnapshot, provider string, raw json.RawMessage) (uuid.UUID, error) {
	if n := len(snapshot.Items); n < 1 || n > contracts.MaxItems {
		return uuid.Nil, fmt.Errorf("snapshot must have 1..%d items, got %d", contracts.MaxItems, n)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	snapshotID := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO recommendation_snapshots
			(id, as_of_date, generated_at, provider, status, error, raw_response)
		VALUES ($1, $2, $3, $4, 'success', NULL, $5)
	`, snapshotID, snapshot.AsOfDate, snapshot.GeneratedAt, provider, raw)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, fmt.Errorf("%w: %s", contracts.ErrDuplicateSuccess,
				snapshot.AsOfDate.Format(contracts.DateFormat))
		}
		return uuid.Nil, fmt.Errorf("insert recommendation_snapshots: %w", err)
	}

	for _, item := range snapshot.Items {
		rationale := item.Rationale[:]
		_, err = tx.Exec(ctx, `
			INSERT INTO recommendation_items
				(snapshot_id, rank, ticker, name, rationale, risk_notes, confidence)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, snapshotID, item.Rank, item.Ticker, item.Name, rationale, item.RiskNotes, item.Confidence)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert recommendation_items (rank %d): %w", item.Rank, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit transaction: %w", err)
	}

	return snapshotID, nil
}

// InsertFailure records a failed run. No items are ever written for one of
// these; repeated failures for the same date are legal history.
func (r *Repository) InsertFailure(ctx context.Context, asOfDate time.Time, provider string, errMsg string, raw json.RawMessage) (uuid.UUID, error) {
	snapshotID := uuid.New()
	_, err := r.db.Exec(ctx, `
		INSERT INTO recommendation_snapshots
			(id, as_of_date, generated_at, provider, status, error, raw_response)
		VALUES ($1, $2, $3, $4, 'failed', $5, $6)
	`, snapshotID, asOfDate, time.Now().UTC(), provider, errMsg, raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert failed recommendation_snapshots: %w", err)
	}

	return snapshotID, nil
}

// SuccessExists reports whether a success snapshot exists for the date.
func (r *Repository) SuccessExists(ctx context.Context, asOfDate time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM recommendation_snapshots
			WHERE status = 'success' AND as_of_date = $1
		)
	`, asOfDate).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query success snapshot existence: %w", err)
	}
	return exists, nil
}

// GetLatestSuccess returns the most recent success snapshot with its items,
// or contracts.ErrNotFound.
func (r *Repository) GetLatestSuccess(ctx context.Context) (*contracts.RecommendationSnapshot, error) {
	return r.getSuccess(ctx, `
		SELECT id, as_of_date, generated_at, provider
		FROM recommendation_snapshots
		WHERE status = 'success'
		ORDER BY as_of_date DESC, generated_at DESC
		LIMIT 1
	`)
}

// GetSuccessByDate returns the success snapshot for a literal date,
// or contracts.ErrNotFound.
func (r *Repository) GetSuccessByDate(ctx context.Context, asOfDate time.Time) (*contracts.RecommendationSnapshot, error) {
	return r.getSuccess(ctx, `
		SELECT id, as_of_date, generated_at, provider
		FROM recommendation_snapshots
		WHERE status = 'success' AND as_of_date = $1
		LIMIT 1
	`, asOfDate)
}

// GetItem returns a single item for (date, ticker), or contracts.ErrNotFound.
func (r *Repository) GetItem(ctx context.Context, asOfDate time.Time, ticker string) (*contracts.RecommendationItem, error) {
	row := r.db.QueryRow(ctx, `
		SELECT i.rank, i.ticker, i.name, i.rationale, i.risk_notes, i.confidence
		FROM recommendation_items i
		JOIN recommendation_snapshots s ON s.id = i.snapshot_id
		WHERE s.status = 'success' AND s.as_of_date = $1 AND i.ticker = $2
		LIMIT 1
	`, asOfDate, ticker)

	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query recommendation item: %w", err)
	}
	return item, nil
}

func (r *Repository) getSuccess(ctx context.Context, query string, args ...any) (*contracts.RecommendationSnapshot, error) {
	snapshot := &contracts.RecommendationSnapshot{Status: contracts.StatusSuccess}

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&snapshot.ID,
		&snapshot.AsOfDate,
		&snapshot.GeneratedAt,
		&snapshot.Provider,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query success snapshot: %w", err)
	}
	snapshot.AsOfDate = snapshot.AsOfDate.UTC()

	items, err := r.listItems(ctx, snapshot.ID)
	if err != nil {
		return nil, err
	}
	snapshot.Items = items

	return snapshot, nil
}

func (r *Repository) listItems(ctx context.Context, snapshotID uuid.UUID) ([]contracts.RecommendationItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT rank, ticker, name, rationale, risk_notes, confidence
		FROM recommendation_items
		WHERE snapshot_id = $1
		ORDER BY rank ASC
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query recommendation items: %w", err)
	}
	defer rows.Close()

	items := make([]contracts.RecommendationItem, 0, contracts.MaxItems)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recommendation item: %w", err)
		}
		items = append(items, *item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate recommendation items: %w", rows.Err())
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*contracts.RecommendationItem, error) {
	var item contracts.RecommendationItem
	var rationale []string

	err := row.Scan(&item.Rank, &item.Ticker, &item.Name, &rationale, &item.RiskNotes, &item.Confidence)
	if err != nil {
		return nil, err
	}

	if len(rationale) != 3 {
		return nil, fmt.Errorf("invalid rationale length %d for ticker %s", len(rationale), item.Ticker)
	}
	copy(item.Rationale[:], rationale)

	return &item, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
