package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
)

// upsertChunkSize bounds one batched upsert statement.
// 원격 DB 라운드트립을 줄이기 위한 배치 크기.
const upsertChunkSize = 200

// FeatureRepository handles stock_features_daily persistence
// ⭐ SSOT: 피처 row 쓰기는 인제스트에서만, 코어는 ListByDate로 읽기만
type FeatureRepository struct {
	db *pgxpool.Pool
}

// NewFeatureRepository creates a new FeatureRepository
func NewFeatureRepository(db *pgxpool.Pool) *FeatureRepository {
	return &FeatureRepository{db: db}
}

// ListByDate returns every feature row for the as-of date, ordered by ticker
// for deterministic iteration.
func (r *FeatureRepository) ListByDate(ctx context.Context, asOfDate time.Time) ([]contracts.FeatureRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT as_of_date, ticker, name, trading_value, features
		FROM stock_features_daily
		WHERE as_of_date = $1
		ORDER BY ticker ASC
	`, asOfDate)
	if err != nil {
		return nil, fmt.Errorf("query stock_features_daily: %w", err)
	}
	defer rows.Close()

	var out []contracts.FeatureRow
	for rows.Next() {
		var row contracts.FeatureRow
		var featuresJSON []byte

		if err := rows.Scan(&row.AsOfDate, &row.Ticker, &row.Name, &row.TradingValue, &featuresJSON); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		if err := json.Unmarshal(featuresJSON, &row.Features); err != nil {
			return nil, fmt.Errorf("unmarshal features for %s: %w", row.Ticker, err)
		}
		row.AsOfDate = row.AsOfDate.UTC()

		out = append(out, row)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate feature rows: %w", rows.Err())
	}

	return out, nil
}

// UpsertBatch writes feature rows for one date atomically. Re-ingestion for
// the same date overwrites rows in place, never appends.
func (r *FeatureRepository) UpsertBatch(ctx context.Context, asOfDate time.Time, items []contracts.FeatureRow) (int64, error) {
	if len(items) == 0 {
		return 0, fmt.Errorf("items must be non-empty")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var affected int64
	for start := 0; start < len(items); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(items) {
			end = len(items)
		}

		batch := &pgx.Batch{}
		for _, item := range items[start:end] {
			featuresJSON, err := json.Marshal(item.Features)
			if err != nil {
				return 0, fmt.Errorf("marshal features for %s: %w", item.Ticker, err)
			}
			batch.Queue(`
				INSERT INTO stock_features_daily (as_of_date, ticker, name, trading_value, features)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (as_of_date, ticker) DO UPDATE SET
					name = EXCLUDED.name,
					trading_value = EXCLUDED.trading_value,
					features = EXCLUDED.features
			`, asOfDate, item.Ticker, item.Name, item.TradingValue, featuresJSON)
		}

		results := tx.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				return 0, fmt.Errorf("batch upsert stock_features_daily: %w", err)
			}
			affected += tag.RowsAffected()
		}
		if err := results.Close(); err != nil {
			return 0, fmt.Errorf("close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return affected, nil
}

// RecordIngestRun appends one row of ingest history (success or error).
func (r *FeatureRepository) RecordIngestRun(ctx context.Context, asOfDate time.Time, provider, status string, errMsg *string, raw json.RawMessage) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.db.Exec(ctx, `
		INSERT INTO stock_features_ingest_runs
			(id, as_of_date, generated_at, provider, status, error, raw_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, asOfDate, time.Now().UTC(), provider, status, errMsg, raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert stock_features_ingest_runs: %w", err)
	}

	return id, nil
}
