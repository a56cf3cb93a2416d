package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
)

// FeatureWriter is the persistence boundary the ingest service writes through.
type FeatureWriter interface {
	UpsertBatch(ctx context.Context, asOfDate time.Time, rows []contracts.FeatureRow) (int64, error)
	RecordIngestRun(ctx context.Context, asOfDate time.Time, provider, status string, errMsg *string, raw json.RawMessage) (uuid.UUID, error)
}

// Service runs one ingest: fetch from the provider, upsert atomically and
// record the run for auditing. 실패한 run도 기록을 남긴다.
type Service struct {
	provider DataProvider
	writer   FeatureWriter
	logger   *logger.Logger
}

// NewService creates an ingest service over the given provider
func NewService(provider DataProvider, writer FeatureWriter, log *logger.Logger) *Service {
	return &Service{
		provider: provider,
		writer:   writer,
		logger:   log,
	}
}

// Run ingests feature rows for the date and returns the affected row count.
func (s *Service) Run(ctx context.Context, asOfDate time.Time) (int64, error) {
	log := s.logger.WithFields(map[string]interface{}{
		"as_of_date": asOfDate.Format(contracts.DateFormat),
		"provider":   s.provider.Name(),
	})

	rows, raw, err := s.provider.FetchDailyFeatures(ctx, asOfDate)
	if err != nil {
		errMsg := err.Error()
		runID, recErr := s.writer.RecordIngestRun(ctx, asOfDate, s.provider.Name(), "error", &errMsg, raw)
		if recErr != nil {
			log.WithError(recErr).Error("failed to record failed ingest run")
		} else {
			log.WithError(err).WithField("run_id", runID.String()).Error("ingest failed")
		}
		return 0, fmt.Errorf("fetch daily features: %w", err)
	}

	affected, err := s.writer.UpsertBatch(ctx, asOfDate, rows)
	if err != nil {
		errMsg := err.Error()
		if _, recErr := s.writer.RecordIngestRun(ctx, asOfDate, s.provider.Name(), "error", &errMsg, raw); recErr != nil {
			log.WithError(recErr).Error("failed to record failed ingest run")
		}
		return 0, fmt.Errorf("upsert features: %w", err)
	}

	runID, err := s.writer.RecordIngestRun(ctx, asOfDate, s.provider.Name(), "success", nil, raw)
	if err != nil {
		return affected, fmt.Errorf("record ingest run: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"run_id":   runID.String(),
		"fetched":  len(rows),
		"affected": affected,
	}).Info("ingest complete")

	return affected, nil
}
