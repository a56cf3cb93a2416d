package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/BaekSe/tootoo-recomendation/internal/ingest"
	"github.com/BaekSe/tootoo-recomendation/internal/marketday"
	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
)

// IngestJob pulls daily features before the EOD run
type IngestJob struct {
	service  *ingest.Service
	resolver *marketday.Resolver
	logger   *logger.Logger
}

// NewIngestJob creates a new feature ingest job
func NewIngestJob(service *ingest.Service, resolver *marketday.Resolver, log *logger.Logger) *IngestJob {
	return &IngestJob{
		service:  service,
		resolver: resolver,
		logger:   log,
	}
}

// Name returns the job name
func (j *IngestJob) Name() string {
	return "feature_ingest"
}

// Schedule runs every weekday at 5 PM KST, between the close cutoff and the
// EOD run.
func (j *IngestJob) Schedule() string {
	return "0 0 17 * * MON-FRI"
}

// Run ingests features for the resolved as-of date.
func (j *IngestJob) Run(ctx context.Context) error {
	asOfDate, err := j.resolver.Resolve("", time.Now())
	if err != nil {
		return fmt.Errorf("resolve as-of date: %w", err)
	}

	if !j.resolver.IsTradingDay(asOfDate) {
		j.logger.WithField("as_of_date", asOfDate.Format("2006-01-02")).
			Info("Skipping ingest on non-trading day")
		return nil
	}

	affected, err := j.service.Run(ctx, asOfDate)
	if err != nil {
		return fmt.Errorf("ingest run: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"as_of_date": asOfDate.Format("2006-01-02"),
		"affected":   affected,
	}).Info("Scheduled ingest finished")

	return nil
}
