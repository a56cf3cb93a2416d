package jobs

import (
	"context"
	"fmt"

	"github.com/BaekSe/tootoo-recomendation/internal/eod"
	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
)

// EODJob runs the daily recommendation job after market close
// ⭐ SSOT: EOD run 스케줄은 이 Job에서만
type EODJob struct {
	runner *eod.Runner
	logger *logger.Logger
}

// NewEODJob creates a new EOD recommendation job
func NewEODJob(runner *eod.Runner, log *logger.Logger) *EODJob {
	return &EODJob{
		runner: runner,
		logger: log,
	}
}

// Name returns the job name
func (j *EODJob) Name() string {
	return "eod_recommendation"
}

// Schedule runs every weekday at 6 PM KST, after the close cutoff and the
// feature ingest.
func (j *EODJob) Schedule() string {
	return "0 0 18 * * MON-FRI"
}

// Run executes one EOD run for the resolved date.
func (j *EODJob) Run(ctx context.Context) error {
	result, err := j.runner.Run(ctx, "", false)
	if err != nil {
		return fmt.Errorf("eod run: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"as_of_date": result.AsOfDate.Format("2006-01-02"),
		"outcome":    string(result.Outcome),
	}).Info("Scheduled EOD run finished")

	return nil
}
