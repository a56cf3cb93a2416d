package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
	"github.com/BaekSe/tootoo-recomendation/internal/eod"
	"github.com/BaekSe/tootoo-recomendation/internal/ingest"
	"github.com/BaekSe/tootoo-recomendation/internal/llm"
	"github.com/BaekSe/tootoo-recomendation/internal/marketday"
	"github.com/BaekSe/tootoo-recomendation/internal/scheduler"
	"github.com/BaekSe/tootoo-recomendation/internal/scheduler/jobs"
	"github.com/BaekSe/tootoo-recomendation/internal/storage"
	"github.com/BaekSe/tootoo-recomendation/internal/universe"
	"github.com/BaekSe/tootoo-recomendation/pkg/config"
	"github.com/BaekSe/tootoo-recomendation/pkg/database"
	"github.com/BaekSe/tootoo-recomendation/pkg/httputil"
	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
)

// schedulerCmd runs the in-process job scheduler
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 시작 (인제스트 + EOD run)",
	Long: `KST 기준 스케줄로 평일 인제스트와 EOD run을 실행합니다.

Jobs:
  feature_ingest      - 평일 17:00 KST
  eod_recommendation  - 평일 18:00 KST

run은 락 + success 중복 확인으로 멱등하므로 외부 트리거와 겹쳐도 안전합니다.

Example:
  go run ./cmd/tootoo scheduler`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := storage.Migrate(context.Background(), db.Pool, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	resolver := marketday.NewResolver(cfg.Market)
	featureRepo := storage.NewFeatureRepository(db.Pool)

	var builder contracts.UniverseBuilder
	if cfg.Universe.Stub {
		builder = universe.NewStubBuilder(cfg.Universe.MaxCandidates)
	} else {
		builder = universe.NewBuilder(featureRepo, cfg.Universe)
	}

	generator, err := llm.NewGeneratorFromConfig(cfg.LLM, log)
	if err != nil {
		return fmt.Errorf("init LLM provider: %w", err)
	}

	runner := eod.NewRunner(
		resolver,
		builder,
		generator,
		storage.NewRepository(db.Pool),
		storage.NewAdvisoryLock(db.Pool, log),
		log,
	)

	httpClient := httputil.New(cfg, log)
	provider, err := ingest.NewHTTPJSONProvider(cfg.Ingest, httpClient, log)
	if err != nil {
		return fmt.Errorf("init ingest provider: %w", err)
	}
	ingestService := ingest.NewService(provider, featureRepo, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewIngestJob(ingestService, resolver, log)); err != nil {
		return err
	}
	if err := sched.AddJob(jobs.NewEODJob(runner, log)); err != nil {
		return err
	}

	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.WithField("signal", sig.String()).Info("Shutdown signal received")
	sched.Stop()

	return nil
}
