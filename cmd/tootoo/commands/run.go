package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
	"github.com/BaekSe/tootoo-recomendation/internal/eod"
	"github.com/BaekSe/tootoo-recomendation/internal/llm"
	"github.com/BaekSe/tootoo-recomendation/internal/marketday"
	"github.com/BaekSe/tootoo-recomendation/internal/storage"
	"github.com/BaekSe/tootoo-recomendation/internal/universe"
	"github.com/BaekSe/tootoo-recomendation/pkg/config"
	"github.com/BaekSe/tootoo-recomendation/pkg/database"
	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
)

// runCmd executes one EOD recommendation run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "EOD 추천 run 1회 실행",
	Long: `하루치 EOD 추천 run을 실행합니다.

이 명령어는:
- as-of 날짜 판정 (생략 시 KST 마감 컷오프 기준)
- 날짜 단위 advisory lock 획득
- 후보 유니버스 생성 → LLM 생성 → 스냅샷 저장

Example:
  go run ./cmd/tootoo run
  go run ./cmd/tootoo run --as-of-date 2026-03-10
  go run ./cmd/tootoo run --dry-run
  go run ./cmd/tootoo run --stub-universe`,
	RunE: runEOD,
}

var (
	runAsOfDate     string
	runDryRun       bool
	runStubUniverse bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runAsOfDate, "as-of-date", "", "as-of 날짜 (YYYY-MM-DD, 생략 시 자동 판정)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "DB 접근 없이 날짜 판정까지만")
	runCmd.Flags().BoolVar(&runStubUniverse, "stub-universe", false, "DB 대신 합성 후보 유니버스 사용")
}

func runEOD(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)
	resolver := marketday.NewResolver(cfg.Market)

	// dry-run은 DB 연결 전에 끝낸다
	if runDryRun {
		asOfDate, err := resolver.Resolve(runAsOfDate, time.Now())
		if err != nil {
			return err
		}
		log.WithFields(map[string]interface{}{
			"as_of_date": asOfDate.Format(contracts.DateFormat),
			"dry_run":    true,
		}).Info("EOD run (dry-run)")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db.Pool, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	var builder contracts.UniverseBuilder
	if runStubUniverse || cfg.Universe.Stub {
		builder = universe.NewStubBuilder(cfg.Universe.MaxCandidates)
	} else {
		builder = universe.NewBuilder(storage.NewFeatureRepository(db.Pool), cfg.Universe)
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

	result, err := runner.Run(ctx, runAsOfDate, false)
	if err != nil {
		return err
	}

	log.WithFields(map[string]interface{}{
		"as_of_date": result.AsOfDate.Format(contracts.DateFormat),
		"outcome":    string(result.Outcome),
	}).Info("EOD run finished")

	return nil
}
