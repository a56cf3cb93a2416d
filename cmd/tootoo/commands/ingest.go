package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
	"github.com/BaekSe/tootoo-recomendation/internal/ingest"
	"github.com/BaekSe/tootoo-recomendation/internal/marketday"
	"github.com/BaekSe/tootoo-recomendation/internal/storage"
	"github.com/BaekSe/tootoo-recomendation/pkg/config"
	"github.com/BaekSe/tootoo-recomendation/pkg/database"
	"github.com/BaekSe/tootoo-recomendation/pkg/httputil"
	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
	"github.com/BaekSe/tootoo-recomendation/pkg/redis"
)

// ingestCmd pulls daily feature rows into stock_features_daily
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "일별 피처 데이터 인제스트",
	Long: `외부 원천에서 일별 피처 데이터를 받아 stock_features_daily에 업서트합니다.

Providers:
  http   - 범용 JSON 엔드포인트 (DATA_PROVIDER_BASE_URL)
  naver  - Naver Finance 랭킹
  stub   - 결정적 합성 데이터 (로컬 개발용)

Example:
  go run ./cmd/tootoo ingest --provider stub --size 500
  go run ./cmd/tootoo ingest --provider http --as-of-date 2026-03-10
  go run ./cmd/tootoo ingest --provider naver`,
	RunE: runIngest,
}

var (
	ingestProvider string
	ingestAsOfDate string
	ingestSize     int
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestProvider, "provider", "http", "데이터 원천 (http|naver|stub)")
	ingestCmd.Flags().StringVar(&ingestAsOfDate, "as-of-date", "", "as-of 날짜 (YYYY-MM-DD, 생략 시 자동 판정)")
	ingestCmd.Flags().IntVar(&ingestSize, "size", 500, "stub provider가 만들 행 수")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)
	resolver := marketday.NewResolver(cfg.Market)

	asOfDate, err := resolver.Resolve(ingestAsOfDate, time.Now())
	if err != nil {
		return err
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

	provider, err := buildProvider(cfg, log)
	if err != nil {
		return err
	}

	service := ingest.NewService(provider, storage.NewFeatureRepository(db.Pool), log)
	affected, err := service.Run(ctx, asOfDate)
	if err != nil {
		return err
	}

	log.WithFields(map[string]interface{}{
		"as_of_date": asOfDate.Format(contracts.DateFormat),
		"provider":   provider.Name(),
		"affected":   affected,
	}).Info("Ingest finished")

	return nil
}

func buildProvider(cfg *config.Config, log *logger.Logger) (ingest.DataProvider, error) {
	switch ingestProvider {
	case "http":
		httpClient := httputil.New(cfg, log)
		return ingest.NewHTTPJSONProvider(cfg.Ingest, httpClient, log)
	case "naver":
		httpClient := httputil.New(cfg, log)
		if redisClient, err := redis.New(cfg); err != nil {
			log.WithError(err).Warn("Redis unavailable, Naver rate limiting disabled")
		} else {
			limiter := redis.NewRateLimiter(redisClient, "tootoo")
			httpClient = httpClient.WithRateLimiter(limiter, redis.NaverRateLimit)
		}
		return ingest.NewNaverProvider(httpClient, log), nil
	case "stub":
		return ingest.NewStubProvider(ingestSize)
	default:
		return nil, fmt.Errorf("unknown provider: %s (http|naver|stub)", ingestProvider)
	}
}
