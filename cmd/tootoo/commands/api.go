package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BaekSe/tootoo-recomendation/internal/api"
	"github.com/BaekSe/tootoo-recomendation/internal/api/handlers"
	"github.com/BaekSe/tootoo-recomendation/internal/storage"
	"github.com/BaekSe/tootoo-recomendation/pkg/config"
	"github.com/BaekSe/tootoo-recomendation/pkg/database"
	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
	"github.com/BaekSe/tootoo-recomendation/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "추천 조회 API 서버 시작",
	Long: `읽기 전용 추천 API 서버를 시작합니다.

Endpoints:
  GET /healthz                        - Health check
  GET /snapshots/latest               - 최신 success 스냅샷
  GET /snapshots/{as_of_date}         - 날짜별 success 스냅샷
  GET /items/{as_of_date}/{ticker}    - 단일 추천 아이템

Example:
  go run ./cmd/tootoo api
  go run ./cmd/tootoo api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본값: PORT 환경변수)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
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

	// Redis가 꺼져 있으면 캐시는 조용히 no-op
	var cache *redis.Cache
	redisClient, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, serving without cache")
	} else {
		defer redisClient.Close()
		cache = redis.NewCache(redisClient, "tootoo")
	}

	snapshots := handlers.NewSnapshotHandler(storage.NewRepository(db.Pool), cache, log)
	router := api.NewRouter(snapshots, log)
	server := api.New(cfg, log, router)

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
