package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BaekSe/tootoo-recomendation/internal/storage"
	"github.com/BaekSe/tootoo-recomendation/pkg/config"
	"github.com/BaekSe/tootoo-recomendation/pkg/database"
	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
)

// migrateCmd applies pending schema migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "DB 스키마 마이그레이션 적용",
	Long: `내장된 마이그레이션 파일을 순서대로 적용합니다.

run/api/scheduler 명령도 시작 시 자동으로 적용하므로 평소에는 따로 돌릴
필요가 없습니다.

Example:
  go run ./cmd/tootoo migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
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

	log.Info("Migrations applied")
	return nil
}
