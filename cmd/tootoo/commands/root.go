package commands

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tootoo",
	Short: "tootoo - EOD LLM 주식 추천 시스템",
	Long: `tootoo Unified CLI

하루 한 번 돌아가는 EOD 배치가 후보 유니버스를 만들고 LLM에게 추천을 받아
불변 스냅샷으로 저장한다. 읽기 API가 그 스냅샷을 서빙한다.

Usage:
  go run ./cmd/tootoo [command]

Examples:
  go run ./cmd/tootoo run --as-of-date 2026-03-10
  go run ./cmd/tootoo ingest --provider stub --size 500
  go run ./cmd/tootoo api
  go run ./cmd/tootoo scheduler`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}
