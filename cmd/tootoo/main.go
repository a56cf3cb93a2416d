package main

import (
	"os"

	"github.com/BaekSe/tootoo-recomendation/cmd/tootoo/commands"
)

// main is the entry point for the tootoo CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/tootoo [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
