package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/learnmap/core/cmd/api/commands"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "learnmap",
		Short:   "LearnMap API Server",
		Long:    `LearnMap is a collaborative learning tracker that organizes study plans into topics, goals and tasks with per-day progress tracking.`,
		Version: version,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewProfileCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
