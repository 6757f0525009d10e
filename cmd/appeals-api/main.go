package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// @title Student Appeals API
// @version 1.0.0
// @description Appeal lifecycle engine: submission, review, decisions, notes, assignment and deadlines.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var rootCmd = &cobra.Command{
	Use:           "appeals-api",
	Short:         "Student appeal lifecycle service",
	Long:          `Serves the appeals HTTP API and runs its maintenance tasks. Configuration is read from the environment and an optional .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
