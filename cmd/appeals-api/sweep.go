package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-appeals-api/internal/service"
	"github.com/noah-isme/sma-appeals-api/pkg/config"
	"github.com/noah-isme/sma-appeals-api/pkg/logger"
)

var sweepHorizon int

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Bucket outstanding appeals by deadline once and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logr, err := logger.New(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer logr.Sync() //nolint:errcheck

		horizon := cfg.Appeals.DeadlineHorizonDays
		if sweepHorizon > 0 {
			horizon = sweepHorizon
		}

		ctx := cmd.Context()
		store, db, err := openStore(ctx, cfg, logr, false)
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close() //nolint:errcheck
		}

		buckets, err := service.NewDeadlineSweeper(store, nil, logr, horizon).Sweep(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(buckets)
	},
}

func init() {
	sweepCmd.Flags().IntVar(&sweepHorizon, "horizon", 0, "days ahead to include (defaults to APPEALS_DEADLINE_HORIZON_DAYS)")
}
