package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/agent-incentives/internal/config"
	"github.com/iliyamo/agent-incentives/internal/database"
	"github.com/iliyamo/agent-incentives/internal/handler"
	"github.com/iliyamo/agent-incentives/internal/repository"
)

var rollbackSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations (or roll back with --down)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.Load()
		log := config.NewLogger(cfg)

		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return err
		}
		defer db.Close()

		if rollbackSteps > 0 {
			if err := database.Rollback(db, cfg.DBName, rollbackSteps); err != nil {
				return err
			}
			log.Info().Int("steps", rollbackSteps).Msg("migrations rolled back")
			return nil
		}
		version, err := database.Migrate(db, cfg.DBName)
		if err != nil {
			return err
		}
		log.Info().Uint("version", version).Msg("schema up to date")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the sample agency, hotels and bookings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSeeder(cmd.Context(), func(ctx context.Context, s *repository.SeedRepo) error {
			seeded, err := s.Seed(ctx)
			if err != nil {
				return err
			}
			if !seeded {
				fmt.Fprintln(cmd.OutOrStdout(), handler.MsgAlreadySeeded)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), handler.MsgSeeded)
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every booking, hotel, agent and agency",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSeeder(cmd.Context(), func(ctx context.Context, s *repository.SeedRepo) error {
			if err := s.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), handler.MsgCleared)
			return nil
		})
	},
}

func init() {
	migrateCmd.Flags().IntVar(&rollbackSteps, "down", 0, "number of migrations to roll back")
}

func withSeeder(parent context.Context, fn func(context.Context, *repository.SeedRepo) error) error {
	cfg := config.Load()
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()
	return fn(ctx, repository.NewSeedRepo(db))
}
