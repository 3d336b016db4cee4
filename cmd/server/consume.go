package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/agent-incentives/internal/config"
	"github.com/iliyamo/agent-incentives/internal/queue"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Append registration and booking events from RabbitMQ to audit logs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		log := config.NewLogger(config.LoadLogging())
		ev := config.LoadEventsConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		consumer := &queue.AuditConsumer{URL: ev.URL, LogDir: ev.LogDir, Log: log}
		log.Info().Str("dir", ev.LogDir).Msg("audit consumer started")
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
