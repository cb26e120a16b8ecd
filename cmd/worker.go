/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/alva-alumni/apiserver/config"
	"github.com/alva-alumni/apiserver/internal/logging"
	"github.com/alva-alumni/apiserver/internal/mailer"
	"github.com/alva-alumni/apiserver/internal/mq"
	"github.com/alva-alumni/apiserver/internal/worker"
	"github.com/spf13/cobra"
)

// workerCmd consumes account events and sends notification emails.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Send notification emails for account events",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Env, cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is required to run the worker")
		}
		defer queue.Close()

		m, err := mailer.New(cfg.SMTP)
		if err != nil {
			return err
		}

		logger.Info().Str("mq", cfg.MQ.Backend).Msg("worker started")
		return worker.New(queue, m, logger).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
