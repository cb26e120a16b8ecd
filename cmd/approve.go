/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/alva-alumni/apiserver/config"
	"github.com/alva-alumni/apiserver/internal/auth"
	"github.com/alva-alumni/apiserver/internal/db"
	"github.com/alva-alumni/apiserver/internal/events"
	"github.com/alva-alumni/apiserver/internal/logging"
	"github.com/alva-alumni/apiserver/internal/mq"
	"github.com/alva-alumni/apiserver/internal/services"
	"github.com/alva-alumni/apiserver/internal/store"
	"github.com/spf13/cobra"
)

var revokeApproval bool

// approveCmd grants (or revokes) login access for a registered alumnus.
var approveCmd = &cobra.Command{
	Use:   "approve <email>",
	Short: "Approve a pending alumni account",
	Long: `Approve a pending alumni account so it can log in. Usage:

	alumni approve asha@example.com
	alumni approve --revoke asha@example.com
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Env, cfg.LogLevel)
		ctx := cmd.Context()

		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open message queue: %w", err)
		}
		var sender events.Sender
		if queue != nil {
			defer queue.Close()
			sender = queue
		}

		svc := services.NewAlumniService(
			store.NewAlumniRepository(conn),
			auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
			nil,
			events.NewPublisher(sender, logger),
		)
		alumni, err := svc.SetApproved(ctx, args[0], !revokeApproval)
		if err != nil {
			return err
		}

		state := "approved"
		if !alumni.IsApproved {
			state = "revoked"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n", alumni.Email, alumni.ID, state)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(approveCmd)
	approveCmd.Flags().BoolVar(&revokeApproval, "revoke", false, "revoke approval instead of granting it")
}
