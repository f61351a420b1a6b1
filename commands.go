package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/raptaro/meditrakk-sub001/config"
	"github.com/raptaro/meditrakk-sub001/internal/board"
	"github.com/raptaro/meditrakk-sub001/pkg/utils"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the queue tables for the configured SQL store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			store, closeStore, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			m, ok := store.(migrator)
			if !ok {
				logger.Info().Str("store", cfg.QueueStore).Msg("nothing to migrate")
				return nil
			}
			if err := m.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Str("store", cfg.QueueStore).Msg("queue tables ready")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		staffID  string
		role     string
		username string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := utils.GenerateJWTToken(cfg.SigningSecret(), staffID, role, username, time.Now().Add(ttl))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&staffID, "staff-id", "", "id_karyawan of the operator")
	cmd.Flags().StringVar(&role, "role", "secretary", "role claim checked against OPERATOR_ROLES")
	cmd.Flags().StringVar(&username, "username", "", "username claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("staff-id")
	return cmd
}

func boardCmd() *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the waiting-room board in this terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			logger := newLogger(cfg).Output(zerolog.ConsoleWriter{Out: os.Stderr})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return board.New(serverURL, cmd.OutOrStdout(), logger).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&serverURL, "url", "http://localhost:8080", "base URL of the queue server")
	return cmd
}
