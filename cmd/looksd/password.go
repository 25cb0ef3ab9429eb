package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"looksdehoje-backend/internal/db"
	"looksdehoje-backend/internal/session"
	"looksdehoje-backend/internal/store"
)

func newSetPasswordCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set-password <new-password>",
		Short: "Replace the admin password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := args[0]
			if len(password) < session.MinPasswordLen {
				return fmt.Errorf("%w: at least %d characters", session.ErrPasswordTooWeak, session.MinPasswordLen)
			}

			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			gormDB, err := db.Init(cmd.Context(), cfg, log)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			hash, err := session.HashPassword(password)
			if err != nil {
				return err
			}
			if err := store.NewGormStore(gormDB).SetAdminPassword(cmd.Context(), hash); err != nil {
				return err
			}
			log.Info("admin password updated", zap.String("driver", cfg.Database.Driver))
			return nil
		},
	}
}
