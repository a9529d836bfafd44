// cmd/entitlement-service/migrate.go
package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"entitlement-service/internal/common/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		zapLog := newLogger(cfg)
		defer zapLog.Sync()

		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		applied, err := database.Migrate(ctx, pg.DB)
		if err != nil {
			return err
		}
		for _, m := range applied {
			zapLog.Info("migration applied", zap.Int64("version", m.Version), zap.String("path", m.Path))
		}
		zapLog.Info("database is up to date", zap.Int("applied", len(applied)))
		return nil
	},
}
