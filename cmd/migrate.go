package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-kiosk-payments/config"
	"github.com/vibast-solutions/ms-go-kiosk-payments/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded MySQL schema",
	Run:   runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	if cfg.Storage.Driver != config.StorageDriverMySQL {
		logrus.WithField("driver", cfg.Storage.Driver).Fatal("migrate requires STORAGE_DRIVER=mysql")
	}

	db := mustOpenDatabase(cfg)
	defer func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	all, err := migrations.All()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load migrations")
	}
	for _, migration := range all {
		for _, statement := range migration.Statements {
			if _, err := db.ExecContext(ctx, statement); err != nil {
				logrus.WithError(err).WithField("migration", migration.Name).Fatal("Migration failed")
			}
		}
		logrus.WithField("migration", migration.Name).Info("Migration applied")
	}
}
