package main

import (
	"fmt"

	"safecircle/backend/internal/storage"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the users, chat_rooms and messages tables",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	if err := storage.NewStorageService(db, nil).AutoMigrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("migrations complete")
	return nil
}
