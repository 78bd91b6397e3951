// Command safecircle runs the realtime backend: presence and counselling chat
// plus live-location sharing over one WebSocket endpoint.
package main

import (
	"fmt"
	"log"

	"safecircle/backend/internal/config"
	"safecircle/backend/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:          "safecircle",
	Short:        "Realtime backend: presence, counselling chat and live location",
	Long:         `HTTP + WebSocket server. Commands: serve (default), migrate, admin.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(adminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// setup loads and validates configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger, nil
}
