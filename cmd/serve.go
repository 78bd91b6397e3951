package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safecircle/backend/internal/api/handler"
	"safecircle/backend/internal/chathub"
	"safecircle/backend/internal/livelocation"
	"safecircle/backend/internal/localization"
	"safecircle/backend/internal/realtime"
	"safecircle/backend/internal/storage"
	"safecircle/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	store := storage.NewStorageService(db, rdb)
	if err := store.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("database and redis connections established")

	hub := realtime.NewHub(log.Named("hub"))
	hub.SetRelay(realtime.NewRedisRelay(rdb, log.Named("relay")))

	loc := localization.Default()
	chatOpts := []chathub.Option{chathub.WithLocalizer(loc)}
	locationOpts := []livelocation.Option{
		livelocation.WithIdleTimeout(cfg.LocationIdleTimeout),
		livelocation.WithHistoryLimit(cfg.LocationHistoryLimit),
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramAlertChatID != 0 {
		alerts, err := telegram.NewAlertSender(cfg.TelegramBotToken, cfg.TelegramAlertChatID, loc, log.Named("telegram"))
		if err != nil {
			log.Warn("telegram alerts disabled", zap.Error(err))
		} else {
			chatOpts = append(chatOpts, chathub.WithNotifier(alerts))
			locationOpts = append(locationOpts, livelocation.WithNotifier(alerts))
		}
	}

	chat := chathub.NewCoordinator(store, chathub.NewRegistry(), hub, log.Named("chat"), chatOpts...)
	chat.Register(hub)

	location := livelocation.NewCoordinator(hub, log.Named("location"), locationOpts...)
	location.Register(hub)

	hubErr := make(chan error, 1)
	go func() { hubErr <- hub.Run(ctx) }()

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	handler.NewHandler(hub, handler.NewAuthenticator(cfg.JWTSecret), cfg, log.Named("http"),
		handler.WithPresence(chat.Registry()),
		handler.WithSessions(location),
	).Routes(r)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-serverErr:
		stop()
		if runErr != nil {
			log.Error("http server failed", zap.Error(runErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}

	if err := <-hubErr; err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("hub stopped", zap.Error(err))
	}
	location.Close()
	chat.Registry().Reset()
	log.Info("shutdown complete")
	return runErr
}
