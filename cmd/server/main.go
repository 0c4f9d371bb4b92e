package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weiawesome/live-cursors/internal/config"
	"github.com/weiawesome/live-cursors/internal/handler"
	"github.com/weiawesome/live-cursors/internal/hub"
	"github.com/weiawesome/live-cursors/internal/relay"
	"github.com/weiawesome/live-cursors/internal/service"
	"github.com/weiawesome/live-cursors/internal/store"
	pkglog "github.com/weiawesome/live-cursors/pkg/log"
	"github.com/weiawesome/live-cursors/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.LoadServer()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize structured logger
	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str(pkglog.FieldInstanceID, cfg.Server.InstanceID).
		Msg("starting cursors relay")

	// Presence records
	var presenceStore store.PresenceStore
	switch cfg.Presence.Store {
	case "memory":
		presenceStore = store.NewMemoryStore()
	default:
		presenceStore, err = store.NewRedisStore(store.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create redis store")
		}
	}
	defer presenceStore.Close()

	// Cross-instance event bus
	bus, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		logger.Fatal().Err(err).Str(pkglog.FieldMode, cfg.PubSub.Driver).Msg("failed to create pubsub")
	}
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())

	// Create hub
	h := hub.NewHub(cfg.WebSocket)
	go h.Run(ctx)

	// Create service
	svc := service.NewRoomService(h, presenceStore, bus, service.Config{
		PresenceTTL: cfg.Presence.TTL,
		InstanceID:  cfg.Server.InstanceID,
	})

	// Deliver other instances' room events to local clients
	subscriber := relay.NewSubscriber(bus, svc, cfg.Server.InstanceID)
	go subscriber.Run(ctx)

	// Create handlers and routes
	router := handler.NewRouter(handler.NewWSHandler(h, svc), handler.NewHTTPHandler(svc), logger)

	addr := cfg.Server.Addr()
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("cursors relay listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down cursors relay")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		cancel() // 1. stop the pubsub subscriber and the hub

		<-subscriber.Done() // 2. wait for the relay goroutine to exit
		<-h.Done()          // 3. every WebSocket is closed

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("cursors relay stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
