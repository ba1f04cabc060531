package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pairpad/internal/api"
	"pairpad/internal/config"
	"pairpad/internal/db"
	"pairpad/internal/hub"
	"pairpad/internal/repository"
	"pairpad/internal/telemetry"
)

func main() {
	log.Println("starting pairpad relay hub...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	jaegerShutdown, err := telemetry.InitJaeger("pairpad-hub", cfg.JaegerEndpoint)
	if err != nil {
		log.Printf("failed to initialize Jaeger: %v (continuing without tracing)", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			log.Printf("failed to shutdown Jaeger: %v", err)
		}
	}()

	relay := hub.New()

	var archive *repository.RoomArchive
	if cfg.ArchiveEnabled {
		database, err := db.NewGorm(cfg)
		if err != nil {
			log.Fatalf("failed to connect to archive database: %v", err)
		}
		defer database.Close()
		archive = repository.NewRoomArchive(database.DB)
		relay.SetArchive(archive)
	}

	if cfg.RedisAddr != "" {
		bridge, err := hub.NewRedisBridge(cfg.RedisAddr)
		if err != nil {
			log.Fatalf("failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
		}
		relay.SetBridge(bridge)
	}

	relay.Start()

	wsHandler := hub.NewHandler(relay)
	handler := api.NewHandler(wsHandler, relay, archive)
	router := api.SetupRoutes(handler)

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("hub listening on http://%s", cfg.ListenAddr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	relay.Shutdown()
	log.Println("shutdown complete")
}
