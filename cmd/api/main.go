package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/scene-engine/internal/config"
	"github.com/jwebster45206/scene-engine/internal/handlers"
	"github.com/jwebster45206/scene-engine/internal/logger"
	"github.com/jwebster45206/scene-engine/internal/middleware"
	"github.com/jwebster45206/scene-engine/internal/prefetch"
	"github.com/jwebster45206/scene-engine/internal/scenecache"
	"github.com/jwebster45206/scene-engine/internal/scenesync"
	"github.com/jwebster45206/scene-engine/internal/services"
	"github.com/jwebster45206/scene-engine/internal/services/events"
	"github.com/jwebster45206/scene-engine/internal/session"
	"github.com/jwebster45206/scene-engine/internal/telemetry"
	"github.com/jwebster45206/scene-engine/pkg/prompts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Scene Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"image_provider", cfg.ImageProvider,
		"image_model", cfg.ImageModel)

	shutdownTracing, err := telemetry.Setup(context.Background(), cfg, "scene-engine-api")
	if err != nil {
		log.Error("Failed to set up tracing", "error", err)
		os.Exit(1)
	}

	generator, err := services.NewImageGenerator(cfg, log)
	if err != nil {
		log.Error("Failed to create image provider", "error", err)
		os.Exit(1)
	}

	cache, err := scenecache.New(
		scenecache.WithCapacity(cfg.SceneCacheSize),
		scenecache.WithLogger(log),
	)
	if err != nil {
		log.Error("Failed to create scene cache", "error", err)
		os.Exit(1)
	}

	pipeline := scenesync.NewPipeline(cache, generator, prompts.NewPrompter(cfg.SafePrompts))
	prefetcher := prefetch.New(pipeline, log, prefetch.WithConcurrency(cfg.PrefetchConcurrency))

	mux := http.NewServeMux()

	// Redis is optional: without it there is no event stream.
	var (
		redisService *services.RedisService
		redisHealth  services.HealthChecker
		publisher    session.Publisher
	)
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg.RedisURL, log)
		if err != nil {
			log.Error("Invalid Redis configuration", "error", err)
			os.Exit(1)
		}

		redisCtx, redisCancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err = redisService.WaitForConnection(redisCtx, 30, 2*time.Second)
		redisCancel()
		if err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}

		redisHealth = redisService
		publisher = events.NewBroadcaster(redisService.GetClient(), log)
		mux.Handle("/v1/events/scene/", handlers.NewEventsHandler(redisService.GetClient(), log))
	} else {
		log.Info("REDIS_URL not set; scene event streaming disabled")
	}

	sessions := session.NewManager(pipeline, prefetcher, publisher, log)
	gameServer := services.NewGameClient(cfg.GameServerURL, 30*time.Second)

	mux.Handle("/health", handlers.NewHealthHandler(redisHealth, cache, cfg.ImageProvider, log))
	mux.Handle("/v1/scene", handlers.NewSceneHandler(generator, log))
	mux.Handle("/v1/scene/state", handlers.NewSceneStateHandler(sessions, cache, log))
	mux.Handle("/v1/command", handlers.NewCommandHandler(gameServer, sessions, log))

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: image generation and SSE streams run long
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if redisService != nil {
		if err := redisService.Close(); err != nil {
			log.Error("Error closing Redis connection", "error", err)
		}
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Failed to flush traces", "error", err)
	}

	stats := cache.Stats()
	log.Info("Server exited",
		"scenes_cached", cache.Len(),
		"producer_calls", stats.ProducerCalls,
		"cache_hits", stats.Hits)
}
