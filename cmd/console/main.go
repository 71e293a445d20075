package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/scene-engine/internal/config"
	"github.com/jwebster45206/scene-engine/internal/logger"
	"github.com/jwebster45206/scene-engine/internal/prefetch"
	"github.com/jwebster45206/scene-engine/internal/scenecache"
	"github.com/jwebster45206/scene-engine/internal/scenesync"
	"github.com/jwebster45206/scene-engine/internal/services"
	"github.com/jwebster45206/scene-engine/internal/session"
	"github.com/jwebster45206/scene-engine/pkg/prompts"
)

const logFileName = "console.log"

func main() {
	// The console normally draws through a scene-engine API acting as gateway.
	if os.Getenv("IMAGE_PROVIDER") == "" {
		_ = os.Setenv("IMAGE_PROVIDER", config.ProviderGateway)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create state dir: %v\n", err)
		os.Exit(1)
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.StateDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logFile.Close()
	}()

	log := logger.SetupWriter(cfg, logFile)

	engine, err := newEngine(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start scene engine: %v\n", err)
		os.Exit(1)
	}

	playerID, err := loadPlayerID(cfg.StateDir)
	if err != nil {
		log.Warn("Could not read saved player id", "error", err)
	}

	game := services.NewGameClient(cfg.GameServerURL, 30*time.Second)

	p := tea.NewProgram(NewConsoleUI(cfg, game, engine, playerID),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}

	stats := engine.cache.Stats()
	log.Info("Console exited",
		"cache_entries", engine.cache.Len(),
		"hits", stats.Hits,
		"producer_calls", stats.ProducerCalls)
}

// engine is the embedded scene engine: one cache shared by every session.
type engine struct {
	cache    *scenecache.Cache
	sessions *session.Manager
}

func newEngine(cfg *config.Config, log *slog.Logger) (*engine, error) {
	gen, err := services.NewImageGenerator(cfg, log)
	if err != nil {
		return nil, err
	}

	cache, err := scenecache.New(
		scenecache.WithCapacity(cfg.SceneCacheSize),
		scenecache.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	pipeline := scenesync.NewPipeline(cache, gen, prompts.NewPrompter(cfg.SafePrompts))
	prefetcher := prefetch.New(pipeline, log, prefetch.WithConcurrency(cfg.PrefetchConcurrency))

	return &engine{
		cache:    cache,
		sessions: session.NewManager(pipeline, prefetcher, nil, log),
	}, nil
}
