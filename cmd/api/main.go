package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/gm-engine/internal/config"
	"github.com/jwebster45206/gm-engine/internal/handlers"
	"github.com/jwebster45206/gm-engine/internal/logger"
	"github.com/jwebster45206/gm-engine/internal/middleware"
	"github.com/jwebster45206/gm-engine/internal/services"
	"github.com/jwebster45206/gm-engine/internal/services/events"
	"github.com/jwebster45206/gm-engine/internal/session"
)

const janitorInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting GM Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName,
		"storage", cfg.StorageBackend)

	llmService, err := services.NewLLMService(cfg, log)
	if err != nil {
		log.Error("Failed to configure LLM provider", "error", err)
		os.Exit(1)
	}

	store, publisher, broadcaster, err := openStorage(cfg, log)
	if err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	if err := llmService.InitModel(ctx, cfg.ModelName); err != nil {
		cancel()
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}
	cancel()

	manager := session.NewManager(store, log)
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go manager.RunJanitor(janitorCtx, janitorInterval)

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(store, cfg.LLMProvider, log))

	chatHandler := handlers.NewChatHandler(manager, llmService, publisher, handlers.ChatOptions{
		HistoryLimit:  cfg.HistoryLimit,
		ContentRating: cfg.ContentRating,
	}, log)
	mux.Handle("/v1/chat", chatHandler)

	gameStateHandler := handlers.NewGameStateHandler(manager, publisher, log)
	mux.Handle("/v1/gamestate", gameStateHandler)
	mux.Handle("/v1/gamestate/", gameStateHandler)

	if broadcaster != nil {
		mux.Handle("/v1/events/gamestate/", handlers.NewEventsHandler(broadcaster, log))
	}

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log, mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the events stream is long-lived.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")
	stopJanitor()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}

// openStorage builds the configured session store. The Redis backend
// also provides the event broadcaster; the memory backend publishes
// nowhere.
func openStorage(cfg *config.Config, log *slog.Logger) (session.Store, events.Publisher, *events.Broadcaster, error) {
	if cfg.StorageBackend != config.StorageRedis {
		return session.NewMemoryStore(cfg.SessionCapacity, cfg.SessionTTL), events.NopPublisher{}, nil, nil
	}

	client, err := session.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	store := session.NewRedisStore(client, cfg.SessionTTL, log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := store.WaitForConnection(ctx, 30, 2*time.Second); err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}

	broadcaster := events.NewBroadcaster(client, log)
	return store, broadcaster, broadcaster, nil
}
