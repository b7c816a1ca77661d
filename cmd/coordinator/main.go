package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pagemate/pagemate/internal/handlers"
	"github.com/pagemate/pagemate/internal/services"
)

func main() {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	appDir := filepath.Join(cfgDir, "pagemate")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating config directory: %w", err))
	}

	cfg, err := loadConfig(filepath.Join(appDir, "config.yaml"))
	if err != nil {
		log.Fatal(err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	creds, err := services.LoadCredentials(filepath.Join(appDir, "keys.env"))
	if err != nil {
		log.Fatal(fmt.Errorf("error loading credentials: %w", err))
	}

	store, closeStore, err := openStore(cfg, appDir, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore()

	// One sweep at start-up; no periodic background sweep.
	threshold := time.Now().AddDate(0, 0, -cfg.RetentionDays)
	removed, err := store.ExpireOlderThan(context.Background(), threshold)
	if err != nil {
		log.Fatal(fmt.Errorf("error expiring old conversations: %w", err))
	}
	logger.Info("Expired old conversations",
		slog.Int("removed", removed),
		slog.Int("retentionDays", cfg.RetentionDays))

	summarizer := services.NewOpenAI(creds.OpenAIKey, cfg.Summarizer.BaseURL,
		cfg.Summarizer.Model, cfg.Summarizer.ReasoningEffort, cfg.Summarizer.MaxCompletionTokens, logger)
	drafter := services.NewAnthropic(creds.AnthropicKey, cfg.Drafter.BaseURL,
		cfg.Drafter.Model, cfg.Drafter.MaxTokens, logger)
	transcripts := services.NewNativeHost(cfg.TranscriptHelper.Command, cfg.TranscriptHelper.Args, logger)

	m := handlers.NewMain(summarizer, drafter, store, transcripts, creds, cfg.DraftNotes, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/messages", m.HandleMessages)
	mux.HandleFunc("/events", m.HandleEvents)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			log.Printf("Failed to shutdown sse server: %v", err)
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		log.Println("Coordinator starting on :" + cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		log.Printf("Server error: %v", err)

	case sig := <-shutdown:
		log.Printf("Start shutdown, signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
			if err := srv.Close(); err != nil {
				log.Printf("Forcing server close: %v", err)
			}
		}
	}
}

// openStore selects the conversation store backend. The bolt backend is durable across
// coordinator restarts; the memory backend is the documented degraded mode.
func openStore(cfg config, appDir string, logger *slog.Logger) (handlers.Store, func(), error) {
	switch cfg.StoreBackend {
	case "", "bolt":
		boltStore, err := services.NewBoltStore(filepath.Join(appDir, "conversations.db"))
		if err != nil {
			return nil, nil, fmt.Errorf("error opening conversation store: %w", err)
		}
		return boltStore, func() {
			if err := boltStore.Close(); err != nil {
				log.Printf("Failed to close conversation store: %v", err)
			}
		}, nil

	case "memory":
		logger.Warn("Using in-memory conversation store; conversations will not survive a coordinator restart")
		return services.NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
}
