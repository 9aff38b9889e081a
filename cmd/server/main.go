package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/docdots/internal/api"
	"github.com/dgallion1/docdots/internal/config"
	"github.com/dgallion1/docdots/internal/embed"
	"github.com/dgallion1/docdots/internal/pipeline"
	"github.com/dgallion1/docdots/internal/retrieval"
	"github.com/dgallion1/docdots/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// A missing .env is normal in production.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load(os.Getenv("DOCDOTS_CONFIG"))
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage and embedding.
	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, documents are kept in memory only")
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Error("failed to create upload dir", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}

	embedder, err := embed.Open(ctx, cfg.Embedding, log)
	if err != nil {
		log.Error("failed to initialize embeddings", "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, st, embedder, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	engine := retrieval.NewEngine(st, embedder, log)
	srv := api.NewServer(orch, st, engine, embedder, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}

		orch.Stop()
		if err := embedder.Close(); err != nil {
			log.Warn("closing embedder", "error", err)
		}
		st.Close()
	}()

	log.Info("starting docdots", "port", cfg.Port, "embedding_provider", embedder.Provider(), "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
