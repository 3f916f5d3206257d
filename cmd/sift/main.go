package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/siftnews/sift/internal/config"
	"github.com/siftnews/sift/internal/feeds"
	"github.com/siftnews/sift/internal/fetch"
	"github.com/siftnews/sift/internal/ingest"
	"github.com/siftnews/sift/internal/logging"
	"github.com/siftnews/sift/internal/oracle"
	"github.com/siftnews/sift/internal/ranking"
	"github.com/siftnews/sift/internal/store"
	"github.com/siftnews/sift/internal/web"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Data directory: ~/.sift/
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}
	dataDir := filepath.Join(homeDir, ".sift")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	if err := logging.Init(dataDir); err != nil {
		log.Fatalf("Failed to init logging: %v", err)
	}
	defer logging.Close()

	cfg, err := config.Load(dataDir)
	if err != nil {
		logging.Fatal("Failed to load config", "error", err)
	}

	st, err := store.Open(filepath.Join(dataDir, "sift.db"), store.Options{
		HistoryLimit: cfg.Ingest.HistoryLimit,
		PoolSize:     cfg.Ingest.PoolSize,
		Priorities:   ranking.Priorities(cfg.Sources.Priorities),
	})
	if err != nil {
		logging.Fatal("Failed to open database", "error", err)
	}
	defer st.Close()

	sources := []feeds.Source{
		feeds.NewHackerNews(""),
		feeds.NewLobsters("", cfg.Sources.LobstersPages),
	}

	var provider oracle.Provider
	switch cfg.Oracle.Provider {
	case "ollama":
		provider = oracle.NewOllamaProvider(cfg.Oracle.Endpoint, cfg.Oracle.Model)
	default:
		provider = oracle.NewAnthropicProvider(cfg.Oracle.APIKey, cfg.Oracle.Model)
	}
	if !provider.Available() {
		logging.Warn("Oracle provider not available; items will stay pending",
			"provider", provider.Name())
	}

	classifier := oracle.NewClassifier(provider, cfg.Oracle.MaxRounds, cfg.Ingest.HistoryLimit)
	fetcher := fetch.New(cfg.Ingest.FetchWorkers, cfg.Ingest.FetchAttempts)

	coordinator := ingest.New(st, fetcher, classifier, sources,
		time.Duration(cfg.Ingest.IntervalMinutes)*time.Minute,
		time.Duration(cfg.Ingest.CycleTimeoutMinutes)*time.Minute)
	coordinator.Start(ctx)

	server := web.New(st, cfg.Web.Addr, cfg.Web.PageSize)
	go func() {
		if err := server.Start(); err != nil {
			logging.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("HTTP shutdown failed", "error", err)
	}
	coordinator.Wait()
}
