package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/tablegest/internal/api"
	"github.com/dgallion1/tablegest/internal/config"
	"github.com/dgallion1/tablegest/internal/extractor"
	"github.com/dgallion1/tablegest/internal/pipeline"
	"github.com/dgallion1/tablegest/internal/stats"
	"github.com/dgallion1/tablegest/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	extCfg, err := cfg.Extractor()
	if err != nil {
		log.Error("invalid extractor configuration", "path", cfg.ExtractorConfig, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Error("open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	ext := extractor.New(extCfg, log)
	extStats := stats.New(time.Hour)

	orch := pipeline.NewOrchestrator(cfg, ext, st, extStats, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, ext, st, extStats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		// Stop accepting submissions before the queue is closed.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		if err := st.Close(); err != nil {
			log.Error("close store", "error", err)
		}
	}()

	log.Info("starting tablegest", "port", cfg.Port, "db", cfg.DBPath, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
