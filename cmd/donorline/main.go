package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/donorline/donorline/internal/api"
	"github.com/donorline/donorline/internal/config"
	"github.com/donorline/donorline/internal/database"
	"github.com/donorline/donorline/internal/email"
	"github.com/donorline/donorline/internal/metrics"
	"github.com/donorline/donorline/internal/telephony"
	"github.com/donorline/donorline/internal/transcription"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting donorline",
		"http_port", cfg.HTTPPort,
		"data_dir", cfg.DataDir,
		"hosted_db", cfg.DatabaseURL != "",
	)

	// Open the store and run migrations.
	db, err := database.Open(cfg.DatabaseURL, cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Application context for background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// Provider gateway client. The live/test credential gate is resolved
	// inside the config.
	accountSID, authToken := cfg.TelephonyCredentials()
	tel := telephony.NewClient(telephony.DefaultBaseURL, accountSID, authToken)

	sender := email.NewSender(logger)

	handler, err := api.NewServer(db, cfg, tel, sender)
	if err != nil {
		slog.Error("failed to create http server", "error", err)
		os.Exit(1)
	}
	defer handler.Close()

	// Retry transcripts that arrived before their recording notification.
	transcription.StartReconcileTicker(appCtx, db, 5*time.Minute)

	// Expose scrape-time metrics on /metrics.
	collector := metrics.NewCollector(
		database.NewCallRepository(db),
		database.NewPendingTranscriptionRepository(db),
		time.Now(),
	)
	prometheus.MustRegister(collector)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("donorline stopped")
}
