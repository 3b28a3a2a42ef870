package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mmynk/sharedledger/internal/config"
	"github.com/mmynk/sharedledger/internal/events"
	"github.com/mmynk/sharedledger/internal/recurrence"
	"github.com/mmynk/sharedledger/internal/server"
	"github.com/mmynk/sharedledger/internal/storage/sqlstore"
	"github.com/mmynk/sharedledger/pkg/logging"
)

func main() {
	// Load .env file for local development (ignore errors in production)
	_ = godotenv.Load()

	cfg := config.Load()
	logging.SetupWith(logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))

	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	store, err := sqlstore.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err, "driver", cfg.DBDriver)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "driver", cfg.DBDriver)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Occurrence events are optional; the server runs without a broker.
	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			slog.Warn("Failed to initialize AMQP publisher, continuing without events", "error", err)
		} else {
			defer amqpPublisher.Close()
			publisher = amqpPublisher
			slog.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		slog.Info("AMQP disabled - occurrence events will not be published")
	}

	engine := recurrence.NewEngine(store, recurrence.Options{
		Publisher:   publisher,
		Metrics:     recurrence.NewMetrics(reg),
		Concurrency: cfg.CatchUpConcurrency,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewHandler(store, engine, server.Options{Gatherer: reg}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
	}()

	slog.Info("Connect server starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost:%s", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("Server stopped gracefully")
}
