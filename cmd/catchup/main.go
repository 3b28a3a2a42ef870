// Command catchup materializes every due recurring expense once and exits.
// Run it from cron to keep groups current between reads.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mmynk/sharedledger/internal/config"
	"github.com/mmynk/sharedledger/internal/events"
	"github.com/mmynk/sharedledger/internal/recurrence"
	"github.com/mmynk/sharedledger/internal/storage/sqlstore"
	"github.com/mmynk/sharedledger/pkg/logging"
)

func main() {
	groupID := flag.String("group", "", "catch up a single group instead of all groups")
	flag.Parse()

	// Load .env file for local development (ignore errors in production)
	_ = godotenv.Load()

	cfg := config.Load()
	logging.SetupWith(logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))

	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, *groupID); err != nil {
		slog.Error("Catch-up failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, groupID string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlstore.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			slog.Warn("Failed to initialize AMQP publisher, continuing without events", "error", err)
		} else {
			defer amqpPublisher.Close()
			publisher = amqpPublisher
		}
	}

	engine := recurrence.NewEngine(store, recurrence.Options{
		Publisher:   publisher,
		Concurrency: cfg.CatchUpConcurrency,
	})

	var res recurrence.Result
	if groupID != "" {
		res, err = engine.CatchUp(ctx, groupID)
	} else {
		res, err = engine.CatchUpAll(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Printf("created=%d conflicts=%d failures=%d\n", res.Created, res.Conflicts, res.Failures)
	if res.Failures > 0 {
		return fmt.Errorf("%d series failed to catch up", res.Failures)
	}
	return nil
}
