// Package main is the entry point for the gstledger background worker.
// It relays outbox events to the renderer webhook, parks exhausted
// messages in the dead letter queue and purges expired idempotency keys.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gstledger/internal/app"
	"gstledger/internal/config"
	"gstledger/internal/domain/outbox"
	"gstledger/internal/infrastructure/storage/postgres"
	"gstledger/internal/infrastructure/webhook"
	"gstledger/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ./config.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.Driver != config.DriverPostgres {
		fmt.Fprintln(os.Stderr, "worker requires the postgres storage driver")
		os.Exit(1)
	}
	if cfg.Worker.WebhookURL == "" {
		fmt.Fprintln(os.Stderr, "worker.webhook_url is required")
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Logger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatalw("worker failed", "error", err)
	}
	log.Info("worker stopped")
}

type expiringStore interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log = log.WithComponent("worker")
	ctx = logger.WithLogger(ctx, log)

	rt, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	relay := rt.NewRelay(
		webhook.NewSender(cfg.Worker.WebhookURL, cfg.Worker.WebhookTimeout),
		outbox.RelayConfig{
			BatchSize:  cfg.Worker.BatchSize,
			MaxRetries: cfg.Worker.MaxRetries,
			Backoff:    cfg.Worker.Backoff,
		})
	idem, canCleanup := rt.Backend.Idempotency.(expiringStore)

	log.Infow("starting gstledger worker",
		"webhook", cfg.Worker.WebhookURL,
		"poll_interval", cfg.Worker.PollInterval,
		"batch_size", cfg.Worker.BatchSize)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return every(ctx, cfg.Worker.PollInterval, func(ctx context.Context) {
			for {
				n, err := relay.ProcessBatch(ctx)
				if err != nil {
					log.Errorw("outbox batch failed", "error", err)
					return
				}
				if n > 0 {
					log.Debugw("relayed outbox batch", "count", n)
				}
				// A full batch means more may be waiting.
				if n < cfg.Worker.BatchSize || ctx.Err() != nil {
					return
				}
			}
		})
	})

	g.Go(func() error {
		return every(ctx, cfg.Worker.DLQInterval, func(ctx context.Context) {
			moved, err := relay.MoveToDLQ(ctx)
			if err != nil {
				log.Errorw("move to dlq failed", "error", err)
				return
			}
			if moved > 0 {
				log.Warnw("moved exhausted messages to dlq", "count", moved)
			}
			postgres.LogPoolStats(ctx, rt.Pool.Pool)
		})
	})

	if !canCleanup {
		return g.Wait()
	}
	g.Go(func() error {
		return every(ctx, time.Hour, func(ctx context.Context) {
			n, err := idem.CleanupExpired(ctx)
			if err != nil {
				log.Errorw("idempotency cleanup failed", "error", err)
				return
			}
			if n > 0 {
				log.Infow("cleaned up idempotency keys", "count", n)
			}
		})
	})

	return g.Wait()
}

// every runs fn immediately and then on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		fn(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
