package app

import (
	"context"
	"fmt"

	"gstledger/internal/config"
	"gstledger/internal/infrastructure/storage/memory"
	"gstledger/internal/infrastructure/storage/postgres"
	"gstledger/pkg/logger"
)

// Runtime is a container over the configured storage driver together with
// the resources that must be released on shutdown.
type Runtime struct {
	*Container

	// Pool is nil for the memory driver.
	Pool *postgres.Pool
	// TxManager is nil for the memory driver.
	TxManager *postgres.TxManager
}

// Open connects the configured storage, applies migrations when enabled and
// wires the container.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Runtime, error) {
	opts := Options{
		Seller:                 cfg.Seller,
		BooksStart:             cfg.BooksStart,
		AuditCompressThreshold: cfg.Audit.CompressThreshold,
	}

	if cfg.Storage.Driver == config.DriverMemory {
		log.Warnw("using in-memory storage; data is lost on exit")
		c, err := New(MemoryBackend(memory.New()), opts)
		if err != nil {
			return nil, err
		}
		return &Runtime{Container: c}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := Migrate(cfg.Database.URL, log); err != nil {
			return nil, err
		}
	}

	pool, err := postgres.NewPool(ctx, cfg.Database.Pool())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	txm := postgres.NewTxManager(pool)

	c, err := New(PostgresBackend(txm, cfg.HTTP.IdempotencyTTL), opts)
	if err != nil {
		pool.Close()
		return nil, err
	}
	log.Infow("database connection established",
		"max_conns", cfg.Database.Pool().MaxConns)

	return &Runtime{Container: c, Pool: pool, TxManager: txm}, nil
}

// Migrate applies all pending schema migrations.
func Migrate(dsn string, log *logger.Logger) error {
	m, err := postgres.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	changed, err := m.Up()
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	log.Infow("schema migrations checked", "changed", changed, "version", version, "dirty", dirty)
	return nil
}

// Close releases the database pool, if any.
func (r *Runtime) Close() {
	if r.Pool != nil {
		r.Pool.Close()
	}
}
