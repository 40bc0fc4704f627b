package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-runner/internal/config"
)

// ErrStorageSchemaMissing means the client_storage migration has not run.
var ErrStorageSchemaMissing = errors.New("client_storage table missing; run `migrate up` first")

// OpenStoragePool connects to PostgreSQL for the postgres storage driver.
// Other drivers need no database and get a nil pool.
func OpenStoragePool(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pgxpool.Pool, error) {
	if cfg.StorageDriver != config.StoragePostgres {
		return nil, nil
	}

	poolCfg, err := storagePoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	var table *string
	if err := pool.QueryRow(ctx, `SELECT to_regclass('client_storage')::text`).Scan(&table); err != nil {
		pool.Close()
		return nil, fmt.Errorf("check client_storage: %w", err)
	}
	if table == nil {
		pool.Close()
		return nil, ErrStorageSchemaMissing
	}

	log.Info().
		Int32("max_conns", poolCfg.MaxConns).
		Str("database", poolCfg.ConnConfig.Database).
		Msg("PostgreSQL client storage connected")
	return pool, nil
}

func storagePoolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxDBConns > 0 {
		poolCfg.MaxConns = cfg.MaxDBConns
	}
	// Storage traffic is a few small key lookups per exam action.
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "vocab-runner"
	return poolCfg, nil
}
