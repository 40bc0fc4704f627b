// Package store is the durable key-value storage that outlives exam
// sessions: cached question types, pending evaluation jobs, flip-card logs
// and the AI-generate cooldown. Values are plain strings.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-runner/internal/config"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("key not found")

// Store is a string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Open selects the backend named by cfg.StorageDriver. The Redis client and
// pool may be nil when the driver does not need them.
func Open(cfg *config.Config, rdb *redis.Client, pool *pgxpool.Pool, log zerolog.Logger) (Store, error) {
	switch cfg.StorageDriver {
	case config.StorageRedis:
		if rdb == nil {
			return nil, errors.New("redis storage requires a redis client")
		}
		log.Info().Str("driver", cfg.StorageDriver).Msg("Client storage ready")
		return NewRedisStore(rdb), nil
	case config.StoragePostgres:
		if pool == nil {
			return nil, errors.New("postgres storage requires a database pool")
		}
		log.Info().Str("driver", cfg.StorageDriver).Msg("Client storage ready")
		return NewPostgresStore(pool), nil
	case config.StorageMemory:
		log.Warn().Msg("Client storage is in memory, pending results are lost on restart")
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
