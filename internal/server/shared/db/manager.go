// Package db opens the storage backends selected by configuration and hands
// out the repositories bound to them.
package db

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
)

// RepositoryManager owns open connections and the repositories over them.
type RepositoryManager interface {
	Users() users.Repository
	RefreshTokens() refreshtokens.Repository
	Close() error
}

// Open builds the RepositoryManager for cfg.StoreBackend. Users live in
// Postgres for the postgres and redis backends; refresh tokens follow the
// backend.
func Open(ctx context.Context, cfg *config.Config) (RepositoryManager, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return NewInMemoryRepositoryManager(), nil
	case config.StorePostgres:
		return NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
	case config.StoreRedis:
		pg, err := NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		m, err := WithRedisTokens(ctx, pg, cfg.RedisAddr, cfg.RedisKeyPrefix)
		if err != nil {
			_ = pg.Close()
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
