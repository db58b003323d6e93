package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
)

// RedisTokensManager keeps users wherever base keeps them and refresh
// tokens in Redis.
type RedisTokensManager struct {
	base          RepositoryManager
	rdb           *redis.Client
	refreshTokens refreshtokens.Repository
}

func (m *RedisTokensManager) Users() users.Repository {
	return m.base.Users()
}

func (m *RedisTokensManager) RefreshTokens() refreshtokens.Repository {
	return m.refreshTokens
}

func (m *RedisTokensManager) Close() error {
	return errors.Join(m.rdb.Close(), m.base.Close())
}

// WithRedisTokens connects to addr and swaps base's token store for a Redis
// one. base is not closed on failure.
func WithRedisTokens(ctx context.Context, base RepositoryManager, addr, prefix string) (*RedisTokensManager, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping error: %w", err)
	}
	return &RedisTokensManager{
		base:          base,
		rdb:           rdb,
		refreshTokens: refreshtokens.NewRedisRepository(rdb, prefix),
	}, nil
}
