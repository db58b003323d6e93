package refreshtokens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// DefaultRedisKeyPrefix namespaces refresh-token hashes.
const DefaultRedisKeyPrefix = "tokenkeeper:refresh:"

// Each principal owns a single hash. Writes go through Lua so that the
// existence / jti check and the write happen in one step.
var (
	addTokenScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "jti", ARGV[1], "user_id", ARGV[2], "token", ARGV[3], "expires_at", ARGV[4], "created_at", ARGV[5], "revoked", ARGV[6])
redis.call("PEXPIREAT", KEYS[1], ARGV[7])
return 1
`)

	replaceScript = redis.NewScript(`
if ARGV[1] ~= "" then
  local current = redis.call("HGET", KEYS[1], "jti")
  if current ~= ARGV[1] then
    return 0
  end
end
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[1], "jti", ARGV[2], "user_id", ARGV[3], "token", ARGV[4], "expires_at", ARGV[5], "created_at", ARGV[6], "revoked", ARGV[7])
redis.call("PEXPIREAT", KEYS[1], ARGV[8])
return 1
`)

	revokeScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1")
return 1
`)
)

// RedisRepository keeps records as hashes at <prefix><user id>. The key
// expires together with the record; the service still checks expiry itself.
type RedisRepository struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisRepository returns a store over rdb. An empty prefix selects
// DefaultRedisKeyPrefix.
func NewRedisRepository(rdb redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisRepository{rdb: rdb, prefix: prefix}
}

func (r *RedisRepository) key(userID int64) string {
	return r.prefix + strconv.FormatInt(userID, 10)
}

func (r *RedisRepository) AddToken(ctx context.Context, t *models.RefreshToken) error {
	args := append(tokenArgs(t), t.ExpiresAt.UnixMilli())
	n, err := addTokenScript.Run(ctx, r.rdb, []string{r.key(t.UserID)}, args...).Int()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("refresh token for user %d: %w", t.UserID, common.ErrStorageConflict)
	}
	return nil
}

func (r *RedisRepository) GetByPrincipal(ctx context.Context, userID int64) (*models.RefreshToken, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(fields) == 0 {
		return nil, common.ErrorNotFound
	}
	return decodeToken(fields)
}

func (r *RedisRepository) RemoveByPrincipal(ctx context.Context, userID int64) error {
	if err := r.rdb.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) RevokeByPrincipal(ctx context.Context, userID int64) error {
	n, err := revokeScript.Run(ctx, r.rdb, []string{r.key(userID)}).Int()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *RedisRepository) Replace(ctx context.Context, expectedJTI string, t *models.RefreshToken) error {
	args := append([]any{expectedJTI}, tokenArgs(t)...)
	args = append(args, t.ExpiresAt.UnixMilli())
	n, err := replaceScript.Run(ctx, r.rdb, []string{r.key(t.UserID)}, args...).Int()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("refresh token for user %d was rebound concurrently: %w", t.UserID, common.ErrStorageConflict)
	}
	return nil
}

func tokenArgs(t *models.RefreshToken) []any {
	revoked := "0"
	if t.Revoked {
		revoked = "1"
	}
	return []any{
		t.JTI,
		strconv.FormatInt(t.UserID, 10),
		t.Token,
		t.ExpiresAt.UTC().Format(time.RFC3339Nano),
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
		revoked,
	}
}

var errCorruptRecord = errors.New("corrupt refresh token record")

func decodeToken(fields map[string]string) (*models.RefreshToken, error) {
	userID, err := strconv.ParseInt(fields["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: user_id: %v", errCorruptRecord, err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("%w: expires_at: %v", errCorruptRecord, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("%w: created_at: %v", errCorruptRecord, err)
	}
	return &models.RefreshToken{
		JTI:       fields["jti"],
		UserID:    userID,
		Token:     fields["token"],
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
		Revoked:   fields["revoked"] == "1",
	}, nil
}
