// Package refreshtokens declares the token store contract and its
// implementations. The store is where "one active refresh token per
// principal" is enforced: every implementation keys records by user id and
// refuses a second record for the same user.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// Repository persists at most one refresh-token record per user.
type Repository interface {
	// AddToken inserts t. It fails with common.ErrStorageConflict when a
	// record already exists for t.UserID.
	AddToken(ctx context.Context, t *models.RefreshToken) error

	// GetByPrincipal returns the record for userID or common.ErrorNotFound.
	GetByPrincipal(ctx context.Context, userID int64) (*models.RefreshToken, error)

	// RemoveByPrincipal deletes the record for userID. Removing a missing
	// record is not an error.
	RemoveByPrincipal(ctx context.Context, userID int64) error

	// RevokeByPrincipal sets the revoked flag, or returns
	// common.ErrorNotFound when there is nothing to revoke.
	RevokeByPrincipal(ctx context.Context, userID int64) error

	// Replace atomically removes the current record for t.UserID and inserts
	// t. When expectedJTI is non-empty the current record must still be bound
	// to that jti, otherwise nothing changes and common.ErrStorageConflict is
	// returned.
	Replace(ctx context.Context, expectedJTI string, t *models.RefreshToken) error
}

var (
	_ Repository = (*PostgresRepository)(nil)
	_ Repository = (*RedisRepository)(nil)
	_ Repository = (*MemoryRepository)(nil)
)
