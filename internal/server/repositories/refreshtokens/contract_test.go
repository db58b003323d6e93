package refreshtokens

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

func sampleToken(userID int64, jti string) *models.RefreshToken {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.RefreshToken{
		JTI:       jti,
		UserID:    userID,
		Token:     "opaque-" + jti,
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
	}
}

// runContract checks the behaviour every Repository must share.
func runContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("add then get", func(t *testing.T) {
		repo := newRepo(t)
		tok := sampleToken(25, "jti-1")
		require.NoError(t, repo.AddToken(ctx, tok))

		got, err := repo.GetByPrincipal(ctx, 25)
		require.NoError(t, err)
		assert.Equal(t, tok.JTI, got.JTI)
		assert.Equal(t, tok.Token, got.Token)
		assert.Equal(t, tok.UserID, got.UserID)
		assert.True(t, tok.ExpiresAt.Equal(got.ExpiresAt))
		assert.True(t, tok.CreatedAt.Equal(got.CreatedAt))
		assert.False(t, got.Revoked)
	})

	t.Run("second add for same principal conflicts", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddToken(ctx, sampleToken(7, "a")))
		err := repo.AddToken(ctx, sampleToken(7, "b"))
		require.ErrorIs(t, err, common.ErrStorageConflict)

		got, err := repo.GetByPrincipal(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "a", got.JTI)
	})

	t.Run("get missing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetByPrincipal(ctx, 404)
		require.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddToken(ctx, sampleToken(3, "x")))
		require.NoError(t, repo.RemoveByPrincipal(ctx, 3))
		require.NoError(t, repo.RemoveByPrincipal(ctx, 3))
		_, err := repo.GetByPrincipal(ctx, 3)
		require.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("revoke", func(t *testing.T) {
		repo := newRepo(t)
		require.ErrorIs(t, repo.RevokeByPrincipal(ctx, 9), common.ErrorNotFound)

		require.NoError(t, repo.AddToken(ctx, sampleToken(9, "r")))
		require.NoError(t, repo.RevokeByPrincipal(ctx, 9))
		got, err := repo.GetByPrincipal(ctx, 9)
		require.NoError(t, err)
		assert.True(t, got.Revoked)
	})

	t.Run("unconditional replace", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Replace(ctx, "", sampleToken(11, "first")))
		require.NoError(t, repo.Replace(ctx, "", sampleToken(11, "second")))

		got, err := repo.GetByPrincipal(ctx, 11)
		require.NoError(t, err)
		assert.Equal(t, "second", got.JTI)
	})

	t.Run("conditional replace", func(t *testing.T) {
		repo := newRepo(t)
		orig := sampleToken(12, "old")
		require.NoError(t, repo.AddToken(ctx, orig))

		next := orig.Rebind("new")
		require.NoError(t, repo.Replace(ctx, "old", next))

		// the loser of a race still holds the old jti
		err := repo.Replace(ctx, "old", orig.Rebind("other"))
		require.ErrorIs(t, err, common.ErrStorageConflict)

		got, err := repo.GetByPrincipal(ctx, 12)
		require.NoError(t, err)
		assert.Equal(t, "new", got.JTI)
		assert.Equal(t, orig.Token, got.Token)
	})

	t.Run("conditional replace of missing row", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.Replace(ctx, "gone", sampleToken(13, "new"))
		require.ErrorIs(t, err, common.ErrStorageConflict)
		_, err = repo.GetByPrincipal(ctx, 13)
		require.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("principals are independent", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddToken(ctx, sampleToken(1, "one")))
		require.NoError(t, repo.AddToken(ctx, sampleToken(2, "two")))
		require.NoError(t, repo.RemoveByPrincipal(ctx, 1))

		got, err := repo.GetByPrincipal(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "two", got.JTI)
	})
}
