package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/dbx"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// PostgresRepository stores records in refresh_tokens, whose UNIQUE(user_id)
// constraint backs the one-row-per-user rule. It works over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) AddToken(ctx context.Context, t *models.RefreshToken) error {
	return insert(ctx, r.db, t)
}

func (r *PostgresRepository) GetByPrincipal(ctx context.Context, userID int64) (*models.RefreshToken, error) {
	query := `
		SELECT jti, user_id, token, expires_at, created_at, revoked
		FROM refresh_tokens
		WHERE user_id = $1
	`
	t := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, userID).
		Scan(&t.JTI, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt, &t.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) RemoveByPrincipal(ctx context.Context, userID int64) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RevokeByPrincipal(ctx context.Context, userID int64) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE user_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// Replace runs delete+insert in one transaction. When the repository is
// already bound to a *sql.Tx the caller's transaction is reused.
func (r *PostgresRepository) Replace(ctx context.Context, expectedJTI string, t *models.RefreshToken) error {
	b, ok := r.db.(dbx.Beginner)
	if !ok {
		return replace(ctx, r.db, expectedJTI, t)
	}
	return dbx.WithTx(ctx, b, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return replace(ctx, tx, expectedJTI, t)
	})
}

func replace(ctx context.Context, db dbx.DBTX, expectedJTI string, t *models.RefreshToken) error {
	if expectedJTI == "" {
		query := `
			DELETE FROM refresh_tokens
			WHERE user_id = $1
		`
		if _, err := db.ExecContext(ctx, query, t.UserID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return insert(ctx, db, t)
	}

	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1 AND jti = $2
	`
	res, err := db.ExecContext(ctx, query, t.UserID, expectedJTI)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("refresh token for user %d was rebound concurrently: %w", t.UserID, common.ErrStorageConflict)
	}
	return insert(ctx, db, t)
}

func insert(ctx context.Context, db dbx.DBTX, t *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (user_id, jti, token, expires_at, created_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := db.ExecContext(ctx, query, t.UserID, t.JTI, t.Token, t.ExpiresAt, t.CreatedAt, t.Revoked)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("refresh token for user %d: %w", t.UserID, common.ErrStorageConflict)
		}
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}
