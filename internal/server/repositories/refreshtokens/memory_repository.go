package refreshtokens

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// MemoryRepository is a process-local store, used by tests and by the
// "memory" backend.
type MemoryRepository struct {
	mu     sync.Mutex
	tokens map[int64]models.RefreshToken
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tokens: make(map[int64]models.RefreshToken)}
}

func (r *MemoryRepository) AddToken(ctx context.Context, t *models.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[t.UserID]; ok {
		return fmt.Errorf("refresh token for user %d: %w", t.UserID, common.ErrStorageConflict)
	}
	r.tokens[t.UserID] = *t
	return nil
}

func (r *MemoryRepository) GetByPrincipal(ctx context.Context, userID int64) (*models.RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *MemoryRepository) RemoveByPrincipal(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, userID)
	return nil
}

func (r *MemoryRepository) RevokeByPrincipal(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[userID]
	if !ok {
		return common.ErrorNotFound
	}
	t.Revoked = true
	r.tokens[userID] = t
	return nil
}

func (r *MemoryRepository) Replace(ctx context.Context, expectedJTI string, t *models.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if expectedJTI != "" {
		current, ok := r.tokens[t.UserID]
		if !ok || current.JTI != expectedJTI {
			return fmt.Errorf("refresh token for user %d was rebound concurrently: %w", t.UserID, common.ErrStorageConflict)
		}
	}
	r.tokens[t.UserID] = *t
	return nil
}
