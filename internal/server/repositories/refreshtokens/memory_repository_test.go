package refreshtokens

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

func TestMemoryRepository_Contract(t *testing.T) {
	runContract(t, func(t *testing.T) Repository { return NewMemoryRepository() })
}

func TestMemoryRepository_CancelledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, repo.AddToken(ctx, sampleToken(1, "a")), context.Canceled)
	_, err := repo.GetByPrincipal(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.AddToken(ctx, sampleToken(5, "a")))

	got, err := repo.GetByPrincipal(ctx, 5)
	require.NoError(t, err)
	got.Revoked = true

	again, err := repo.GetByPrincipal(ctx, 5)
	require.NoError(t, err)
	assert.False(t, again.Revoked)
}

func TestMemoryRepository_ConcurrentReplaceSingleWinner(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	orig := sampleToken(25, "orig")
	require.NoError(t, repo.AddToken(ctx, orig))

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Replace(ctx, "orig", orig.Rebind("next-"+string(rune('a'+i))))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case assert.ErrorIs(t, err, common.ErrStorageConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)
}
