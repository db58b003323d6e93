package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshToken_ExpiryIsComputed(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rt := &RefreshToken{ExpiresAt: now.Add(time.Second)}

	assert.True(t, rt.IsActive(now))
	assert.False(t, rt.IsExpired(now))

	// expiry instant itself no longer counts as active
	assert.True(t, rt.IsExpired(now.Add(time.Second)))
	assert.False(t, rt.IsActive(now.Add(time.Second)))
}

func TestRefreshToken_RevokedNeverActive(t *testing.T) {
	now := time.Now()
	rt := &RefreshToken{ExpiresAt: now.Add(time.Hour), Revoked: true}
	assert.False(t, rt.IsActive(now))
}

func TestRefreshToken_RebindKeepsEverythingButJTI(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	old := RefreshToken{JTI: "a", UserID: 25, Token: "opaque", CreatedAt: created, ExpiresAt: created.Add(time.Hour)}

	next := old.Rebind("b")

	assert.Equal(t, "a", old.JTI)
	assert.Equal(t, "b", next.JTI)
	assert.Equal(t, old.Token, next.Token)
	assert.Equal(t, old.UserID, next.UserID)
	assert.Equal(t, old.CreatedAt, next.CreatedAt)
	assert.Equal(t, old.ExpiresAt, next.ExpiresAt)
	assert.Equal(t, old.Revoked, next.Revoked)
}
