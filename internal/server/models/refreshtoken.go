package models

import "time"

// RefreshToken is the server-side record behind an opaque refresh token.
// There is at most one per user; JTI binds it to the access token it was
// last issued or rotated with.
type RefreshToken struct {
	JTI       string
	UserID    int64
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// IsExpired reports whether the record is past its expiry at now. Expiry is
// computed, never stored.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// IsActive reports whether the record can still be redeemed at now.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}

// Rebind returns a copy bound to a new access-token jti. The opaque value,
// timestamps and revoked flag are carried over unchanged.
func (t RefreshToken) Rebind(jti string) *RefreshToken {
	t.JTI = jti
	return &t
}
