// Package common defines shared constants and sentinel errors used across
// client and server layers of tokenkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrStorageConflict is returned by token stores when a write would
	// produce a second refresh-token row for the same principal, or when an
	// atomic replace finds the row already rebound by someone else.
	ErrStorageConflict = errors.New("storage conflict")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Access token verification errors.
	ErrTokenMalformed           = errors.New("token malformed")
	ErrSignatureInvalid         = errors.New("token signature invalid")
	ErrTokenExpired             = errors.New("token expired")
	ErrAudienceOrIssuerMismatch = errors.New("token audience or issuer mismatch")

	// ErrInvalidPrincipal means the subject claim is missing or is not a
	// decimal principal id.
	ErrInvalidPrincipal = errors.New("invalid principal")

	// ErrInvalidRefreshToken covers every refresh-token check: not found,
	// wrong opaque value, wrong jti, expired, revoked. It is deliberately
	// the same value for all of them.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrInvalidToken is the message-level error handed to remote callers.
	ErrInvalidToken = errors.New("invalid token")
)
