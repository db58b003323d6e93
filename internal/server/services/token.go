// Package services contains server-side business logic.
//
// TokenService issues and rotates the access/refresh token pair. Access
// tokens are signed JWTs; refresh tokens are opaque random strings kept in a
// refreshtokens.Repository, one per principal, bound to the access token's
// jti. A refresh rebinds the stored record to a new jti and hands the same
// opaque string back to the client.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/claims"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken          string
	RefreshToken         string
	AccessTokenExpiresAt time.Time
}

// TokenService owns issuance, rotation and sign-out.
type TokenService struct {
	signer     *auth.Signer
	store      refreshtokens.Repository
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        logging.Logger
}

// NewTokenService wires a signer and a token store with the two lifetimes.
func NewTokenService(signer *auth.Signer, store refreshtokens.Repository, accessTTL, refreshTTL time.Duration, log logging.Logger) (*TokenService, error) {
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("token lifetimes must be positive (access %s, refresh %s)", accessTTL, refreshTTL)
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &TokenService{
		signer:     signer,
		store:      store,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		log:        log.With("module", "tokens"),
	}, nil
}

// Issue starts a new session for principalID. Any session the principal
// already had is replaced, so its refresh token stops working.
func (s *TokenService) Issue(ctx context.Context, principalID int64, identity claims.Set, now time.Time) (*TokenPair, error) {
	access, err := s.signer.Sign(principalID, identity.Identity(), now, now.Add(s.accessTTL))
	if err != nil {
		s.log.Error(ctx, "sign access token", "principal", principalID, "error", err)
		return nil, common.ErrorInternal
	}

	opaque, err := common.MakeRandHexString(common.RefreshTokenSize)
	if err != nil {
		s.log.Error(ctx, "generate refresh token", "principal", principalID, "error", err)
		return nil, common.ErrorInternal
	}

	record := &models.RefreshToken{
		JTI:       access.JTI,
		UserID:    principalID,
		Token:     opaque,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	if err := s.store.Replace(ctx, "", record); err != nil {
		s.log.Warn(ctx, "store refresh token", "principal", principalID, "error", err)
		return nil, fmt.Errorf("issue: %w", err)
	}

	s.log.Info(ctx, "session issued", "principal", principalID, "jti", access.JTI)
	return &TokenPair{
		AccessToken:          access.Token,
		RefreshToken:         opaque,
		AccessTokenExpiresAt: access.ExpiresAt,
	}, nil
}

// Refresh exchanges a (usually expired) access token and its refresh token
// for a new access token. The access token is checked with the lenient
// profile: signature, algorithm, issuer and audience, but not expiry. Every
// refresh-token check fails with the same common.ErrInvalidRefreshToken.
func (s *TokenService) Refresh(ctx context.Context, accessToken, refreshToken string, now time.Time) (*TokenPair, error) {
	verified, err := s.signer.ValidateLenient(accessToken)
	if err != nil {
		s.log.Info(ctx, "refresh rejected", "reason", "access token", "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrSignatureInvalid, err)
	}

	principalID, err := verified.PrincipalID()
	if err != nil {
		s.log.Info(ctx, "refresh rejected", "reason", "subject", "jti", verified.JTI)
		return nil, err
	}

	stored, err := s.store.GetByPrincipal(ctx, principalID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Info(ctx, "refresh rejected", "principal", principalID, "reason", "no session")
			return nil, common.ErrInvalidRefreshToken
		}
		s.log.Error(ctx, "load refresh token", "principal", principalID, "error", err)
		return nil, fmt.Errorf("refresh: %w", err)
	}

	if reason := checkStored(stored, refreshToken, verified.JTI, now); reason != "" {
		s.log.Info(ctx, "refresh rejected", "principal", principalID, "reason", reason)
		return nil, common.ErrInvalidRefreshToken
	}

	access, err := s.signer.Sign(principalID, verified.Claims, now, now.Add(s.accessTTL))
	if err != nil {
		s.log.Error(ctx, "sign access token", "principal", principalID, "error", err)
		return nil, common.ErrorInternal
	}

	if err := s.store.Replace(ctx, stored.JTI, stored.Rebind(access.JTI)); err != nil {
		s.log.Warn(ctx, "rotate refresh token", "principal", principalID, "error", err)
		return nil, fmt.Errorf("refresh: %w", err)
	}

	s.log.Info(ctx, "session refreshed", "principal", principalID, "jti", access.JTI)
	return &TokenPair{
		AccessToken:          access.Token,
		RefreshToken:         stored.Token,
		AccessTokenExpiresAt: access.ExpiresAt,
	}, nil
}

// checkStored runs every check on the stored record and returns the name of
// the first failed one, for logs only.
func checkStored(stored *models.RefreshToken, presented, jti string, now time.Time) string {
	switch {
	case subtle.ConstantTimeCompare([]byte(stored.Token), []byte(presented)) != 1:
		return "token mismatch"
	case stored.JTI != jti:
		return "jti mismatch"
	case stored.IsExpired(now):
		return "expired"
	case stored.Revoked:
		return "revoked"
	}
	return ""
}

// SignOut ends the principal's session. Signing out twice is fine.
func (s *TokenService) SignOut(ctx context.Context, principalID int64) error {
	if err := s.store.RemoveByPrincipal(ctx, principalID); err != nil {
		s.log.Error(ctx, "sign out", "principal", principalID, "error", err)
		return fmt.Errorf("sign out: %w", err)
	}
	s.log.Info(ctx, "session ended", "principal", principalID)
	return nil
}

// Revoke flags the principal's refresh token so it can no longer be
// redeemed. Outstanding access tokens stay valid until they expire.
func (s *TokenService) Revoke(ctx context.Context, principalID int64) error {
	if err := s.store.RevokeByPrincipal(ctx, principalID); err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.log.Error(ctx, "revoke", "principal", principalID, "error", err)
		}
		return fmt.Errorf("revoke: %w", err)
	}
	s.log.Info(ctx, "session revoked", "principal", principalID)
	return nil
}

// Authenticate validates accessToken with the strict profile and resolves
// its principal.
func (s *TokenService) Authenticate(ctx context.Context, accessToken string) (*auth.Verified, int64, error) {
	verified, err := s.signer.ValidateStrict(accessToken)
	if err != nil {
		s.log.Debug(ctx, "access token rejected", "error", err)
		return nil, 0, err
	}
	id, err := verified.PrincipalID()
	if err != nil {
		return nil, 0, err
	}
	return verified, id, nil
}
