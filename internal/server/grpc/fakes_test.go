package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
)

type fakeUsers struct {
	regResp *models.User
	regErr  error

	loginResp *services.TokenPair
	loginErr  error

	logoutErr error
	loggedOut int64
}

func (f *fakeUsers) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	return f.regResp, f.regErr
}

func (f *fakeUsers) Login(ctx context.Context, username, password string, now time.Time) (*services.TokenPair, error) {
	return f.loginResp, f.loginErr
}

func (f *fakeUsers) Logout(ctx context.Context, principalID int64) error {
	f.loggedOut = principalID
	return f.logoutErr
}

type fakeTokens struct {
	refreshResp *services.TokenPair
	refreshErr  error

	verified *auth.Verified
	userID   int64
	authErr  error

	revokeErr error
	revoked   int64
}

func (f *fakeTokens) Refresh(ctx context.Context, accessToken, refreshToken string, now time.Time) (*services.TokenPair, error) {
	return f.refreshResp, f.refreshErr
}

func (f *fakeTokens) Authenticate(ctx context.Context, accessToken string) (*auth.Verified, int64, error) {
	return f.verified, f.userID, f.authErr
}

func (f *fakeTokens) Revoke(ctx context.Context, principalID int64) error {
	f.revoked = principalID
	return f.revokeErr
}
