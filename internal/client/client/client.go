package client

import (
	"context"

	"github.com/dmitrijs2005/tokenkeeper/internal/api"
)

type Client interface {
	Close() error
	Register(ctx context.Context, username, email string, password []byte) (int64, error)
	Login(ctx context.Context, username string, password []byte) error
	Refresh(ctx context.Context) error
	WhoAmI(ctx context.Context) (*api.WhoAmIResponse, error)
	Logout(ctx context.Context) error
	Revoke(ctx context.Context, userID int64) error
	LoggedIn() bool
}
