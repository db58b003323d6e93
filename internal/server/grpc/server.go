// Package grpc exposes the token services over gRPC as
// tokenkeeper.v1.AuthService.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"google.golang.org/grpc"

	"github.com/dmitrijs2005/tokenkeeper/internal/api"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
)

// UserService is the account side the handlers need.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, username, password string, now time.Time) (*services.TokenPair, error)
	Logout(ctx context.Context, principalID int64) error
}

// TokenService is the session side the handlers and the interceptor need.
type TokenService interface {
	Refresh(ctx context.Context, accessToken, refreshToken string, now time.Time) (*services.TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (*auth.Verified, int64, error)
	Revoke(ctx context.Context, principalID int64) error
}

type GRPCServer struct {
	address string
	users   UserService
	tokens  TokenService
	clock   clockwork.Clock
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, us UserService, ts TokenService, clock clockwork.Clock) *GRPCServer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		users:   us,
		tokens:  ts,
		clock:   clock,
	}
}

// NewServer builds a *grpc.Server with the access-token interceptor and the
// AuthService registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(s.accessTokenInterceptor)}, opts...)
	srv := grpc.NewServer(opts...)
	api.RegisterAuthServiceServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
