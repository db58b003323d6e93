package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/tokenkeeper/internal/api"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/claims"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
)

// AdminRole is the role claim value allowed to call Revoke.
const AdminRole = models.RoleAdmin

func (s *GRPCServer) Register(ctx context.Context, req *api.RegisterRequest) (*api.RegisterResponse, error) {

	s.logger.Info(ctx, "Registration request")

	user, err := s.users.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidUsername):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case errors.Is(err, common.ErrStorageConflict):
			return nil, status.Error(codes.AlreadyExists, "username taken")
		}
		s.logger.Error(ctx, "register failed", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}

	s.logger.Info(ctx, "Registered", "username", user.UserName, "principal", user.ID)
	return &api.RegisterResponse{UserID: user.ID}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.TokenResponse, error) {

	tokens, err := s.users.Login(ctx, req.Username, req.Password, s.clock.Now())
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorUnauthorized):
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		case errors.Is(err, common.ErrStorageConflict):
			return nil, status.Error(codes.Aborted, "concurrent sign-in, retry")
		}
		return nil, status.Error(codes.Internal, "internal error")
	}

	return tokenResponse(tokens), nil
}

// Refresh never tells the caller which check failed.
func (s *GRPCServer) Refresh(ctx context.Context, req *api.RefreshRequest) (*api.TokenResponse, error) {

	tokens, err := s.tokens.Refresh(ctx, req.AccessToken, req.RefreshToken, s.clock.Now())
	if err != nil {
		switch {
		case errors.Is(err, common.ErrStorageConflict):
			return nil, status.Error(codes.Aborted, "concurrent refresh, retry")
		case errors.Is(err, common.ErrSignatureInvalid),
			errors.Is(err, common.ErrInvalidPrincipal),
			errors.Is(err, common.ErrInvalidRefreshToken):
			return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
		}
		s.logger.Error(ctx, "refresh failed", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}

	return tokenResponse(tokens), nil
}

func (s *GRPCServer) Logout(ctx context.Context, _ *api.LogoutRequest) (*api.LogoutResponse, error) {

	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	if err := s.users.Logout(ctx, userID); err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return &api.LogoutResponse{}, nil
}

func (s *GRPCServer) WhoAmI(ctx context.Context, _ *api.WhoAmIRequest) (*api.WhoAmIResponse, error) {

	userID, ok := userIDFromContext(ctx)
	verified, vok := verifiedFromContext(ctx)
	if !ok || !vok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	resp := &api.WhoAmIResponse{UserID: userID, ExpiresAt: verified.ExpiresAt}
	for _, c := range verified.Claims.Sorted() {
		resp.Claims = append(resp.Claims, api.Claim{Type: c.Type, Value: c.Value})
	}
	return resp, nil
}

func (s *GRPCServer) Revoke(ctx context.Context, req *api.RevokeRequest) (*api.RevokeResponse, error) {

	verified, ok := verifiedFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	if role, _ := verified.Claims.Get(claims.Role); role != AdminRole {
		return nil, status.Error(codes.PermissionDenied, "admin role required")
	}

	if err := s.tokens.Revoke(ctx, req.UserID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, status.Error(codes.NotFound, "no active session")
		}
		return nil, status.Error(codes.Internal, "internal error")
	}
	s.logger.Info(ctx, "Revoked", "principal", req.UserID)
	return &api.RevokeResponse{}, nil
}

func tokenResponse(p *services.TokenPair) *api.TokenResponse {
	return &api.TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresAt:    p.AccessTokenExpiresAt,
	}
}
