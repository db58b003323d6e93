package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/cryptox"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/claims"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
)

var (
	// ErrInvalidUsername is returned by Register for an empty username.
	ErrInvalidUsername = errors.New("username must not be empty")

	// ErrAdminConflict means the configured admin username already belongs
	// to a non-admin account.
	ErrAdminConflict = errors.New("admin username is taken by a non-admin user")
)

// UserService handles registration, login and logout. Login is the
// credential check in front of TokenService.Issue.
type UserService struct {
	users    users.Repository
	tokens   *TokenService
	supplier claims.Supplier
	hashing  cryptox.Params
	log      logging.Logger
}

type UserServiceOption func(*UserService)

// WithHashParams overrides the argon2id parameters (tests use cheap ones).
func WithHashParams(p cryptox.Params) UserServiceOption {
	return func(s *UserService) { s.hashing = p }
}

// WithClaimSupplier replaces the default UserClaimSupplier.
func WithClaimSupplier(c claims.Supplier) UserServiceOption {
	return func(s *UserService) { s.supplier = c }
}

func NewUserService(repo users.Repository, tokens *TokenService, log logging.Logger, opts ...UserServiceOption) *UserService {
	if log == nil {
		log = logging.Nop{}
	}
	s := &UserService{
		users:    repo,
		tokens:   tokens,
		supplier: NewUserClaimSupplier(repo),
		hashing:  cryptox.DefaultParams,
		log:      log.With("module", "users"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a regular user with an argon2id password hash and a
// fresh security stamp. Self-registration never grants a privileged role.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	return s.create(ctx, username, email, models.RoleUser, password)
}

// EnsureAdmin creates the admin account at startup. An existing admin with
// that name is left untouched; an existing non-admin yields ErrAdminConflict
// and is not promoted.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) (*models.User, error) {
	existing, err := s.users.GetUserByLogin(ctx, strings.TrimSpace(username))
	switch {
	case err == nil && existing.Role == models.RoleAdmin:
		return existing, nil
	case err == nil:
		s.log.Warn(ctx, "admin seed refused", "principal", existing.ID)
		return nil, ErrAdminConflict
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("lookup admin: %w", err)
	}

	if password == "" {
		return nil, errors.New("admin password must not be empty")
	}
	return s.create(ctx, username, "", models.RoleAdmin, password)
}

func (s *UserService) create(ctx context.Context, username, email, role, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}

	pw := []byte(password)
	defer common.WipeByteArray(pw)

	hash, err := cryptox.HashPassword(pw, s.hashing)
	if err != nil {
		s.log.Error(ctx, "hash password", "error", err)
		return nil, common.ErrorInternal
	}
	stamp, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, common.ErrorInternal
	}

	u, err := s.users.Create(ctx, &models.User{
		UserName:      username,
		Email:         email,
		Role:          role,
		PasswordHash:  hash,
		SecurityStamp: stamp,
	})
	if err != nil {
		if errors.Is(err, common.ErrStorageConflict) {
			return nil, err
		}
		s.log.Error(ctx, "create user", "username", username, "error", err)
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.log.Info(ctx, "user registered", "principal", u.ID, "role", role)
	return u, nil
}

// Login verifies credentials and issues a token pair. An unknown user and a
// wrong password both yield common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, username, password string, now time.Time) (*TokenPair, error) {
	user, err := s.users.GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		s.log.Error(ctx, "load user", "error", err)
		return nil, common.ErrorInternal
	}

	pw := []byte(password)
	defer common.WipeByteArray(pw)

	ok, err := cryptox.VerifyPassword(pw, user.PasswordHash)
	if err != nil {
		s.log.Error(ctx, "verify password", "principal", user.ID, "error", err)
		return nil, common.ErrorInternal
	}
	if !ok {
		s.log.Info(ctx, "login rejected", "principal", user.ID)
		return nil, common.ErrorUnauthorized
	}

	identity, err := s.supplier.ClaimsFor(ctx, user.ID)
	if err != nil {
		s.log.Error(ctx, "load claims", "principal", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	return s.tokens.Issue(ctx, user.ID, identity, now)
}

// Logout ends the caller's session.
func (s *UserService) Logout(ctx context.Context, principalID int64) error {
	return s.tokens.SignOut(ctx, principalID)
}

// UserClaimSupplier derives identity claims from the users repository.
type UserClaimSupplier struct {
	users users.Repository
}

func NewUserClaimSupplier(repo users.Repository) *UserClaimSupplier {
	return &UserClaimSupplier{users: repo}
}

// ClaimsFor returns role, username, email and security stamp. Empty values
// are left out.
func (c *UserClaimSupplier) ClaimsFor(ctx context.Context, principalID int64) (claims.Set, error) {
	u, err := c.users.GetByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	var set claims.Set
	for _, kv := range [][2]string{
		{claims.Role, u.Role},
		{claims.Username, u.UserName},
		{claims.Email, u.Email},
		{claims.SecurityStamp, u.SecurityStamp},
	} {
		if kv[1] != "" {
			set = set.Add(kv[0], kv[1])
		}
	}
	return set, nil
}
