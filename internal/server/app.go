// Package server initializes and runs the tokenkeeper server: it opens the
// configured stores, builds the signer and services, and serves gRPC until
// the process is signalled.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/shared/db"

	gs "github.com/dmitrijs2005/tokenkeeper/internal/server/grpc"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	clock        clockwork.Clock
	repositories db.RepositoryManager
	userService  *services.UserService
	tokenService *services.TokenService
}

// NewApp wires every component from c. The caller must Close the app.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	clock := clockwork.NewRealClock()

	signer, err := newSigner(c, clock)
	if err != nil {
		return nil, fmt.Errorf("signer init error: %w", err)
	}

	rm, err := db.Open(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	ts, err := services.NewTokenService(signer, rm.RefreshTokens(),
		c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration, logger)
	if err != nil {
		_ = rm.Close()
		return nil, err
	}
	us := services.NewUserService(rm.Users(), ts, logger)

	if c.AdminUsername != "" {
		if _, err := us.EnsureAdmin(ctx, c.AdminUsername, c.AdminPassword); err != nil {
			_ = rm.Close()
			return nil, fmt.Errorf("admin seed error: %w", err)
		}
	}

	return &App{
		config:       c,
		logger:       logger,
		clock:        clock,
		repositories: rm,
		userService:  us,
		tokenService: ts,
	}, nil
}

func newSigner(c *config.Config, clock clockwork.Clock) (*auth.Signer, error) {
	alg := auth.Algorithm(c.SigningAlgorithm)

	var privatePEM, publicPEM []byte
	var err error
	if c.PrivateKeyFile != "" {
		if privatePEM, err = os.ReadFile(c.PrivateKeyFile); err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
	}
	if c.PublicKeyFile != "" {
		if publicPEM, err = os.ReadFile(c.PublicKeyFile); err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
	}

	signKey, verifyKey, err := auth.LoadKeys(alg, []byte(c.SecretKey), privatePEM, publicPEM)
	if err != nil {
		return nil, err
	}

	return auth.NewSigner(auth.Params{
		Algorithm: alg,
		SignKey:   signKey,
		VerifyKey: verifyKey,
		Issuer:    c.Issuer,
		Audience:  c.Audience,
		ClockSkew: c.ClockSkew,
	}, auth.WithClock(clock))
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.tokenService, app.clock)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "store", app.config.StoreBackend, "alg", app.config.SigningAlgorithm)

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()
}

// Close releases database and cache connections.
func (app *App) Close() error {
	return app.repositories.Close()
}
