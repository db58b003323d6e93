package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dmitrijs2005/tokenkeeper/internal/api"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/cryptox"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
)

type testEnv struct {
	client api.AuthServiceClient
	conn   *grpc.ClientConn
	clock  *clockwork.FakeClock
	users  *services.UserService
}

func startServer(t *testing.T) (api.AuthServiceClient, *clockwork.FakeClock) {
	t.Helper()
	env := startEnv(t)
	return env.client, env.clock
}

func startEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	signer, err := auth.NewSigner(auth.Params{
		Algorithm: auth.HS256,
		SignKey:   []byte("0123456789abcdef0123456789abcdef"),
		Issuer:    "tokenkeeper",
		Audience:  "tokenkeeper-clients",
	}, auth.WithClock(clock))
	require.NoError(t, err)

	tokens, err := services.NewTokenService(signer, refreshtokens.NewMemoryRepository(), 5*time.Minute, 240*time.Hour, nil)
	require.NoError(t, err)
	us := services.NewUserService(users.NewMemoryRepository(), tokens, nil,
		services.WithHashParams(cryptox.Params{Memory: 1024, Time: 1, Threads: 1, SaltLen: 8, KeyLen: 16}))

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer("bufconn", logging.Nop{}, us, tokens, clock).NewServer()
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testEnv{client: api.NewAuthServiceClient(conn), conn: conn, clock: clock, users: us}
}

func authed(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, token)
}

func TestEndToEnd_SessionLifecycle(t *testing.T) {
	client, clock := startServer(t)
	ctx := context.Background()

	reg, err := client.Register(ctx, &api.RegisterRequest{Username: "alice", Email: "a@example.com", Password: "pw"})
	require.NoError(t, err)

	login, err := client.Login(ctx, &api.LoginRequest{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	me, err := client.WhoAmI(authed(login.AccessToken), &api.WhoAmIRequest{})
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, me.UserID)
	assert.Contains(t, me.Claims, api.Claim{Type: "username", Value: "alice"})

	clock.Advance(61 * time.Minute)

	_, err = client.WhoAmI(authed(login.AccessToken), &api.WhoAmIRequest{})
	st := requireCode(t, err, codes.Unauthenticated)
	assert.Equal(t, "token expired", st.Message())

	refreshed, err := client.Refresh(ctx, &api.RefreshRequest{AccessToken: login.AccessToken, RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.Equal(t, login.RefreshToken, refreshed.RefreshToken)
	assert.True(t, clock.Now().Add(5*time.Minute).Equal(refreshed.ExpiresAt))

	_, err = client.WhoAmI(authed(refreshed.AccessToken), &api.WhoAmIRequest{})
	require.NoError(t, err)

	// the superseded access token can no longer be traded in
	_, err = client.Refresh(ctx, &api.RefreshRequest{AccessToken: login.AccessToken, RefreshToken: login.RefreshToken})
	st = requireCode(t, err, codes.Unauthenticated)
	assert.Equal(t, "invalid token", st.Message())

	_, err = client.Logout(authed(refreshed.AccessToken), &api.LogoutRequest{})
	require.NoError(t, err)

	_, err = client.Refresh(ctx, &api.RefreshRequest{AccessToken: refreshed.AccessToken, RefreshToken: login.RefreshToken})
	requireCode(t, err, codes.Unauthenticated)
}

func TestEndToEnd_AdminRevoke(t *testing.T) {
	env := startEnv(t)
	client := env.client
	ctx := context.Background()

	_, err := env.users.EnsureAdmin(ctx, "root", "pw")
	require.NoError(t, err)
	bob, err := client.Register(ctx, &api.RegisterRequest{Username: "bob", Password: "pw"})
	require.NoError(t, err)

	admin, err := client.Login(ctx, &api.LoginRequest{Username: "root", Password: "pw"})
	require.NoError(t, err)
	session, err := client.Login(ctx, &api.LoginRequest{Username: "bob", Password: "pw"})
	require.NoError(t, err)

	_, err = client.Revoke(authed(session.AccessToken), &api.RevokeRequest{UserID: bob.UserID})
	requireCode(t, err, codes.PermissionDenied)

	_, err = client.Revoke(authed(admin.AccessToken), &api.RevokeRequest{UserID: bob.UserID})
	require.NoError(t, err)

	_, err = client.Refresh(ctx, &api.RefreshRequest{AccessToken: session.AccessToken, RefreshToken: session.RefreshToken})
	requireCode(t, err, codes.Unauthenticated)

	_, err = client.Login(ctx, &api.LoginRequest{Username: "bob", Password: "nope"})
	requireCode(t, err, codes.Unauthenticated)
}

func TestEndToEnd_SelfRegisteredAdminRoleIgnored(t *testing.T) {
	env := startEnv(t)
	client := env.client
	ctx := context.Background()

	victim, err := client.Register(ctx, &api.RegisterRequest{Username: "victim", Password: "pw"})
	require.NoError(t, err)
	victimSession, err := client.Login(ctx, &api.LoginRequest{Username: "victim", Password: "pw"})
	require.NoError(t, err)

	// a hand-crafted request still carrying a role field
	raw := map[string]string{"username": "mallory", "password": "pw", "role": "admin"}
	var reg api.RegisterResponse
	require.NoError(t, env.conn.Invoke(ctx, api.RegisterMethod, raw, &reg, grpc.CallContentSubtype(api.CodecName)))

	mallory, err := client.Login(ctx, &api.LoginRequest{Username: "mallory", Password: "pw"})
	require.NoError(t, err)

	me, err := client.WhoAmI(authed(mallory.AccessToken), &api.WhoAmIRequest{})
	require.NoError(t, err)
	assert.Contains(t, me.Claims, api.Claim{Type: "role", Value: "user"})
	assert.NotContains(t, me.Claims, api.Claim{Type: "role", Value: "admin"})

	_, err = client.Revoke(authed(mallory.AccessToken), &api.RevokeRequest{UserID: victim.UserID})
	requireCode(t, err, codes.PermissionDenied)

	_, err = client.Refresh(ctx, &api.RefreshRequest{AccessToken: victimSession.AccessToken, RefreshToken: victimSession.RefreshToken})
	require.NoError(t, err)
}
