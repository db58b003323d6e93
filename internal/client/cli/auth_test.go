package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tokenkeeper/internal/api"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/client"
)

func stubInputs(t *testing.T, answers []string, password []byte) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	i := 0
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		if i >= len(answers) {
			return "", io.EOF
		}
		s := answers[i]
		i++
		return s, nil
	}
	getPassword = func(_ io.Writer) ([]byte, error) { return password, nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}

type fakeClient struct {
	loggedIn bool

	regUser, regEmail string
	regPass                    []byte
	regErr                     error

	loginUser string
	loginPass []byte
	loginErr  error

	refreshCalls int
	refreshErr   error

	who    *api.WhoAmIResponse
	whoErr error

	revokedID int64
	revokeErr error

	logoutErr error
	closed    bool
}

var _ client.Client = (*fakeClient)(nil)

func (f *fakeClient) Close() error { f.closed = true; return nil }
func (f *fakeClient) Register(_ context.Context, username, email string, password []byte) (int64, error) {
	f.regUser, f.regEmail = username, email
	f.regPass = append([]byte(nil), password...)
	return 25, f.regErr
}
func (f *fakeClient) Login(_ context.Context, username string, password []byte) error {
	f.loginUser = username
	f.loginPass = append([]byte(nil), password...)
	if f.loginErr == nil {
		f.loggedIn = true
	}
	return f.loginErr
}
func (f *fakeClient) Refresh(context.Context) error { f.refreshCalls++; return f.refreshErr }
func (f *fakeClient) WhoAmI(context.Context) (*api.WhoAmIResponse, error) {
	return f.who, f.whoErr
}
func (f *fakeClient) Logout(context.Context) error { f.loggedIn = false; return f.logoutErr }
func (f *fakeClient) Revoke(_ context.Context, userID int64) error {
	f.revokedID = userID
	return f.revokeErr
}
func (f *fakeClient) LoggedIn() bool { return f.loggedIn }

func newTestApp(f *fakeClient) *App {
	return &App{client: f, out: &bytes.Buffer{}}
}

func TestRegister_Success(t *testing.T) {
	capturePrintln(t)
	stubInputs(t, []string{"alice", "alice@example.org"}, []byte("secret"))

	f := &fakeClient{}
	require.NoError(t, newTestApp(f).Register(context.Background()))

	assert.Equal(t, "alice", f.regUser)
	assert.Equal(t, "alice@example.org", f.regEmail)
	assert.Equal(t, "secret", string(f.regPass))
}

func TestRegister_ErrorPropagates(t *testing.T) {
	stubInputs(t, []string{"alice", ""}, []byte("secret"))

	f := &fakeClient{regErr: client.ErrAlreadyExists}
	err := newTestApp(f).Register(context.Background())
	require.ErrorIs(t, err, client.ErrAlreadyExists)
}

func TestLogin_SetsUserNameAndWipesPassword(t *testing.T) {
	capturePrintln(t)
	pw := []byte("secret")
	stubInputs(t, []string{"alice"}, pw)

	f := &fakeClient{}
	a := newTestApp(f)
	require.NoError(t, a.Login(context.Background()))

	assert.Equal(t, "alice", a.userName)
	assert.Equal(t, "secret", string(f.loginPass))
	assert.Equal(t, make([]byte, len(pw)), pw)
	assert.Equal(t, "(alice)", a.getStatus())
}

func TestLogin_Failure(t *testing.T) {
	stubInputs(t, []string{"alice"}, []byte("wrong"))

	f := &fakeClient{loginErr: client.ErrUnauthorized}
	a := newTestApp(f)
	require.ErrorIs(t, a.Login(context.Background()), client.ErrUnauthorized)
	assert.Empty(t, a.userName)
	assert.Empty(t, a.getStatus())
}

func TestWhoAmI_PrintsClaims(t *testing.T) {
	lines := capturePrintln(t)

	f := &fakeClient{who: &api.WhoAmIResponse{
		UserID:    25,
		ExpiresAt: time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC),
		Claims:    []api.Claim{{Type: "role", Value: "admin"}},
	}}
	require.NoError(t, newTestApp(f).WhoAmI(context.Background()))
	require.Contains(t, *lines, "role = admin")
}

func TestRevoke_ParsesID(t *testing.T) {
	capturePrintln(t)
	f := &fakeClient{}
	a := newTestApp(f)

	require.ErrorIs(t, a.Revoke(context.Background(), nil), errUsage)
	require.ErrorIs(t, a.Revoke(context.Background(), []string{"x"}), errUsage)

	require.NoError(t, a.Revoke(context.Background(), []string{"7"}))
	assert.Equal(t, int64(7), f.revokedID)
}

func TestRefresh(t *testing.T) {
	capturePrintln(t)
	f := &fakeClient{}
	require.NoError(t, newTestApp(f).Refresh(context.Background()))
	assert.Equal(t, 1, f.refreshCalls)

	f.refreshErr = client.ErrUnauthorized
	require.ErrorIs(t, newTestApp(f).Refresh(context.Background()), client.ErrUnauthorized)
}

func TestLogout_ClearsUserEvenOnError(t *testing.T) {
	f := &fakeClient{loggedIn: true, logoutErr: errors.New("down")}
	a := newTestApp(f)
	a.userName = "alice"

	require.Error(t, a.Logout(context.Background()))
	assert.Empty(t, a.userName)
	assert.False(t, a.isLoggedIn())
}

func TestRun_ClosesClient(t *testing.T) {
	capturePrintln(t)
	f := &fakeClient{}
	a := newTestApp(f)
	a.reader = rdr("exit\n")

	a.Run(context.Background())
	assert.True(t, f.closed)
}
