package grpc

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/tokenkeeper/internal/api"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
)

func newTestServer(tokens *fakeTokens) *GRPCServer {
	return NewGRPCServer("", logging.Nop{}, &fakeUsers{}, tokens, nil)
}

func withToken(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.AccessTokenHeaderName, token))
}

func TestInterceptor_UnprotectedMethodSkipsToken(t *testing.T) {
	s := newTestServer(&fakeTokens{authErr: common.ErrSignatureInvalid})

	called := false
	h := func(ctx context.Context, req any) (any, error) {
		called = true
		return "ok", nil
	}

	for _, m := range []string{api.LoginMethod, api.RefreshMethod, api.RegisterMethod} {
		called = false
		resp, err := s.accessTokenInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: m}, h)
		require.NoError(t, err)
		assert.True(t, called, m)
		assert.Equal(t, "ok", resp)
	}
}

func TestInterceptor_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		ctx     context.Context
		authErr error
		wantMsg string
	}{
		{"missing metadata", context.Background(), nil, "missing token"},
		{"empty token", withToken(""), nil, "missing token"},
		{"expired", withToken("t"), fmt.Errorf("%w: exp", common.ErrTokenExpired), "token expired"},
		{"bad signature", withToken("t"), common.ErrSignatureInvalid, "invalid token"},
		{"wrong audience", withToken("t"), common.ErrAudienceOrIssuerMismatch, "invalid token"},
		{"bad subject", withToken("t"), common.ErrInvalidPrincipal, "invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeTokens{authErr: tt.authErr})
			h := func(ctx context.Context, req any) (any, error) {
				t.Fatal("handler must not run")
				return nil, nil
			}
			_, err := s.accessTokenInterceptor(tt.ctx, nil, &grpc.UnaryServerInfo{FullMethod: api.WhoAmIMethod}, h)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, codes.Unauthenticated, st.Code())
			assert.Equal(t, tt.wantMsg, st.Message())
		})
	}
}

func TestInterceptor_PutsPrincipalInContext(t *testing.T) {
	v := &auth.Verified{Subject: "25"}
	s := newTestServer(&fakeTokens{verified: v, userID: 25})

	h := func(ctx context.Context, req any) (any, error) {
		id, ok := userIDFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, int64(25), id)
		got, ok := verifiedFromContext(ctx)
		require.True(t, ok)
		assert.Same(t, v, got)
		return nil, nil
	}
	_, err := s.accessTokenInterceptor(withToken("t"), nil, &grpc.UnaryServerInfo{FullMethod: api.LogoutMethod}, h)
	require.NoError(t, err)
}
