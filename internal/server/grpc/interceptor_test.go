package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"github.com/dmitrijs2005/docvault/internal/server/models"
)

func newInterceptorServer() *GRPCServer {
	return NewGRPCServer("", logging.Nop(), nil, nil, testSecret)
}

func incoming(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(AccessTokenKey, token))
}

func TestAccessTokenInterceptor_PlacesIdentity(t *testing.T) {
	s := newInterceptorServer()
	token, err := auth.GenerateToken("alice", "admin", []byte(testSecret), time.Minute)
	require.NoError(t, err)

	var got models.Identity
	handler := func(ctx context.Context, req any) (any, error) {
		who, ok := IdentityFromContext(ctx)
		require.True(t, ok)
		got = who
		return "ok", nil
	}

	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodGetDocument)}
	resp, err := s.accessTokenInterceptor(incoming(token), nil, info, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, models.Identity{UserID: "alice", Role: "admin"}, got)
}

func TestAccessTokenInterceptor_Rejects(t *testing.T) {
	s := newInterceptorServer()
	wrongSecret, err := auth.GenerateToken("alice", "", []byte("other"), time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name string
		ctx  context.Context
	}{
		{"no metadata", context.Background()},
		{"empty token", incoming("")},
		{"garbage", incoming("abc.def.ghi")},
		{"wrong secret", incoming(wrongSecret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := func(ctx context.Context, req any) (any, error) {
				called = true
				return nil, nil
			}
			info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodCreateDocument)}
			_, err := s.accessTokenInterceptor(tt.ctx, nil, info, handler)
			assert.Equal(t, codes.Unauthenticated, status.Code(err))
			assert.False(t, called)
		})
	}
}

func TestAccessTokenInterceptor_SkipsOtherServices(t *testing.T) {
	s := newInterceptorServer()
	handler := func(ctx context.Context, req any) (any, error) {
		_, ok := IdentityFromContext(ctx)
		assert.False(t, ok)
		return "served", nil
	}

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, handler)
	require.NoError(t, err)
	assert.Equal(t, "served", resp)
}

func TestLoggingInterceptor_ReturnsHandlerResult(t *testing.T) {
	s := newInterceptorServer()
	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodSoftDelete)}
	want := status.Error(codes.NotFound, "not found")

	_, err := s.loggingInterceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, want
	})
	assert.Equal(t, want, err)
}

func TestAuthenticatedOnly(t *testing.T) {
	var a AuthenticatedOnly
	assert.NoError(t, a.Authorize(context.Background(), models.Identity{UserID: "alice"}, MethodGetDocument, "id"))
	assert.True(t, errors.Is(a.Authorize(context.Background(), models.Identity{}, MethodGetDocument, "id"), common.ErrorUnauthorized))
}

func TestAuthorizeWithoutIdentity(t *testing.T) {
	s := newInterceptorServer()
	_, err := s.authorize(context.Background(), MethodGetDocument, "id")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}
