package grpc

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"github.com/dmitrijs2005/docvault/internal/server/models"
)

// AccessTokenKey is the metadata entry carrying the JWT.
const AccessTokenKey = "access_token"

type ctxKey string

const identityKey ctxKey = "identity"

// WithIdentity returns ctx carrying who.
func WithIdentity(ctx context.Context, who models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, who)
}

// IdentityFromContext returns the caller placed in ctx by the interceptor.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	who, ok := ctx.Value(identityKey).(models.Identity)
	return who, ok
}

// Authorizer decides whether who may call method on documentID. documentID
// is empty for CreateDocument and SearchDocuments.
type Authorizer interface {
	Authorize(ctx context.Context, who models.Identity, method, documentID string) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, who models.Identity, method, documentID string) error

func (f AuthorizerFunc) Authorize(ctx context.Context, who models.Identity, method, documentID string) error {
	return f(ctx, who, method, documentID)
}

// AuthenticatedOnly admits any authenticated caller.
type AuthenticatedOnly struct{}

func (AuthenticatedOnly) Authorize(_ context.Context, who models.Identity, _, _ string) error {
	if who.UserID == "" {
		return common.ErrorUnauthorized
	}
	return nil
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(AccessTokenKey)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	who, err := auth.GetIdentityFromToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, toStatus(err)
	}

	return handler(WithIdentity(ctx, who), req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	args := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
	switch code {
	case codes.OK:
		s.logger.Debug(ctx, "rpc", args...)
	case codes.Internal, codes.DataLoss, codes.Unknown:
		s.logger.Error(ctx, "rpc failed", append(args, "error", err)...)
	default:
		s.logger.Info(ctx, "rpc rejected", append(args, "error", err)...)
	}
	return resp, err
}
