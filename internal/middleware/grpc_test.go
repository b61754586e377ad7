package middleware

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

var info = &grpc.UnaryServerInfo{FullMethod: "/stock.v1.StockService/Issue"}

func TestContextInterceptor(t *testing.T) {
	md := metadata.Pairs(auth.HeaderUserID, "tech-1", auth.HeaderUserRole, "TECH", auth.HeaderRequestID, "req-42")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	var got auth.UserContext
	_, err := ContextInterceptor()(ctx, nil, info, func(ctx context.Context, _ interface{}) (interface{}, error) {
		got, _ = auth.GetUser(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, auth.UserContext{UserID: "tech-1", Role: auth.RoleTech, RequestID: "req-42"}, got)
}

func TestContextInterceptor_GeneratesRequestID(t *testing.T) {
	var got auth.UserContext
	_, err := ContextInterceptor()(context.Background(), nil, info, func(ctx context.Context, _ interface{}) (interface{}, error) {
		got, _ = auth.GetUser(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Empty(t, got.UserID)
	assert.Len(t, got.RequestID, 36)
}

func TestRateLimitInterceptor(t *testing.T) {
	interceptor := RateLimitInterceptor(ratelimit.NewKeyedLimiter(0.001, 1))
	ok := func(context.Context, interface{}) (interface{}, error) { return "ok", nil }

	tech := auth.WithUser(context.Background(), auth.UserContext{UserID: "tech-1"})
	resp, err := interceptor(tech, nil, info, ok)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	_, err = interceptor(tech, nil, info, ok)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// anonymous callers are limited per peer address
	anon := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 5000}})
	_, err = interceptor(anon, nil, info, ok)
	assert.NoError(t, err)
	_, err = interceptor(anon, nil, info, ok)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestErrorInterceptor(t *testing.T) {
	interceptor := ErrorInterceptor(logger.NewNop())

	cases := []struct {
		err  error
		want codes.Code
	}{
		{apperror.ErrInsufficientStock.WithMessage("requested 5, available 2"), codes.FailedPrecondition},
		{apperror.ErrInvalidQuantity, codes.InvalidArgument},
		{apperror.ErrNotFound, codes.NotFound},
		{apperror.ErrForbidden, codes.PermissionDenied},
		{apperror.ErrIntegrity, codes.DataLoss},
		{apperror.ErrLockTimeout.Wrap(errors.New("55P03")), codes.Aborted},
		{errors.New("connection reset"), codes.Internal},
		{status.Error(codes.Unauthenticated, "no token"), codes.Unauthenticated},
	}
	for _, tc := range cases {
		_, err := interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
			return nil, tc.err
		})
		assert.Equal(t, tc.want, status.Code(err), tc.err.Error())
	}

	resp, err := interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return 1, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, resp)
}
