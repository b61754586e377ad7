package middleware

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/metrics"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/ratelimit"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// ContextInterceptor resolves the calling actor from metadata and stores it
// in the request context. A request id is generated when the caller sent none.
func ContextInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		u, _ := auth.GetUser(ctx)
		if u.RequestID == "" {
			u.RequestID = uuid.New().String()
		}
		ctx = auth.WithUser(ctx, u)
		_ = grpc.SetHeader(ctx, metadata.Pairs(auth.HeaderRequestID, u.RequestID))
		return handler(ctx, req)
	}
}

// RateLimitInterceptor rejects callers over their budget. Anonymous calls
// are keyed by peer address.
func RateLimitInterceptor(limiter ratelimit.Limiter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		key := auth.GetUserID(ctx)
		if key == "" {
			if p, ok := peer.FromContext(ctx); ok {
				key = p.Addr.String()
			}
		}
		if !limiter.Allow(ctx, key) {
			metrics.RateLimited.Inc()
			return nil, apperror.GRPCStatus(apperror.ErrRateLimited).Err()
		}
		return handler(ctx, req)
	}
}

// ErrorInterceptor maps classified errors to gRPC statuses and logs the call.
func ErrorInterceptor(log logger.ZapLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("request_id", auth.GetRequestID(ctx)),
			zap.Duration("duration", time.Since(start)),
		}
		if err == nil {
			log.Debug("grpc call", fields...)
			return resp, nil
		}

		if _, ok := status.FromError(err); !ok {
			st := apperror.GRPCStatus(err)
			if apperror.KindOf(err) == apperror.KindInternal {
				log.Error("grpc call failed", append(fields, zap.Error(err))...)
			} else {
				log.Warn("grpc call rejected", append(fields, zap.String("code", st.Code().String()), zap.Error(err))...)
			}
			return nil, st.Err()
		}
		log.Warn("grpc call failed", append(fields, zap.Error(err))...)
		return nil, err
	}
}
