// internal/core/api/interceptors.go
package api

import (
	"context"
	"time"

	"github.com/solatis/quill/internal/pkg/logger"
	"github.com/solatis/quill/internal/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDKey is the metadata header carrying the request id in both directions.
const RequestIDKey = "x-request-id"

// RequestIDInterceptor attaches a request id to the context and the response
// header. A well-formed caller id is kept; anything else is replaced.
func RequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var id string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDKey); len(vals) > 0 {
				if parsed, err := types.ParseRequestID(vals[0]); err == nil {
					id = string(parsed)
				}
			}
		}
		if id == "" {
			id = string(types.NewRequestID())
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDKey, id))
		return handler(logger.ContextWithRequestID(ctx, id), req)
	}
}

// LoggingInterceptor logs each call with its duration and status code.
func LoggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	log = log.WithComponent("grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		l := log.WithContext(ctx)
		attrs := []any{"method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start)}
		if err != nil {
			l.WithError(err).Warn("request failed", attrs...)
		} else {
			l.Debug("request served", attrs...)
		}
		return resp, err
	}
}
