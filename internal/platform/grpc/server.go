package grpc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/semaphore"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultMaxWorkers bounds concurrently running unary handlers per server.
const DefaultMaxWorkers = 10

// ServerOptions returns the standard option set for service servers: tracing,
// request IDs, request logging and a bounded handler pool of maxWorkers.
func ServerOptions(log *logrus.Entry, maxWorkers int) []gogrpc.ServerOption {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	return []gogrpc.ServerOption{
		gogrpc.StatsHandler(otelgrpc.NewServerHandler()),
		gogrpc.NumStreamWorkers(uint32(maxWorkers)),
		gogrpc.ChainUnaryInterceptor(
			RequestIDInterceptor(nil),
			LoggingInterceptor(log),
			LimitInterceptor(int64(maxWorkers)),
		),
	}
}

// LimitInterceptor admits at most limit concurrent unary handlers. Callers
// beyond the limit wait for a slot until their context ends.
func LimitInterceptor(limit int64) gogrpc.UnaryServerInterceptor {
	if limit <= 0 {
		limit = DefaultMaxWorkers
	}
	sem := semaphore.NewWeighted(limit)
	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, status.FromContextError(err).Err()
		}
		defer sem.Release(1)
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs each unary call with its status code and duration.
func LoggingInterceptor(log *logrus.Entry) gogrpc.UnaryServerInterceptor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		entry := log.WithFields(logrus.Fields{
			"request_id":  RequestIDFromContext(ctx),
			"rpc":         info.FullMethod,
			"code":        code.String(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		switch code {
		case codes.OK:
			entry.Debug("rpc served")
		case codes.Internal, codes.Unknown, codes.DataLoss:
			entry.WithError(err).Error("rpc failed")
		default:
			entry.WithError(err).Info("rpc rejected")
		}
		return resp, err
	}
}
