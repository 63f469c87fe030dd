package grpc

import (
	"context"
	"strings"

	"github.com/google/uuid"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDHeader is the gRPC metadata key for request correlation IDs.
const RequestIDHeader = "x-hexterrain-request-id"

type requestIDContextKey struct{}

// RequestIDFromContext returns the request ID stored in context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey{}).(string)
	return value
}

// WithRequestID stores the request ID in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// IsPrintableASCII reports whether a string contains only printable ASCII characters.
func IsPrintableASCII(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return false
		}
	}
	return true
}

// FirstMetadataValue returns the first printable ASCII metadata value for a key.
func FirstMetadataValue(md metadata.MD, key string) string {
	for mdKey, values := range md {
		if !strings.EqualFold(mdKey, key) {
			continue
		}
		for _, value := range values {
			if IsPrintableASCII(value) {
				return value
			}
		}
	}
	return ""
}

// RequestIDInterceptor reuses the caller's request ID or generates one, stores
// it in the handler context and echoes it in the response header.
func RequestIDInterceptor(newID func() string) gogrpc.UnaryServerInterceptor {
	if newID == nil {
		newID = uuid.NewString
	}
	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		requestID := FirstMetadataValue(md, RequestIDHeader)
		if requestID == "" {
			requestID = newID()
		}
		ctx = WithRequestID(ctx, requestID)
		if err := gogrpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID)); err != nil {
			return nil, status.Errorf(codes.Internal, "set response metadata: %v", err)
		}
		return handler(ctx, req)
	}
}

// RequestIDClientInterceptor forwards the request ID in ctx to outgoing calls
// so peers log under the same ID.
func RequestIDClientInterceptor() gogrpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *gogrpc.ClientConn, invoker gogrpc.UnaryInvoker, opts ...gogrpc.CallOption) error {
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			md, _ := metadata.FromOutgoingContext(ctx)
			if FirstMetadataValue(md, RequestIDHeader) == "" {
				ctx = metadata.AppendToOutgoingContext(ctx, RequestIDHeader, requestID)
			}
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
