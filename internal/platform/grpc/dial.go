package grpc

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Dialer creates client connections.
type Dialer interface {
	NewClient(addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error)

// NewClient implements Dialer for DialerFunc.
func (fn DialerFunc) NewClient(addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	return fn(addr, opts...)
}

// DialStage describes where a dial attempt failed.
type DialStage string

const (
	// DialStageConnect indicates the client could not be created.
	DialStageConnect DialStage = "connect"
	// DialStageHealth indicates the peer never reported SERVING.
	DialStageHealth DialStage = "health"
)

// DialError wraps dial and health check failures with a stage indicator.
type DialError struct {
	Stage DialStage
	Err   error
}

// Error implements the error interface.
func (e *DialError) Error() string {
	if e == nil {
		return "gRPC dial error"
	}
	return fmt.Sprintf("gRPC %s error: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *DialError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DefaultClientDialOptions returns standard dial options for internal peers.
// Outbound calls carry trace context when a TracerProvider is registered.
func DefaultClientDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		gogrpc.WithChainUnaryInterceptor(RequestIDClientInterceptor()),
	}
}

// DialWithHealth creates a client for addr and waits until the peer's health
// service reports SERVING for service ("" checks the server as a whole).
// The connection is closed when the health check fails.
func DialWithHealth(ctx context.Context, dialer Dialer, addr, service string, dialTimeout time.Duration, logf func(string, ...any), opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if dialer == nil {
		dialer = DialerFunc(gogrpc.NewClient)
	}

	conn, err := dialer.NewClient(addr, opts...)
	if err != nil {
		return nil, &DialError{Stage: DialStageConnect, Err: err}
	}

	healthCtx := ctx
	if dialTimeout > 0 {
		var cancel context.CancelFunc
		healthCtx, cancel = context.WithTimeout(ctx, dialTimeout)
		defer cancel()
	}
	if err := WaitForHealth(healthCtx, conn, service, logf); err != nil {
		_ = conn.Close()
		return nil, &DialError{Stage: DialStageHealth, Err: err}
	}
	return conn, nil
}
