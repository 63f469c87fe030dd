package grpc

import (
	"context"
	"net"
	"testing"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

func startRequestIDServer(t *testing.T, seen *string) grpc_health_v1.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 16)
	capture := func(ctx context.Context, req any, _ *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		*seen = RequestIDFromContext(ctx)
		return handler(ctx, req)
	}
	srv := gogrpc.NewServer(gogrpc.ChainUnaryInterceptor(RequestIDInterceptor(func() string { return "generated" }), capture))
	grpc_health_v1.RegisterHealthServer(srv, health.NewServer())
	go func() { _ = srv.Serve(lis) }()

	conn, err := gogrpc.NewClient("passthrough:///bufnet",
		gogrpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithChainUnaryInterceptor(RequestIDClientInterceptor()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})
	return grpc_health_v1.NewHealthClient(conn)
}

func TestRequestIDInterceptorGeneratesAndEchoes(t *testing.T) {
	var seen string
	client := startRequestIDServer(t, &seen)

	var header metadata.MD
	if _, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{}, gogrpc.Header(&header)); err != nil {
		t.Fatalf("check: %v", err)
	}
	if seen != "generated" {
		t.Fatalf("handler request id = %q", seen)
	}
	if got := FirstMetadataValue(header, RequestIDHeader); got != "generated" {
		t.Fatalf("response header = %q", got)
	}
}

func TestRequestIDPropagatesFromContext(t *testing.T) {
	var seen string
	client := startRequestIDServer(t, &seen)

	ctx := WithRequestID(context.Background(), "req-42")
	if _, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{}); err != nil {
		t.Fatalf("check: %v", err)
	}
	if seen != "req-42" {
		t.Fatalf("handler request id = %q, want req-42", seen)
	}
}

func TestFirstMetadataValueSkipsNonPrintable(t *testing.T) {
	md := metadata.MD{"X-Hexterrain-Request-Id": {"bad\x01", "good"}}
	if got := FirstMetadataValue(md, RequestIDHeader); got != "good" {
		t.Fatalf("value = %q", got)
	}
	if got := FirstMetadataValue(nil, RequestIDHeader); got != "" {
		t.Fatalf("nil md value = %q", got)
	}
}
