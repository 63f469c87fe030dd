package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	persistencev1 "github.com/louisbranch/hexterrain/api/persistence/v1"
)

func startServer(t *testing.T, env Env) (*Server, *grpc.ClientConn) {
	t.Helper()
	srv, err := NewWithAddr(context.Background(), "127.0.0.1:0", env, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(runCtx)
	}()
	t.Cleanup(func() {
		runCancel()
		select {
		case serveErr := <-serveDone:
			if serveErr != nil {
				t.Fatalf("serve: %v", serveErr)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for server shutdown")
		}
	})

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial persistence server: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return srv, conn
}

func TestLoadEnvDefaults(t *testing.T) {
	t.Setenv("HEXTERRAIN_PERSISTENCE_DB_PATH", "")
	t.Setenv("HEXTERRAIN_KAFKA_BROKERS", "a:9092,b:9092")
	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if env.DBPath != filepath.Join("data", "persistence.db") {
		t.Fatalf("db path = %q", env.DBPath)
	}
	if env.IdleTimeout != 5*time.Minute || env.SweepInterval != 30*time.Second {
		t.Fatalf("timeouts = %v/%v", env.IdleTimeout, env.SweepInterval)
	}
	if len(env.KafkaBrokers) != 2 || env.KafkaTopic != "terrain.committed" {
		t.Fatalf("kafka = %v %q", env.KafkaBrokers, env.KafkaTopic)
	}
}

func TestServerRoundTripAndHealth(t *testing.T) {
	_, conn := startServer(t, Env{DBPath: filepath.Join(t.TempDir(), "nested", "persistence.db"), MaxWorkers: 2})
	ctx := context.Background()

	healthResp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: persistencev1.ServiceName})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if healthResp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("health status = %v", healthResp.GetStatus())
	}

	client := persistencev1.NewPersistenceServiceClient(conn)
	begin, err := client.BeginTransaction(ctx, &persistencev1.BeginTransactionRequest{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	stored, err := client.StoreTerrain(ctx, &persistencev1.StoreTerrainRequest{
		Tiles:         []*persistencev1.TerrainTile{{X: 0, Y: 0, TerrainType: "forest"}},
		TransactionID: begin.TransactionID,
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := client.CommitTransaction(ctx, &persistencev1.CommitTransactionRequest{TransactionID: begin.TransactionID}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, err := client.RetrieveTerrain(ctx, &persistencev1.RetrieveTerrainRequest{TerrainGroupID: stored.TerrainGroupID})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got.Tiles) != 1 || got.Tiles[0].TerrainType != "forest" {
		t.Fatalf("unexpected tiles %+v", got.Tiles)
	}
}

func TestServerSweepsIdleTransactions(t *testing.T) {
	srv, conn := startServer(t, Env{
		DBPath:        filepath.Join(t.TempDir(), "persistence.db"),
		IdleTimeout:   20 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
	})
	client := persistencev1.NewPersistenceServiceClient(conn)

	if _, err := client.BeginTransaction(context.Background(), &persistencev1.BeginTransactionRequest{}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for srv.coord.Open() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("idle transaction was never swept")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewWithAddrRejectsBadAddress(t *testing.T) {
	if _, err := NewWithAddr(context.Background(), "256.0.0.1:-1", Env{DBPath: filepath.Join(t.TempDir(), "x.db")}, nil); err == nil {
		t.Fatal("expected listen error")
	}
}

func TestServeNilServer(t *testing.T) {
	var s *Server
	if err := s.Serve(context.Background()); err == nil {
		t.Fatal("expected error for nil server")
	}
}
