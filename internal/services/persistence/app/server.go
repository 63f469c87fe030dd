// Package server wires the persistence runtime and gRPC lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	persistencev1 "github.com/louisbranch/hexterrain/api/persistence/v1"
	"github.com/louisbranch/hexterrain/internal/platform/config"
	platformgrpc "github.com/louisbranch/hexterrain/internal/platform/grpc"
	"github.com/louisbranch/hexterrain/internal/platform/logging"
	persistenceservice "github.com/louisbranch/hexterrain/internal/services/persistence/api/grpc/persistence"
	"github.com/louisbranch/hexterrain/internal/services/persistence/events"
	"github.com/louisbranch/hexterrain/internal/services/persistence/operation"
	"github.com/louisbranch/hexterrain/internal/services/persistence/storage/sqlite"
	"github.com/louisbranch/hexterrain/internal/services/persistence/txn"
)

// Env is the persistence runtime configuration read from HEXTERRAIN_* variables.
type Env struct {
	DBPath        string        `env:"PERSISTENCE_DB_PATH"`
	MaxWorkers    int           `env:"PERSISTENCE_MAX_WORKERS" envDefault:"10"`
	IdleTimeout   time.Duration `env:"TRANSACTION_IDLE_TIMEOUT" envDefault:"5m"`
	SweepInterval time.Duration `env:"TRANSACTION_SWEEP_INTERVAL" envDefault:"30s"`
	KafkaBrokers  []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic    string        `env:"KAFKA_TOPIC" envDefault:"terrain.committed"`
}

// LoadEnv reads Env and fills path defaults.
func LoadEnv() (Env, error) {
	var env Env
	if err := config.ParseEnv(&env); err != nil {
		return Env{}, err
	}
	if strings.TrimSpace(env.DBPath) == "" {
		env.DBPath = filepath.Join("data", "persistence.db")
	}
	return env, nil
}

// Server hosts the persistence gRPC API, its store, and the idle sweeper.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	store      *sqlite.Store
	coord      *txn.Coordinator
	api        *persistenceservice.Service
	publisher  events.Publisher
	sweepEvery time.Duration
	log        *logrus.Entry
}

// New creates a persistence server listening on port.
func New(ctx context.Context, port int, log *logrus.Entry) (*Server, error) {
	env, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	return NewWithAddr(ctx, fmt.Sprintf(":%d", port), env, log)
}

// NewWithAddr creates a persistence server for addr.
func NewWithAddr(ctx context.Context, addr string, env Env, log *logrus.Entry) (*Server, error) {
	if log == nil {
		log = logging.Discard()
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	store, err := openStore(ctx, env.DBPath, logging.Component(log, "storage"))
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	coord := txn.New(store, operation.NewDefaultRegistry(),
		txn.WithIdleTimeout(env.IdleTimeout),
		txn.WithLogger(logging.Component(log, "transactions")),
	)

	var publisher events.Publisher = events.Nop{}
	if len(env.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(env.KafkaBrokers, env.KafkaTopic)
		log.WithField("brokers", strings.Join(env.KafkaBrokers, ",")).Info("publishing committed events to kafka")
	}

	grpcServer := grpc.NewServer(platformgrpc.ServerOptions(logging.Component(log, "grpc"), env.MaxWorkers)...)
	apiService := persistenceservice.NewService(persistenceservice.Deps{
		Engine:      store,
		Coordinator: coord,
		Publisher:   publisher,
		Logger:      logging.Component(log, "api"),
	})
	healthServer := health.NewServer()
	persistencev1.RegisterPersistenceServiceServer(grpcServer, apiService)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(persistencev1.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		store:      store,
		coord:      coord,
		api:        apiService,
		publisher:  publisher,
		sweepEvery: env.SweepInterval,
		log:        log,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a persistence server until context cancellation.
func Run(ctx context.Context, port int, log *logrus.Entry) error {
	server, err := New(ctx, port, log)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the gRPC server and the idle sweeper until ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.sweep(sweepCtx)

	s.log.WithField("addr", s.listener.Addr().String()).Info("persistence server listening")
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		return serveResult(<-serveErr)
	case err := <-serveErr:
		return serveResult(err)
	}
}

func serveResult(err error) error {
	if err == nil || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return fmt.Errorf("serve gRPC: %w", err)
}

func (s *Server) sweep(ctx context.Context) {
	if s.sweepEvery <= 0 {
		return
	}
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.coord.Sweep(now); n > 0 {
				s.log.WithField("expired", n).Warn("rolled back idle transactions")
			}
		}
	}
}

// Close releases server resources. Open transactions are rolled back.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.coord != nil {
		if err := s.coord.Close(); err != nil {
			s.log.WithError(err).Warn("roll back open transactions")
		}
	}
	if s.api != nil {
		s.api.Wait()
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.log.WithError(err).Warn("close event publisher")
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.WithError(err).Warn("close persistence store")
		}
	}
}

func openStore(ctx context.Context, path string, log *logrus.Entry) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(ctx, path, log)
	if err != nil {
		return nil, fmt.Errorf("open persistence sqlite store: %w", err)
	}
	return store, nil
}
