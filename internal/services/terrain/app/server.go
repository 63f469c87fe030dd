// Package server wires the terrain generation runtime: the gRPC API, the
// HTTP gateway, and the persistence client used by the generation saga.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	persistencev1 "github.com/louisbranch/hexterrain/api/persistence/v1"
	terrainv1 "github.com/louisbranch/hexterrain/api/terrain/v1"
	"github.com/louisbranch/hexterrain/internal/platform/config"
	"github.com/louisbranch/hexterrain/internal/platform/discovery"
	platformgrpc "github.com/louisbranch/hexterrain/internal/platform/grpc"
	"github.com/louisbranch/hexterrain/internal/platform/logging"
	"github.com/louisbranch/hexterrain/internal/platform/timeouts"
	"github.com/louisbranch/hexterrain/internal/services/shared/grpcdial"
	terrainservice "github.com/louisbranch/hexterrain/internal/services/terrain/api/grpc/terrain"
	"github.com/louisbranch/hexterrain/internal/services/terrain/api/http/gateway"
	"github.com/louisbranch/hexterrain/internal/services/terrain/grower"
	"github.com/louisbranch/hexterrain/internal/services/terrain/saga"
	"github.com/louisbranch/hexterrain/internal/terrain/biome"
)

// Env is the terrain runtime configuration read from HEXTERRAIN_* variables.
type Env struct {
	PersistenceAddr string `env:"TERRAIN_PERSISTENCE_ADDR"`
	// PersistenceRequired fails startup when persistence is not healthy.
	// Otherwise the client connects lazily and persisting requests fail
	// until the peer is reachable.
	PersistenceRequired bool          `env:"TERRAIN_PERSISTENCE_REQUIRED" envDefault:"false"`
	HTTPAddr            string        `env:"TERRAIN_HTTP_ADDR"`
	WeightsPath         string        `env:"TERRAIN_WEIGHTS_PATH"`
	MaxAttempts         int           `env:"TERRAIN_MAX_ATTEMPTS" envDefault:"8"`
	MaxTiles            int           `env:"TERRAIN_MAX_TILES" envDefault:"10000"`
	MaxWorkers          int           `env:"TERRAIN_MAX_WORKERS" envDefault:"10"`
	CallTimeout         time.Duration `env:"TERRAIN_PERSISTENCE_CALL_TIMEOUT" envDefault:"2s"`
}

// LoadEnv reads Env and fills address defaults.
func LoadEnv() (Env, error) {
	var env Env
	if err := config.ParseEnv(&env); err != nil {
		return Env{}, err
	}
	env.PersistenceAddr = discovery.OrDefaultGRPCAddr(env.PersistenceAddr, discovery.ServicePersistence)
	if strings.TrimSpace(env.HTTPAddr) == "" {
		env.HTTPAddr = fmt.Sprintf(":%d", discovery.DefaultHTTPPort(discovery.ServiceTerrain))
	}
	return env, nil
}

// Server hosts the terrain gRPC API and its HTTP gateway.
type Server struct {
	listener        net.Listener
	httpListener    net.Listener
	grpcServer      *grpc.Server
	httpServer      *http.Server
	health          *health.Server
	persistenceConn *grpc.ClientConn
	gatewayConn     *grpc.ClientConn
	log             *logrus.Entry
}

// New creates a terrain server listening on port.
func New(ctx context.Context, port int, log *logrus.Entry) (*Server, error) {
	env, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	return NewWithAddr(ctx, fmt.Sprintf(":%d", port), env, log)
}

// NewWithAddr creates a terrain server for addr. env.HTTPAddr "off" disables
// the gateway.
func NewWithAddr(ctx context.Context, addr string, env Env, log *logrus.Entry) (*Server, error) {
	if log == nil {
		log = logging.Discard()
	}
	weights, err := biome.LoadWeights(env.WeightsPath)
	if err != nil {
		return nil, err
	}

	persistenceConn, err := dialPersistence(ctx, env, log)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		_ = persistenceConn.Close()
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	growerOpts := []grower.Option{
		grower.WithWeights(weights),
		grower.WithMaxAttempts(env.MaxAttempts),
		grower.WithLogger(logging.Component(log, "grower")),
	}
	if env.MaxTiles > 0 {
		growerOpts = append(growerOpts, grower.WithMaxTiles(env.MaxTiles))
	}
	g := grower.New(growerOpts...)
	orchestrator := saga.New(g, persistencev1.NewPersistenceServiceClient(persistenceConn),
		saga.WithCallTimeout(env.CallTimeout),
		saga.WithLogger(logging.Component(log, "saga")),
	)

	grpcServer := grpc.NewServer(platformgrpc.ServerOptions(logging.Component(log, "grpc"), env.MaxWorkers)...)
	healthServer := health.NewServer()
	terrainv1.RegisterTerrainGenerationServiceServer(grpcServer, terrainservice.NewService(orchestrator, logging.Component(log, "api")))
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(terrainv1.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	s := &Server{
		listener:        listener,
		grpcServer:      grpcServer,
		health:          healthServer,
		persistenceConn: persistenceConn,
		log:             log,
	}

	if strings.TrimSpace(env.HTTPAddr) != "off" {
		if err := s.setupGateway(env.HTTPAddr); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Server) setupGateway(addr string) error {
	httpListener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen http on %s: %w", addr, err)
	}
	gatewayConn, err := grpc.NewClient(s.listener.Addr().String(), platformgrpc.DefaultClientDialOptions()...)
	if err != nil {
		_ = httpListener.Close()
		return fmt.Errorf("dial terrain gRPC for gateway: %w", err)
	}
	s.httpListener = httpListener
	s.gatewayConn = gatewayConn
	s.httpServer = &http.Server{
		Handler:           gateway.NewRouter(terrainv1.NewTerrainGenerationServiceClient(gatewayConn), logging.Component(s.log, "gateway")),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	return nil
}

func dialPersistence(ctx context.Context, env Env, log *logrus.Entry) (*grpc.ClientConn, error) {
	return grpcdial.Dial(ctx, grpcdial.Peer{
		Label:    "persistence",
		Addr:     env.PersistenceAddr,
		Service:  persistencev1.ServiceName,
		Required: env.PersistenceRequired,
		Timeout:  timeouts.GRPCDial,
	}, logging.Component(log, "dial"))
}

// Addr returns the gRPC listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HTTPAddr returns the gateway listener address, or "" when disabled.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Run creates and serves a terrain server until context cancellation.
func Run(ctx context.Context, port int, log *logrus.Entry) error {
	server, err := New(ctx, port, log)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs the gRPC server and the gateway until ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	serveErr := make(chan error, 2)
	s.log.WithField("addr", s.Addr()).Info("terrain server listening")
	go func() {
		serveErr <- grpcResult(s.grpcServer.Serve(s.listener))
	}()
	if s.httpServer != nil {
		s.log.WithField("addr", s.HTTPAddr()).Info("terrain gateway listening")
		go func() {
			serveErr <- httpResult(s.httpServer.Serve(s.httpListener))
		}()
	}

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-serveErr:
		if shutdownErr := s.shutdown(); shutdownErr != nil {
			s.log.WithError(shutdownErr).Warn("shutdown after serve failure")
		}
		return err
	}
}

func (s *Server) shutdown() error {
	s.health.Shutdown()
	var err error
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if shutdownErr := s.httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			err = fmt.Errorf("shutdown http gateway: %w", shutdownErr)
		}
	}
	s.grpcServer.GracefulStop()
	return err
}

func grpcResult(err error) error {
	if err == nil || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return fmt.Errorf("serve gRPC: %w", err)
}

func httpResult(err error) error {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("serve http gateway: %w", err)
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.gatewayConn != nil {
		_ = s.gatewayConn.Close()
	}
	if s.persistenceConn != nil {
		_ = s.persistenceConn.Close()
	}
}
