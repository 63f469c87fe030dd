// Package persistence parses persistence service flags and launches the service.
package persistence

import (
	"context"
	"flag"

	"github.com/sirupsen/logrus"

	entrypoint "github.com/louisbranch/hexterrain/internal/platform/cmd"
	server "github.com/louisbranch/hexterrain/internal/services/persistence/app"
)

// Config holds persistence command configuration.
type Config struct {
	Port int `env:"PERSISTENCE_PORT" envDefault:"50052"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The persistence gRPC server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the persistence gRPC service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePersistence, func(ctx context.Context, log *logrus.Entry) error {
		return server.Run(ctx, cfg.Port, log)
	})
}
