// Package terrain parses terrain generation service flags and launches the service.
package terrain

import (
	"context"
	"flag"

	"github.com/sirupsen/logrus"

	entrypoint "github.com/louisbranch/hexterrain/internal/platform/cmd"
	server "github.com/louisbranch/hexterrain/internal/services/terrain/app"
)

// Config holds terrain command configuration.
type Config struct {
	Port int `env:"TERRAIN_PORT" envDefault:"50051"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The terrain generation gRPC server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the terrain generation gRPC service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceTerrain, func(ctx context.Context, log *logrus.Entry) error {
		return server.Run(ctx, cfg.Port, log)
	})
}
