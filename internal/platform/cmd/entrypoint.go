// Package cmd holds the shared startup path for service commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/hexterrain/internal/platform/config"
	"github.com/louisbranch/hexterrain/internal/platform/logging"
	"github.com/louisbranch/hexterrain/internal/platform/otel"
	"github.com/sirupsen/logrus"
)

const defaultOTelShutdownTimeout = 5 * time.Second

// Service identifiers for startup telemetry and log fields.
const (
	ServiceTerrain     = "terrain"
	ServicePersistence = "persistence"
)

// RunOptions controls shared entrypoint behavior for service commands.
type RunOptions struct {
	// ShutdownTimeout sets the timeout used when stopping telemetry.
	ShutdownTimeout time.Duration
	// Logger receives startup and shutdown lines. Defaults to a logger built
	// from HEXTERRAIN_LOG_* variables.
	Logger *logrus.Entry
}

// ParseConfig loads environment defaults into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// ParseConfigFromArgs loads defaults from env and then parses flags.
func ParseConfigFromArgs[T any](cfg *T, fs *flag.FlagSet, args []string) error {
	if err := ParseConfig(cfg); err != nil {
		return err
	}
	return ParseArgs(fs, args)
}

// NewLogger builds the process logger for service from the environment.
func NewLogger(service string) (*logrus.Entry, error) {
	cfg, err := logging.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg, nil)
	if err != nil {
		return nil, err
	}
	return logging.ForService(logger, service), nil
}

// RunWithTelemetry configures observability and executes a service run loop.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context, *logrus.Entry) error) error {
	return RunWithTelemetryAndOptions(ctx, service, RunOptions{}, run)
}

// RunWithTelemetryAndOptions configures observability and executes a service run loop.
func RunWithTelemetryAndOptions(ctx context.Context, service string, options RunOptions, run func(context.Context, *logrus.Entry) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log := options.Logger
	if log == nil {
		var err error
		log, err = NewLogger(service)
		if err != nil {
			return err
		}
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		shutdownTimeout := options.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = defaultOTelShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("otel shutdown")
		}
	}()
	return run(ctx, log)
}
