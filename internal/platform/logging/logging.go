// Package logging builds the structured logger shared by service processes.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/louisbranch/hexterrain/internal/platform/config"
	"github.com/sirupsen/logrus"
)

// Format names accepted by HEXTERRAIN_LOG_FORMAT.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config selects the level and encoding of process logs.
type Config struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// LoadConfig reads logging configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// New builds a logger writing to out. A nil out writes to stderr.
func New(cfg Config, out io.Writer) (*logrus.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(parsed)
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", FormatText:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}
	return logger, nil
}

// ForService returns an entry tagged with the service name.
func ForService(logger *logrus.Logger, service string) *logrus.Entry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithField("service", service)
}

// Component derives an entry tagged with a component name. A nil parent
// falls back to the standard logger.
func Component(parent *logrus.Entry, component string) *logrus.Entry {
	if parent == nil {
		parent = logrus.NewEntry(logrus.StandardLogger())
	}
	return parent.WithField("component", component)
}

// Discard returns an entry that drops everything. Tests use it to keep
// output quiet.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
