// Package config loads process configuration from HEXTERRAIN_* environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every env tag parsed by ParseEnv.
const EnvPrefix = "HEXTERRAIN_"

// ParseEnv loads configuration from environment variables.
//
// Struct tags name variables without the shared prefix, so a field tagged
// `env:"TERRAIN_PORT"` reads HEXTERRAIN_TERRAIN_PORT.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
