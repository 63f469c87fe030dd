package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port    int           `env:"TEST_PORT" envDefault:"123"`
	Timeout time.Duration `env:"TEST_TIMEOUT" envDefault:"2s"`
	Brokers []string      `env:"TEST_BROKERS" envSeparator:","`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
	if cfg.Timeout != 2*time.Second {
		t.Fatalf("expected default timeout 2s, got %s", cfg.Timeout)
	}
	if len(cfg.Brokers) != 0 {
		t.Fatalf("expected no brokers, got %v", cfg.Brokers)
	}
}

func TestParseEnvUsesPrefix(t *testing.T) {
	t.Setenv("TEST_PORT", "999")
	t.Setenv("HEXTERRAIN_TEST_PORT", "456")
	t.Setenv("HEXTERRAIN_TEST_BROKERS", "a:9092,b:9092")

	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 456 {
		t.Fatalf("expected prefixed port 456, got %d", cfg.Port)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "b:9092" {
		t.Fatalf("brokers = %v, want [a:9092 b:9092]", cfg.Brokers)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("HEXTERRAIN_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
