package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Addr string `env:"PORTAL_TEST_ADDR" envDefault:":8080"`
	TTL  int    `env:"PORTAL_TEST_TTL" envDefault:"30"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.Addr)
	}
	if cfg.TTL != 30 {
		t.Fatalf("expected default ttl 30, got %d", cfg.TTL)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("PORTAL_TEST_ADDR", "127.0.0.1:9000")
	t.Setenv("PORTAL_TEST_TTL", "7")

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("expected overridden addr, got %q", cfg.Addr)
	}
	if cfg.TTL != 7 {
		t.Fatalf("expected overridden ttl 7, got %d", cfg.TTL)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("PORTAL_TEST_TTL", "not-a-number")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
