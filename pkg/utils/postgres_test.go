package utils

import "testing"

func TestPostgresPoolDefaults(t *testing.T) {
	cfg := PostgresPoolConfig{}.withDefaults()
	if cfg.MaxOpenConns <= 0 || cfg.MaxIdleConns <= 0 {
		t.Fatalf("expected pool defaults, got %+v", cfg)
	}
	if cfg.PingTimeout <= 0 {
		t.Fatalf("expected ping timeout default")
	}
}

func TestPostgresPoolOverridesKept(t *testing.T) {
	in := PostgresPoolConfig{MaxOpenConns: 5, MaxIdleConns: 2}
	out := in.withDefaults()
	if out.MaxOpenConns != 5 || out.MaxIdleConns != 2 {
		t.Fatalf("expected overrides preserved, got %+v", out)
	}
}
