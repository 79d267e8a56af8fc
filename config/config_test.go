package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Mode != "production" {
		t.Errorf("expected default mode production, got %s", cfg.Mode)
	}
	if cfg.DefaultEncoding != "windows-1251" {
		t.Errorf("expected default encoding windows-1251, got %s", cfg.DefaultEncoding)
	}
}

func TestValidateBasic_DuplicateVhost(t *testing.T) {
	cfg := Defaults()
	cfg.Vhosts = []Vhost{
		{Host: "example.com", DocRoot: "/a"},
		{Host: "example.com", DocRoot: "/b"},
	}
	if err := validateBasic(cfg); err == nil {
		t.Fatal("expected error for duplicate vhost")
	}
}

func TestValidateBasic_BadCacheDriver(t *testing.T) {
	cfg := Defaults()
	cfg.Cache.Distributed = &DistributedDSN{Driver: "oracle", DSN: "x"}
	if err := validateBasic(cfg); err == nil {
		t.Fatal("expected error for unknown cache driver")
	}
}

func TestValidateHTTPS_DevSkipsChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Dev = true
	if err := validateHTTPS(cfg); err != nil {
		t.Fatalf("expected no error in dev mode, got %v", err)
	}
}

func TestVhostCacheTTL(t *testing.T) {
	vh := Vhost{Host: "example.com", CacheTTLSeconds: 30}
	if got := vh.CacheTTL(); got != 30*time.Second {
		t.Errorf("CacheTTL() = %v, want 30s", got)
	}
	off := Vhost{Host: "example.com"}
	if got := off.CacheTTL(); got != 0 {
		t.Errorf("CacheTTL() = %v, want 0", got)
	}
}

func TestInterpolateEnv(t *testing.T) {
	getenv := func(k string) string {
		if k == "PORT" {
			return "9090"
		}
		return ""
	}
	out := interpolateEnv([]byte("port: ${PORT}\nhost: ${HOST:-localhost}"), getenv)
	want := "port: 9090\nhost: localhost"
	if string(out) != want {
		t.Errorf("interpolateEnv() = %q, want %q", out, want)
	}
}
