package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Addr != ":4242" {
		t.Errorf("Expected default addr, got %q", cfg.Addr)
	}
	if cfg.Transport != TransportUDP {
		t.Errorf("Expected udp, got %q", cfg.Transport)
	}
	if cfg.TickRate != 50*time.Millisecond {
		t.Errorf("Expected 50ms, got %s", cfg.TickRate)
	}
	if cfg.InboxLimit != 4096 {
		t.Errorf("Expected inbox limit 4096, got %d", cfg.InboxLimit)
	}
	if level, _ := cfg.SlogLevel(); level != slog.LevelInfo {
		t.Errorf("Expected info level, got %v", level)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TICKSIM_ADDR", "127.0.0.1:9000")
	t.Setenv("TICKSIM_TRANSPORT", "quic")
	t.Setenv("TICKSIM_TICK_RATE", "16ms")
	t.Setenv("TICKSIM_LOG_LEVEL", "debug")
	t.Setenv("TICKSIM_LOG_FORMAT", "charm")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Addr != "127.0.0.1:9000" || cfg.Transport != TransportQUIC || cfg.TickRate != 16*time.Millisecond {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if level, _ := cfg.SlogLevel(); level != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", level)
	}
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("TICKSIM_TICK_RATE", "soon")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("Expected parse env prefix, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{Transport: TransportUDP, TickRate: time.Millisecond, LogLevel: "info", LogFormat: "text"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"transport", func(c *Config) { c.Transport = "carrier-pigeon" }},
		{"tick rate", func(c *Config) { c.TickRate = 0 }},
		{"tls pair", func(c *Config) { c.TLSCert = "cert.pem" }},
		{"log format", func(c *Config) { c.LogFormat = "xml" }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		cfg := valid
		tt.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}
