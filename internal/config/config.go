// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const Prefix = "TICKSIM_"

type TransportKind string

const (
	TransportUDP          TransportKind = "udp"
	TransportQUIC         TransportKind = "quic"
	TransportWebSocket    TransportKind = "websocket"
	TransportWebTransport TransportKind = "webtransport"
)

type Config struct {
	Addr      string        `env:"ADDR" envDefault:":4242"`
	Transport TransportKind `env:"TRANSPORT" envDefault:"udp"`
	TickRate  time.Duration `env:"TICK_RATE" envDefault:"50ms"`

	// InboxLimit bounds datagrams queued between ticks; 0 is unbounded.
	InboxLimit int `env:"INBOX_LIMIT" envDefault:"4096"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	TLSCert string `env:"TLS_CERT"`
	TLSKey  string `env:"TLS_KEY"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load parses the TICKSIM_ prefixed environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: Prefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Transport {
	case TransportUDP, TransportQUIC, TransportWebSocket, TransportWebTransport:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.TickRate <= 0 {
		return fmt.Errorf("tick rate must be positive, got %s", c.TickRate)
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("TLS_CERT and TLS_KEY must be set together")
	}
	switch c.LogFormat {
	case "text", "json", "charm":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
