package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/QYUbit/ticksim/internal/config"
	"github.com/QYUbit/ticksim/internal/logging"
	"github.com/QYUbit/ticksim/internal/telemetry"
	"github.com/QYUbit/ticksim/pkg/sim"
)

const serviceName = "ticksim"

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("load config: %v", err)
	}

	logger, err := logging.New(os.Stderr, cfg, serviceName)
	if err != nil {
		config.Exitf("create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		config.Exitf("setup tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("Failed to flush traces", "error", err)
		}
	}()

	tr, err := openTransport(ctx, cfg, logger)
	if err != nil {
		config.Exitf("open transport: %v", err)
	}
	defer func() {
		if err := tr.Close(); err != nil {
			logger.Error("Failed to close transport", "error", err)
		}
	}()

	logger.Info("Listening", "transport", cfg.Transport, "addr", tr.Addr())

	server := sim.NewServer(tr, sim.WithLogger(logger))
	runner := sim.NewRunner(server, cfg.TickRate, logger)

	if err := runner.Start(ctx); err != nil {
		logger.Error("Simulation failed", "error", err)
	}

	stats := server.Stats()
	logger.Info("Exiting",
		"ticks", server.Now(),
		"clients", server.ClientCount(),
		"received", stats.Received,
		"sent", stats.Sent,
	)
}
