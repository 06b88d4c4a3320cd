package sim

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/QYUbit/ticksim/pkg/axlog"
)

var ErrRunnerRunning = errors.New("runner is already running")

const tracerName = "github.com/QYUbit/ticksim/pkg/sim"

// Runner drives a Server at a fixed tick rate. It is the only goroutine
// touching the server while it runs.
type Runner struct {
	server   *Server
	tickRate time.Duration
	logger   axlog.Logger
	tracer   trace.Tracer
	onTick   func(tick uint64, dt time.Duration)

	lastTick  time.Time
	isRunning atomic.Bool
}

func NewRunner(server *Server, tickRate time.Duration, logger axlog.Logger) *Runner {
	if logger == nil {
		logger = axlog.Nop()
	}
	return &Runner{
		server:   server,
		tickRate: tickRate,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		onTick:   func(uint64, time.Duration) {},
	}
}

// OnTick registers fn to run after every tick, on the runner goroutine.
func (r *Runner) OnTick(fn func(tick uint64, dt time.Duration)) {
	r.onTick = fn
}

// Start ticks until ctx is cancelled. A tick in progress always runs to
// completion.
func (r *Runner) Start(ctx context.Context) error {
	if !r.isRunning.CompareAndSwap(false, true) {
		return ErrRunnerRunning
	}
	defer r.isRunning.Store(false)

	t := time.NewTicker(r.tickRate)
	defer t.Stop()

	r.logger.Info("Simulation started", "tick_rate", r.tickRate)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Simulation stopped", "tick", r.server.Now())
			return nil
		case now := <-t.C:
			r.step(ctx, now)
		}
	}
}

func (r *Runner) step(ctx context.Context, now time.Time) {
	var dt time.Duration
	if !r.lastTick.IsZero() {
		dt = now.Sub(r.lastTick)
	}
	r.lastTick = now

	_, span := r.tracer.Start(ctx, "sim.step")
	before := r.server.Stats()

	r.server.Step()

	after := r.server.Stats()
	span.SetAttributes(
		attribute.Int64("sim.tick", int64(r.server.Now())),
		attribute.Int64("sim.received", int64(after.Received-before.Received)),
		attribute.Int64("sim.sent", int64(after.Sent-before.Sent)),
		attribute.Int64("sim.dropped", int64(dropped(after)-dropped(before))),
		attribute.Int("sim.clients", r.server.ClientCount()),
	)
	span.End()

	r.onTick(r.server.Now(), dt)
}

func dropped(s Stats) uint64 {
	return s.Malformed + s.Unauthorized + s.Unknown + s.Unexpected
}
