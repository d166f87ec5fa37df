package simulator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/atmx/portfolio-engine/internal/ledger"
	"github.com/atmx/portfolio-engine/internal/model"
)

// DefaultSchedule matches the dashboard's three-second refresh.
const DefaultSchedule = "@every 3s"

// Sink receives simulated ticks. The trade service implements it.
type Sink interface {
	Instruments() []model.Instrument
	ApplyTicks(ctx context.Context, ticks []ledger.PriceTick) error
}

// Runner applies a simulator tick to a sink on a cron schedule.
type Runner struct {
	cron     *cron.Cron
	sim      *Simulator
	sink     Sink
	schedule string
}

// NewRunner creates a runner. An empty schedule selects DefaultSchedule.
func NewRunner(sim *Simulator, sink Sink, schedule string) *Runner {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Runner{
		cron:     cron.New(),
		sim:      sim,
		sink:     sink,
		schedule: schedule,
	}
}

// Run registers the tick job and blocks until ctx is cancelled, then waits
// for a running tick to finish.
func (r *Runner) Run(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.schedule, func() { r.TickOnce(ctx) }); err != nil {
		return fmt.Errorf("simulator: invalid schedule %q: %w", r.schedule, err)
	}

	r.cron.Start()
	slog.Info("price simulator started", "schedule", r.schedule)

	<-ctx.Done()
	<-r.cron.Stop().Done()
	slog.Info("price simulator stopped")
	return nil
}

// TickOnce draws one price for every instrument and hands them to the sink.
func (r *Runner) TickOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ticks := r.sim.Tick(r.sink.Instruments())
	if len(ticks) == 0 {
		return
	}
	if err := r.sink.ApplyTicks(ctx, ticks); err != nil {
		slog.Error("apply price ticks failed", "err", err, "count", len(ticks))
	}
}
