package sim

import (
	"context"
	"log/slog"
	"time"
)

// Runner drives the scheduler on a fixed real-time cadence, ticking every
// registered world once per interval. The engine itself imposes no
// opinion on cadence; Runner is the daemon's choice of loop.
type Runner struct {
	Scheduler *Scheduler
	Interval  time.Duration // base tick interval (default 1 second)
}

// NewRunner creates a runner with the default interval.
func NewRunner(s *Scheduler) *Runner {
	return &Runner{Scheduler: s, Interval: time.Second}
}

// Run blocks, ticking all registered worlds until the context is
// cancelled. Each world receives the measured real delta since its last
// tick, so a slow tick does not compress world time.
func (r *Runner) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("tick runner started", "interval", interval)
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			slog.Info("tick runner stopped")
			return ctx.Err()
		case now := <-ticker.C:
			delta := now.Sub(last).Seconds()
			last = now
			for _, worldID := range r.Scheduler.RegisteredWorlds() {
				if err := r.Scheduler.TickWorld(worldID, delta); err != nil {
					slog.Warn("tick failed", "world", worldID, "error", err)
				}
			}
		}
	}
}
