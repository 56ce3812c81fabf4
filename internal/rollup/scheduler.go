package rollup

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Runner is the unit of work the scheduler repeats.
type Runner interface {
	Run(ctx context.Context) (RunSummary, error)
}

// Scheduler runs the analytics task on a fixed interval.
// Failures are logged and retried on the next tick; the core never retries.
type Scheduler struct {
	interval   time.Duration
	runner     Runner
	runOnStart bool
}

// NewScheduler creates a periodic scheduler for the analytics task.
func NewScheduler(interval time.Duration, runner Runner, runOnStart bool) *Scheduler {
	return &Scheduler{
		interval:   interval,
		runner:     runner,
		runOnStart: runOnStart,
	}
}

// Start runs the task on every tick until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting analytics scheduler",
		"interval", s.interval,
		"run_on_start", s.runOnStart,
	)

	if s.runOnStart {
		s.runOnce(ctx)
	}

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")
			return nil
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	_, err := s.runner.Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrRunInProgress):
		slog.Warn("[Scheduler] Previous analytics run still active, skipping tick")
	case errors.Is(err, context.Canceled):
		slog.Info("[Scheduler] Analytics run interrupted by shutdown")
	default:
		// Already logged with run_id by the task.
		slog.Warn("[Scheduler] Analytics run failed, will retry on next tick", "error", err)
	}
}
