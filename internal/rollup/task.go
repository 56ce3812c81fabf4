package rollup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aevon-lab/listenstats/internal/core/analytics"
	coreerr "github.com/aevon-lab/listenstats/internal/core/errors"
	"github.com/aevon-lab/listenstats/internal/core/storage"
	"github.com/aevon-lab/listenstats/internal/metrics"
	"github.com/google/uuid"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("analytics run already in progress")

// TaskDeps groups the collaborators of the analytics task.
type TaskDeps struct {
	Settings  storage.Settings
	Stations  storage.StationRepository
	Listeners storage.ListenerStore
	Store     storage.AnalyticsStore
	Stats     storage.StatsSource
	Uniques   storage.UniqueCountSource
}

// RunSummary is the outcome of one task run.
type RunSummary struct {
	RunID       string          `json:"run_id"`
	Level       analytics.Level `json:"level"`
	Action      string          `json:"action"`
	Stations    int             `json:"stations"`
	WindowStart time.Time       `json:"window_start,omitempty"`
	Days        int             `json:"days"`
	Records     int             `json:"records"`
	Duration    time.Duration   `json:"duration"`
}

// Task applies the configured analytics level: it purges identifier-bearing
// data and/or regenerates the trailing analytics window.
// Only one run executes at a time.
type Task struct {
	settings  storage.Settings
	stations  storage.StationRepository
	listeners storage.ListenerStore
	store     storage.AnalyticsStore
	engine    *Engine
	nowFn     func() time.Time

	mu sync.Mutex
}

// NewTask creates the analytics task.
func NewTask(deps TaskDeps, opts EngineOptions) *Task {
	if deps.Settings == nil {
		panic("rollup: settings must not be nil")
	}
	if deps.Stations == nil {
		panic("rollup: station repository must not be nil")
	}
	if deps.Listeners == nil {
		panic("rollup: listener store must not be nil")
	}
	if deps.Store == nil {
		panic("rollup: analytics store must not be nil")
	}
	if deps.Stats == nil || deps.Uniques == nil {
		panic("rollup: stats sources must not be nil")
	}
	return &Task{
		settings:  deps.Settings,
		stations:  deps.Stations,
		listeners: deps.Listeners,
		store:     deps.Store,
		engine:    NewEngine(deps.Stats, deps.Uniques, deps.Store, opts),
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Run executes one pass at the current time.
func (t *Task) Run(ctx context.Context) (RunSummary, error) {
	return t.RunAt(ctx, t.nowFn())
}

// RunAt executes one pass as if the current time were now.
func (t *Task) RunAt(ctx context.Context, now time.Time) (RunSummary, error) {
	if !t.mu.TryLock() {
		metrics.RollupRuns.WithLabelValues("unknown", "skipped").Inc()
		return RunSummary{}, ErrRunInProgress
	}
	defer t.mu.Unlock()

	started := time.Now()
	summary := RunSummary{RunID: uuid.NewString()}
	logger := slog.With("run_id", summary.RunID)

	summary, err := t.run(ctx, now, summary, logger)
	summary.Duration = time.Since(started)

	metrics.RollupDuration.Observe(summary.Duration.Seconds())
	action := summary.Action
	if action == "" {
		action = "unknown"
	}
	if err != nil {
		metrics.RollupRuns.WithLabelValues(action, "error").Inc()
		logger.Error("[Task] Analytics run failed",
			"level", summary.Level,
			"action", summary.Action,
			"days_committed", summary.Days,
			"error", err,
		)
		return summary, err
	}

	metrics.RollupRuns.WithLabelValues(action, "success").Inc()
	metrics.RollupLastSuccess.SetToCurrentTime()
	logger.Info("[Task] Analytics run complete",
		"level", summary.Level,
		"action", summary.Action,
		"stations", summary.Stations,
		"days", summary.Days,
		"records", summary.Records,
		"duration", summary.Duration,
	)
	return summary, nil
}

func (t *Task) run(ctx context.Context, now time.Time, summary RunSummary, logger *slog.Logger) (RunSummary, error) {
	level, err := t.settings.AnalyticsLevel(ctx)
	if err != nil {
		var cfgErr *coreerr.ConfigurationError
		if errors.As(err, &cfgErr) {
			return summary, err
		}
		return summary, fmt.Errorf("read analytics level: %w", err)
	}
	summary.Level = level

	action, err := analytics.Decide(level)
	if err != nil {
		return summary, err
	}
	summary.Action = action.Name()

	// Stations are loaded and their zones resolved before anything is purged,
	// so a bad timezone aborts the run with no mutation.
	var stations []analytics.Station
	if action.RunRollup {
		stations, err = t.loadStations(ctx)
		if err != nil {
			return summary, err
		}
		summary.Stations = len(stations)
	}

	logger.Info("[Task] Applying analytics level",
		"level", level,
		"action", summary.Action,
		"stations", len(stations),
	)

	if action.PurgeListeners {
		if err := t.listeners.PurgeAll(ctx); err != nil {
			return summary, &coreerr.StoreError{Op: "purge_listeners", Err: err}
		}
		logger.Info("[Task] Purged listener records")
	}

	if action.PurgeAnalytics {
		if err := t.store.PurgeAllAnalytics(ctx); err != nil {
			return summary, &coreerr.StoreError{Op: "purge_all_analytics", Err: err}
		}
		logger.Info("[Task] Purged all analytics records")
	}

	if !action.RunRollup {
		return summary, nil
	}

	result, err := t.engine.Run(ctx, stations, now, action.WithUniqueListeners)
	summary.WindowStart = result.WindowStart
	summary.Days = result.Days
	summary.Records = result.Records
	return summary, err
}

func (t *Task) loadStations(ctx context.Context) ([]analytics.Station, error) {
	raw, err := t.stations.ListStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}

	stations := make([]analytics.Station, 0, len(raw))
	for _, st := range raw {
		resolved, err := analytics.ResolveLocation(st)
		if err != nil {
			return nil, err
		}
		stations = append(stations, resolved)
	}
	return stations, nil
}
