package rollup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/listenstats/internal/core/analytics"
	coreerr "github.com/aevon-lab/listenstats/internal/core/errors"
	"github.com/aevon-lab/listenstats/internal/core/storage"
	"github.com/aevon-lab/listenstats/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWindowDays   = 5
	defaultQueryWorkers = 4
)

// EngineOptions controls the trailing window and per-bucket query fan-out.
type EngineOptions struct {
	WindowDays   int
	QueryWorkers int
}

// DefaultEngineOptions returns a 5-day window with 4 concurrent station queries per bucket.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		WindowDays:   defaultWindowDays,
		QueryWorkers: defaultQueryWorkers,
	}
}

func (o EngineOptions) normalized() EngineOptions {
	n := o
	if n.WindowDays <= 0 {
		n.WindowDays = defaultWindowDays
	}
	if n.QueryWorkers <= 0 {
		n.QueryWorkers = 1
	}
	return n
}

// Result describes one completed rollup pass.
type Result struct {
	WindowStart time.Time
	Days        int
	Records     int
}

// Engine regenerates hourly and daily analytics over a trailing window.
//
// Every run purges records at or after the window start, then walks the window
// one UTC day at a time, committing once per day. A failed day is discarded;
// days committed before it stay valid.
type Engine struct {
	stats   storage.StatsSource
	uniques storage.UniqueCountSource
	store   storage.AnalyticsStore
	opts    EngineOptions
}

// NewEngine creates a rollup engine.
func NewEngine(
	stats storage.StatsSource,
	uniques storage.UniqueCountSource,
	store storage.AnalyticsStore,
	opts EngineOptions,
) *Engine {
	return &Engine{
		stats:   stats,
		uniques: uniques,
		store:   store,
		opts:    opts.normalized(),
	}
}

// Run rolls up [WindowStart(now), now) for the given stations.
// stations must already have their Location resolved and stay fixed for the run.
func (e *Engine) Run(
	ctx context.Context,
	stations []analytics.Station,
	now time.Time,
	withUniqueListeners bool,
) (Result, error) {
	now = now.UTC()
	windowStart := analytics.WindowStart(now, e.opts.WindowDays)
	result := Result{WindowStart: windowStart}

	slog.Info("[Rollup] Starting rollup",
		"window_start", windowStart,
		"now", now,
		"stations", len(stations),
		"unique_listeners", withUniqueListeners,
		"query_workers", e.opts.QueryWorkers,
	)

	if err := e.store.PurgeAnalyticsFrom(ctx, windowStart); err != nil {
		return result, &coreerr.StoreError{Op: "purge_analytics_from", Err: err}
	}

	for day := windowStart; day.Before(now); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			e.store.Clear()
			return result, fmt.Errorf("rollup cancelled before %s: %w", day.Format(time.DateOnly), err)
		}

		hourly, daily, err := e.stageDay(ctx, day, stations, withUniqueListeners)
		if err != nil {
			e.store.Clear()
			return result, err
		}

		if err := e.store.Commit(ctx); err != nil {
			e.store.Clear()
			return result, &coreerr.StoreError{Op: "commit", Err: err}
		}

		metrics.RollupDaysCommitted.Inc()
		metrics.RollupRecordsWritten.WithLabelValues(string(analytics.IntervalHourly)).Add(float64(hourly))
		metrics.RollupRecordsWritten.WithLabelValues(string(analytics.IntervalDaily)).Add(float64(daily))

		result.Days++
		result.Records += hourly + daily

		slog.Debug("[Rollup] Day committed",
			"day", day.Format(time.DateOnly),
			"hourly_records", hourly,
			"daily_records", daily,
		)
	}

	slog.Info("[Rollup] Rollup complete",
		"window_start", windowStart,
		"days", result.Days,
		"records", result.Records,
	)
	return result, nil
}

// stageDay stages the 24 hourly buckets and the daily bucket of one UTC day.
func (e *Engine) stageDay(
	ctx context.Context,
	day time.Time,
	stations []analytics.Station,
	withUniqueListeners bool,
) (int, int, error) {
	hourly := 0
	for hour := 0; hour < analytics.HoursPerDay; hour++ {
		n, err := e.stageBucket(ctx, stations, withUniqueListeners,
			analytics.HourMoment(day, hour),
			analytics.IntervalHourly,
			func(st analytics.Station) (time.Time, time.Time) {
				return analytics.HourBucket(day, hour, st)
			},
		)
		if err != nil {
			return 0, 0, err
		}
		hourly += n
	}

	daily, err := e.stageBucket(ctx, stations, withUniqueListeners,
		day,
		analytics.IntervalDaily,
		func(st analytics.Station) (time.Time, time.Time) {
			return analytics.DayBucket(day, st)
		},
	)
	if err != nil {
		return 0, 0, err
	}
	return hourly, daily, nil
}

// stageBucket queries every station for one bucket, then stages one record per
// station plus the all-stations record. Records are staged in station order
// once every query has returned.
func (e *Engine) stageBucket(
	ctx context.Context,
	stations []analytics.Station,
	withUniqueListeners bool,
	moment time.Time,
	interval analytics.Interval,
	bucket func(analytics.Station) (time.Time, time.Time),
) (int, error) {
	tuples, err := e.queryStations(ctx, stations, withUniqueListeners, bucket)
	if err != nil {
		return 0, err
	}

	acc := analytics.NewAccumulator(withUniqueListeners)
	for i, st := range stations {
		record := analytics.Record{
			Moment:    moment,
			StationID: analytics.StationRef(st.ID),
			Interval:  interval,
			Stats:     tuples[i],
		}
		if err := e.store.Save(ctx, record); err != nil {
			return 0, &coreerr.StoreError{Op: "save", Err: err}
		}
		acc = acc.Add(tuples[i])
	}

	global := analytics.Record{
		Moment:   moment,
		Interval: interval,
		Stats:    acc.Result(),
	}
	if err := e.store.Save(ctx, global); err != nil {
		return 0, &coreerr.StoreError{Op: "save", Err: err}
	}

	return len(stations) + 1, nil
}

func (e *Engine) queryStations(
	ctx context.Context,
	stations []analytics.Station,
	withUniqueListeners bool,
	bucket func(analytics.Station) (time.Time, time.Time),
) ([]analytics.StatTuple, error) {
	tuples := make([]analytics.StatTuple, len(stations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.QueryWorkers)
	for i, st := range stations {
		g.Go(func() error {
			start, end := bucket(st)
			tuple, err := e.queryStation(gctx, st, start, end, withUniqueListeners)
			if err != nil {
				return err
			}
			tuples[i] = tuple
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tuples, nil
}

func (e *Engine) queryStation(
	ctx context.Context,
	station analytics.Station,
	start time.Time,
	end time.Time,
	withUniqueListeners bool,
) (analytics.StatTuple, error) {
	minVal, maxVal, avg, err := e.stats.RangeStats(ctx, station, start, end)
	if err != nil {
		metrics.RollupSourceErrors.WithLabelValues("stats").Inc()
		return analytics.StatTuple{}, &coreerr.SourceQueryError{
			Source: "stats", StationID: station.ID, Start: start, End: end, Err: err,
		}
	}

	tuple := analytics.StatTuple{Min: minVal, Max: maxVal, Average: avg}
	if !withUniqueListeners {
		return tuple, nil
	}

	unique, err := e.uniques.UniqueListeners(ctx, station, start, end)
	if err == nil && unique < 0 {
		err = fmt.Errorf("negative unique listener count %d", unique)
	}
	if err != nil {
		metrics.RollupSourceErrors.WithLabelValues("unique_listeners").Inc()
		return analytics.StatTuple{}, &coreerr.SourceQueryError{
			Source: "unique_listeners", StationID: station.ID, Start: start, End: end, Err: err,
		}
	}
	tuple.UniqueCount = analytics.Count(unique)
	return tuple, nil
}
