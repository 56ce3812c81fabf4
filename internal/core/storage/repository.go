package storage

import (
	"context"
	"time"

	"github.com/aevon-lab/listenstats/internal/core/analytics"
	"github.com/shopspring/decimal"
)

// StatsSource summarizes listening history for one station over [start, end).
// start and end carry the station's location; implementations compare instants.
type StatsSource interface {
	// RangeStats returns min/max listeners (invalid when there were no samples)
	// and the average, which is zero for an empty range.
	RangeStats(
		ctx context.Context,
		station analytics.Station,
		start time.Time,
		end time.Time,
	) (minVal, maxVal decimal.NullDecimal, avg decimal.Decimal, err error)
}

// UniqueCountSource counts distinct listeners connected during [start, end).
type UniqueCountSource interface {
	UniqueListeners(ctx context.Context, station analytics.Station, start, end time.Time) (int64, error)
}

// Settings exposes the configured analytics level.
type Settings interface {
	AnalyticsLevel(ctx context.Context) (analytics.Level, error)
}

// StationRepository lists the stations known at run start.
type StationRepository interface {
	// ListStations returns stations ordered by ID. Location is not resolved.
	ListStations(ctx context.Context) ([]analytics.Station, error)
}

// AnalyticsStore persists analytics records.
//
// Save stages a record in the working set; Commit writes every staged record
// in one transaction and clears the working set whether or not it succeeds.
// Clear discards staged records without writing them.
type AnalyticsStore interface {
	Save(ctx context.Context, record analytics.Record) error
	Commit(ctx context.Context) error
	Clear()

	// PurgeAllAnalytics deletes every analytics record.
	PurgeAllAnalytics(ctx context.Context) error

	// PurgeAnalyticsFrom deletes every record (hourly, daily, station and global)
	// with moment >= from.
	PurgeAnalyticsFrom(ctx context.Context, from time.Time) error
}

// AnalyticsReader serves stored records to the query API.
type AnalyticsReader interface {
	// QueryRange returns records for one station (nil = global rows) and interval
	// with start <= moment < end, ordered by moment ASC.
	QueryRange(
		ctx context.Context,
		stationID *int64,
		interval analytics.Interval,
		start time.Time,
		end time.Time,
	) ([]analytics.Record, error)
}

// ListenerStore holds per-listener identifier-bearing rows.
type ListenerStore interface {
	PurgeAll(ctx context.Context) error
}
