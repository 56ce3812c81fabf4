package postgres

import (
	"database/sql"
	"fmt"

	"github.com/aevon-lab/listenstats/internal/core/analytics"
	"github.com/shopspring/decimal"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecordRow scans an analytics row into a Record.
// NULL station_id marks the global row; NULL number_unique means counting was disabled.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanRecordRow(row scanner) (analytics.Record, error) {
	var (
		rec       analytics.Record
		stationID sql.NullInt64
		interval  string
		minVal    decimal.NullDecimal
		maxVal    decimal.NullDecimal
		avg       decimal.Decimal
		unique    sql.NullInt64
	)

	if err := row.Scan(
		&rec.Moment,
		&stationID,
		&interval,
		&minVal,
		&maxVal,
		&avg,
		&unique,
	); err != nil {
		return analytics.Record{}, fmt.Errorf("failed to scan analytics row: %w", err)
	}

	rec.Moment = rec.Moment.UTC()
	if stationID.Valid {
		rec.StationID = analytics.StationRef(stationID.Int64)
	}
	rec.Interval = analytics.Interval(interval)
	rec.Stats = analytics.StatTuple{Min: minVal, Max: maxVal, Average: avg}
	if unique.Valid {
		rec.Stats.UniqueCount = analytics.Count(unique.Int64)
	}
	return rec, nil
}

// recordArgs returns the insert arguments for a record.
// Nil pointers become SQL NULL.
func recordArgs(rec analytics.Record) []interface{} {
	var stationID sql.NullInt64
	if rec.StationID != nil {
		stationID = sql.NullInt64{Int64: *rec.StationID, Valid: true}
	}
	var unique sql.NullInt64
	if rec.Stats.UniqueCount != nil {
		unique = sql.NullInt64{Int64: *rec.Stats.UniqueCount, Valid: true}
	}
	return []interface{}{
		rec.Moment.UTC(),
		stationID,
		string(rec.Interval),
		rec.Stats.Min,
		rec.Stats.Max,
		rec.Stats.Average,
		unique,
	}
}
