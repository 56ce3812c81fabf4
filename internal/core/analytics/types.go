package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Interval is the width of an analytics bucket.
type Interval string

const (
	IntervalHourly Interval = "hourly"
	IntervalDaily  Interval = "daily"
)

// StatTuple is the reduced statistic set stored for one bucket.
//
// Min and Max are invalid when the source had no samples. Average is always
// present and is zero for an empty range. UniqueCount is nil when
// identifier-based counting is disabled for the run.
type StatTuple struct {
	Min         decimal.NullDecimal
	Max         decimal.NullDecimal
	Average     decimal.Decimal
	UniqueCount *int64
}

// Record is one persisted analytics row.
// A nil StationID marks the all-stations (global) row.
type Record struct {
	Moment    time.Time // UTC hour or UTC midnight
	StationID *int64
	Interval  Interval
	Stats     StatTuple
}

// IsGlobal reports whether the record aggregates every station.
func (r Record) IsGlobal() bool {
	return r.StationID == nil
}

// Key returns the identity of the record.
func (r Record) Key() RecordKey {
	k := RecordKey{Moment: r.Moment.UTC(), Interval: r.Interval}
	if r.StationID != nil {
		k.StationID = *r.StationID
		k.HasStation = true
	}
	return k
}

// RecordKey uniquely identifies a Record: (moment, station, interval).
type RecordKey struct {
	Moment     time.Time
	StationID  int64
	HasStation bool
	Interval   Interval
}

// Station is the unit being measured. Location is resolved from Timezone
// once per run and used for local bucket alignment.
type Station struct {
	ID       int64
	Name     string
	Timezone string
	Location *time.Location
}

// StationRef returns a pointer to a copy of the station ID, for use as Record.StationID.
func StationRef(id int64) *int64 {
	return &id
}

// Count returns a pointer to n, for use as StatTuple.UniqueCount.
func Count(n int64) *int64 {
	return &n
}
