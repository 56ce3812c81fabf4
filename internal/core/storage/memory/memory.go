package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aevon-lab/listenstats/internal/core/analytics"
	"github.com/shopspring/decimal"
)

// Sample is one listening-history row: the listener count when a song started.
type Sample struct {
	StationID int64
	At        time.Time
	Listeners int64
}

// Listener is one identifier-bearing connection row. A zero End means still connected.
type Listener struct {
	StationID int64
	Hash      string
	Start     time.Time
	End       time.Time
}

// Store is an in-memory implementation of every storage interface.
// Useful for testing and development.
type Store struct {
	mu sync.RWMutex

	level     analytics.Level
	stations  []analytics.Station
	samples   []Sample
	listeners []Listener

	records map[analytics.RecordKey]analytics.Record
	staged  []analytics.Record
	commits int
}

// NewStore creates an empty store at the given analytics level.
func NewStore(level analytics.Level) *Store {
	return &Store{
		level:   level,
		records: make(map[analytics.RecordKey]analytics.Record),
	}
}

// SetLevel changes the level returned by AnalyticsLevel.
func (s *Store) SetLevel(level analytics.Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = level
}

// AddStation registers a station, keeping the list ordered by ID.
func (s *Store) AddStation(st analytics.Station) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations = append(s.stations, st)
	sort.Slice(s.stations, func(i, j int) bool { return s.stations[i].ID < s.stations[j].ID })
}

// AddSample appends a listening-history row.
func (s *Store) AddSample(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
}

// AddListener appends a listener connection row.
func (s *Store) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// AnalyticsLevel implements storage.Settings.
func (s *Store) AnalyticsLevel(_ context.Context) (analytics.Level, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.level, nil
}

// ListStations implements storage.StationRepository.
func (s *Store) ListStations(_ context.Context) ([]analytics.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]analytics.Station, len(s.stations))
	copy(out, s.stations)
	return out, nil
}

// RangeStats implements storage.StatsSource. The average is rounded to two
// places, matching the postgres adapter.
func (s *Store) RangeStats(
	_ context.Context,
	station analytics.Station,
	start time.Time,
	end time.Time,
) (decimal.NullDecimal, decimal.NullDecimal, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		lo, hi     int64
		sum, count int64
	)
	for _, sample := range s.samples {
		if sample.StationID != station.ID || sample.At.Before(start) || !sample.At.Before(end) {
			continue
		}
		if count == 0 || sample.Listeners < lo {
			lo = sample.Listeners
		}
		if count == 0 || sample.Listeners > hi {
			hi = sample.Listeners
		}
		sum += sample.Listeners
		count++
	}

	if count == 0 {
		return decimal.NullDecimal{}, decimal.NullDecimal{}, decimal.Zero, nil
	}
	avg := decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(count), 2)
	return decimal.NewNullDecimal(decimal.NewFromInt(lo)), decimal.NewNullDecimal(decimal.NewFromInt(hi)), avg, nil
}

// UniqueListeners implements storage.UniqueCountSource.
func (s *Store) UniqueListeners(_ context.Context, station analytics.Station, start, end time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, l := range s.listeners {
		if l.StationID != station.ID || !l.Start.Before(end) {
			continue
		}
		if !l.End.IsZero() && l.End.Before(start) {
			continue
		}
		seen[l.Hash] = struct{}{}
	}
	return int64(len(seen)), nil
}

// PurgeAll implements storage.ListenerStore.
func (s *Store) PurgeAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = nil
	return nil
}

// Save stages a record.
func (s *Store) Save(_ context.Context, record analytics.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = append(s.staged, record)
	return nil
}

// Commit writes staged records. A record whose key already exists fails the
// whole commit, like the unique index in postgres.
func (s *Store) Commit(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.staged
	s.staged = nil

	batch := make(map[analytics.RecordKey]analytics.Record, len(staged))
	for _, r := range staged {
		key := r.Key()
		if _, exists := s.records[key]; exists {
			return fmt.Errorf("duplicate analytics record %v", key)
		}
		if _, exists := batch[key]; exists {
			return fmt.Errorf("duplicate analytics record %v", key)
		}
		batch[key] = r
	}
	for key, r := range batch {
		s.records[key] = r
	}
	s.commits++
	return nil
}

// Clear discards staged records.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = nil
}

// PurgeAllAnalytics deletes every record.
func (s *Store) PurgeAllAnalytics(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[analytics.RecordKey]analytics.Record)
	return nil
}

// PurgeAnalyticsFrom deletes every record with moment >= from.
func (s *Store) PurgeAnalyticsFrom(_ context.Context, from time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, r := range s.records {
		if !r.Moment.Before(from) {
			delete(s.records, key)
		}
	}
	return nil
}

// QueryRange implements storage.AnalyticsReader.
func (s *Store) QueryRange(
	_ context.Context,
	stationID *int64,
	interval analytics.Interval,
	start time.Time,
	end time.Time,
) ([]analytics.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []analytics.Record
	for _, r := range s.records {
		if r.Interval != interval || r.Moment.Before(start) || !r.Moment.Before(end) {
			continue
		}
		if (stationID == nil) != r.IsGlobal() {
			continue
		}
		if stationID != nil && *r.StationID != *stationID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Moment.Before(out[j].Moment) })
	return out, nil
}

// Records returns every committed record in a stable order:
// moment, interval, global row first, then station ID.
func (s *Store) Records() []analytics.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]analytics.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	SortRecords(out)
	return out
}

// Staged returns the number of uncommitted records.
func (s *Store) Staged() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.staged)
}

// Commits returns how many commits succeeded.
func (s *Store) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

// ListenerCount returns the number of stored listener rows.
func (s *Store) ListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

// SortRecords orders records by moment, interval, then global row before stations by ID.
func SortRecords(records []analytics.Record) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Moment.Equal(b.Moment) {
			return a.Moment.Before(b.Moment)
		}
		if a.Interval != b.Interval {
			return a.Interval < b.Interval
		}
		if a.IsGlobal() != b.IsGlobal() {
			return a.IsGlobal()
		}
		if a.IsGlobal() {
			return false
		}
		return *a.StationID < *b.StationID
	})
}
