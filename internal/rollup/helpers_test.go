package rollup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aevon-lab/listenstats/internal/core/analytics"
	"github.com/aevon-lab/listenstats/internal/core/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var midnight = time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)

// newFixture returns a store with two stations (UTC and UTC+5) and a few
// samples and listeners on 2024-01-02 around 03:00 UTC.
func newFixture(t *testing.T, level analytics.Level) *memory.Store {
	t.Helper()

	store := memory.NewStore(level)
	store.AddStation(analytics.Station{ID: 1, Name: "Alpha", Timezone: "UTC"})
	store.AddStation(analytics.Station{ID: 2, Name: "Bravo", Timezone: "Asia/Karachi"})

	store.AddSample(memory.Sample{StationID: 1, At: time.Date(2024, 1, 2, 3, 10, 0, 0, time.UTC), Listeners: 4})
	store.AddSample(memory.Sample{StationID: 1, At: time.Date(2024, 1, 2, 3, 40, 0, 0, time.UTC), Listeners: 8})
	store.AddSample(memory.Sample{StationID: 2, At: time.Date(2024, 1, 2, 3, 30, 0, 0, time.UTC), Listeners: 10})

	store.AddListener(memory.Listener{
		StationID: 1, Hash: "a",
		Start: time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 2, 3, 30, 0, 0, time.UTC),
	})
	store.AddListener(memory.Listener{
		StationID: 1, Hash: "b",
		Start: time.Date(2024, 1, 2, 3, 15, 0, 0, time.UTC),
	})
	return store
}

func newTestTask(store *memory.Store, opts EngineOptions) *Task {
	return NewTask(TaskDeps{
		Settings:  store,
		Stations:  store,
		Listeners: store,
		Store:     store,
		Stats:     store,
		Uniques:   store,
	}, opts)
}

// findRecord returns the committed record for (moment, station, interval).
// A zero stationID selects the global row.
func findRecord(t *testing.T, store *memory.Store, moment time.Time, stationID int64, interval analytics.Interval) analytics.Record {
	t.Helper()
	for _, r := range store.Records() {
		if !r.Moment.Equal(moment) || r.Interval != interval {
			continue
		}
		if stationID == 0 && r.IsGlobal() {
			return r
		}
		if stationID != 0 && !r.IsGlobal() && *r.StationID == stationID {
			return r
		}
	}
	require.Failf(t, "record not found", "moment=%s station=%d interval=%s", moment, stationID, interval)
	return analytics.Record{}
}

// recordStrings renders records in a stable, comparable form.
func recordStrings(records []analytics.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		station := "all"
		if r.StationID != nil {
			station = fmt.Sprint(*r.StationID)
		}
		unique := "null"
		if r.Stats.UniqueCount != nil {
			unique = fmt.Sprint(*r.Stats.UniqueCount)
		}
		out = append(out, fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s",
			r.Moment.UTC().Format(time.RFC3339), station, r.Interval,
			nullString(r.Stats.Min), nullString(r.Stats.Max),
			r.Stats.Average.StringFixed(2), unique))
	}
	return out
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return "null"
	}
	return d.Decimal.String()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// failingStats fails every query whose range starts at or after failFrom.
type failingStats struct {
	inner    *memory.Store
	failFrom time.Time
}

func (f failingStats) RangeStats(
	ctx context.Context,
	station analytics.Station,
	start time.Time,
	end time.Time,
) (decimal.NullDecimal, decimal.NullDecimal, decimal.Decimal, error) {
	if !start.Before(f.failFrom) {
		return decimal.NullDecimal{}, decimal.NullDecimal{}, decimal.Zero, errors.New("connection reset")
	}
	return f.inner.RangeStats(ctx, station, start, end)
}

// failingCommitStore fails the commit numbered failAt (1-based).
type failingCommitStore struct {
	*memory.Store
	mu      sync.Mutex
	calls   int
	failAt  int
	cleared int
}

func (f *failingCommitStore) Commit(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if n == f.failAt {
		return errors.New("disk full")
	}
	return f.Store.Commit(ctx)
}

func (f *failingCommitStore) Clear() {
	f.mu.Lock()
	f.cleared++
	f.mu.Unlock()
	f.Store.Clear()
}

// blockingStats blocks the first query until release is closed.
type blockingStats struct {
	inner   *memory.Store
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStats) RangeStats(
	ctx context.Context,
	station analytics.Station,
	start time.Time,
	end time.Time,
) (decimal.NullDecimal, decimal.NullDecimal, decimal.Decimal, error) {
	b.once.Do(func() {
		close(b.started)
		<-b.release
	})
	return b.inner.RangeStats(ctx, station, start, end)
}

// cancelOnCommitStore cancels a context after each successful commit.
type cancelOnCommitStore struct {
	*memory.Store
	cancel context.CancelFunc
}

func (c *cancelOnCommitStore) Commit(ctx context.Context) error {
	if err := c.Store.Commit(ctx); err != nil {
		return err
	}
	c.cancel()
	return nil
}
