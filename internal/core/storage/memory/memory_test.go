package memory

import (
	"context"
	"testing"
	"time"

	"github.com/aevon-lab/listenstats/internal/core/analytics"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RangeStats(t *testing.T) {
	store := NewStore(analytics.LevelFull)
	base := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	store.AddSample(Sample{StationID: 1, At: base, Listeners: 3})
	store.AddSample(Sample{StationID: 1, At: base.Add(20 * time.Minute), Listeners: 4})
	store.AddSample(Sample{StationID: 1, At: base.Add(40 * time.Minute), Listeners: 4})
	store.AddSample(Sample{StationID: 1, At: base.Add(time.Hour), Listeners: 100}) // end is exclusive
	store.AddSample(Sample{StationID: 2, At: base, Listeners: 50})

	minVal, maxVal, avg, err := store.RangeStats(context.Background(), analytics.Station{ID: 1}, base, base.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "3", minVal.Decimal.String())
	assert.Equal(t, "4", maxVal.Decimal.String())
	assert.Equal(t, "3.67", avg.String())
}

func TestStore_RangeStatsEmpty(t *testing.T) {
	store := NewStore(analytics.LevelFull)
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	minVal, maxVal, avg, err := store.RangeStats(context.Background(), analytics.Station{ID: 1}, base, base.Add(time.Hour))
	require.NoError(t, err)

	assert.False(t, minVal.Valid)
	assert.False(t, maxVal.Valid)
	assert.True(t, avg.IsZero())
}

func TestStore_UniqueListeners(t *testing.T) {
	store := NewStore(analytics.LevelFull)
	start := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	store.AddListener(Listener{StationID: 1, Hash: "a", Start: start.Add(-2 * time.Hour), End: start.Add(-time.Hour)}) // left before
	store.AddListener(Listener{StationID: 1, Hash: "b", Start: start.Add(-time.Hour), End: start})                    // disconnected at start
	store.AddListener(Listener{StationID: 1, Hash: "c", Start: start.Add(10 * time.Minute)})                          // still connected
	store.AddListener(Listener{StationID: 1, Hash: "c", Start: start.Add(30 * time.Minute), End: end})                // same listener again
	store.AddListener(Listener{StationID: 1, Hash: "d", Start: end})                                                  // joined at end
	store.AddListener(Listener{StationID: 2, Hash: "e", Start: start})

	count, err := store.UniqueListeners(context.Background(), analytics.Station{ID: 1}, start, end)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestStore_CommitRejectsDuplicates(t *testing.T) {
	store := NewStore(analytics.LevelFull)
	ctx := context.Background()
	rec := analytics.Record{
		Moment:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Interval: analytics.IntervalDaily,
		Stats:    analytics.StatTuple{Average: decimal.Zero},
	}

	require.NoError(t, store.Save(ctx, rec))
	require.NoError(t, store.Commit(ctx))
	assert.Equal(t, 1, store.Commits())

	require.NoError(t, store.Save(ctx, rec))
	require.Error(t, store.Commit(ctx))
	assert.Zero(t, store.Staged())
	assert.Len(t, store.Records(), 1)
	assert.Equal(t, 1, store.Commits())
}

func TestStore_PurgeAnalyticsFrom(t *testing.T) {
	store := NewStore(analytics.LevelFull)
	ctx := context.Background()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(ctx, analytics.Record{Moment: day.AddDate(0, 0, i), Interval: analytics.IntervalDaily}))
		require.NoError(t, store.Save(ctx, analytics.Record{
			Moment: day.AddDate(0, 0, i), StationID: analytics.StationRef(1), Interval: analytics.IntervalDaily,
		}))
	}
	require.NoError(t, store.Commit(ctx))

	require.NoError(t, store.PurgeAnalyticsFrom(ctx, day.AddDate(0, 0, 1)))

	records := store.Records()
	require.Len(t, records, 2)
	assert.True(t, records[0].IsGlobal())
	assert.Equal(t, day, records[0].Moment)
	assert.Equal(t, int64(1), *records[1].StationID)
}

func TestStore_QueryRange(t *testing.T) {
	store := NewStore(analytics.LevelFull)
	ctx := context.Background()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	for hour := 2; hour >= 0; hour-- {
		moment := analytics.HourMoment(day, hour)
		require.NoError(t, store.Save(ctx, analytics.Record{Moment: moment, Interval: analytics.IntervalHourly}))
		require.NoError(t, store.Save(ctx, analytics.Record{
			Moment: moment, StationID: analytics.StationRef(7), Interval: analytics.IntervalHourly,
		}))
	}
	require.NoError(t, store.Save(ctx, analytics.Record{Moment: day, Interval: analytics.IntervalDaily}))
	require.NoError(t, store.Commit(ctx))

	global, err := store.QueryRange(ctx, nil, analytics.IntervalHourly, day, day.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, global, 2)
	assert.True(t, global[0].Moment.Before(global[1].Moment))
	assert.True(t, global[0].IsGlobal())

	station, err := store.QueryRange(ctx, analytics.StationRef(7), analytics.IntervalHourly, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, station, 3)

	other, err := store.QueryRange(ctx, analytics.StationRef(8), analytics.IntervalHourly, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_ListStationsSorted(t *testing.T) {
	store := NewStore(analytics.LevelFull)
	store.AddStation(analytics.Station{ID: 3})
	store.AddStation(analytics.Station{ID: 1})
	store.AddStation(analytics.Station{ID: 2})

	stations, err := store.ListStations(context.Background())
	require.NoError(t, err)
	require.Len(t, stations, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{stations[0].ID, stations[1].ID, stations[2].ID})
}
