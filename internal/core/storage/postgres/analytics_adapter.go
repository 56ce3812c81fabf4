package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aevon-lab/listenstats/internal/core/analytics"
)

const (
	queryInsertAnalytics = `
		INSERT INTO analytics (
			moment, station_id, type, number_min, number_max, number_avg, number_unique
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	queryPurgeAllAnalytics = `DELETE FROM analytics`

	queryPurgeAnalyticsFrom = `DELETE FROM analytics WHERE moment >= $1`

	queryRangeStationAnalytics = `
		SELECT moment, station_id, type, number_min, number_max, number_avg, number_unique
		FROM analytics
		WHERE station_id = $1
		  AND type = $2
		  AND moment >= $3
		  AND moment < $4
		ORDER BY moment ASC
	`

	queryRangeGlobalAnalytics = `
		SELECT moment, station_id, type, number_min, number_max, number_avg, number_unique
		FROM analytics
		WHERE station_id IS NULL
		  AND type = $1
		  AND moment >= $2
		  AND moment < $3
		ORDER BY moment ASC
	`
)

// AnalyticsAdapter implements storage.AnalyticsStore and storage.AnalyticsReader
// using PostgreSQL. Saved records are staged in memory; Commit inserts the
// whole working set in one transaction, so a failed day leaves no partial rows.
type AnalyticsAdapter struct {
	db *sql.DB

	mu     sync.Mutex
	staged []analytics.Record
}

// NewAnalyticsAdapter creates a new AnalyticsAdapter sharing the given connection.
func NewAnalyticsAdapter(db *sql.DB) *AnalyticsAdapter {
	return &AnalyticsAdapter{db: db}
}

// Save stages a record for the next Commit.
func (a *AnalyticsAdapter) Save(_ context.Context, record analytics.Record) error {
	if record.Interval != analytics.IntervalHourly && record.Interval != analytics.IntervalDaily {
		return fmt.Errorf("analytics save: invalid interval %q", record.Interval)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.staged = append(a.staged, record)
	return nil
}

// Clear discards staged records.
func (a *AnalyticsAdapter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.staged = nil
}

// Commit inserts every staged record in one transaction and clears the working set.
func (a *AnalyticsAdapter) Commit(ctx context.Context) error {
	a.mu.Lock()
	staged := a.staged
	a.staged = nil
	a.mu.Unlock()

	if len(staged) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("analytics commit: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insertStmt, err := tx.PrepareContext(ctx, queryInsertAnalytics)
	if err != nil {
		return fmt.Errorf("analytics commit: prepare insert: %w", err)
	}
	defer insertStmt.Close()

	for _, rec := range staged {
		if _, err := insertStmt.ExecContext(ctx, recordArgs(rec)...); err != nil {
			return fmt.Errorf("analytics commit: insert %v: %w", rec.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("analytics commit: commit: %w", err)
	}

	slog.Debug("[AnalyticsAdapter] Committed", "records", len(staged))
	return nil
}

// PurgeAllAnalytics deletes every analytics row.
func (a *AnalyticsAdapter) PurgeAllAnalytics(ctx context.Context) error {
	result, err := a.db.ExecContext(ctx, queryPurgeAllAnalytics)
	if err != nil {
		return fmt.Errorf("purge analytics: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil {
		slog.Info("[AnalyticsAdapter] Purged all analytics", "rows", n)
	}
	return nil
}

// PurgeAnalyticsFrom deletes hourly and daily rows (station and global) with moment >= from.
func (a *AnalyticsAdapter) PurgeAnalyticsFrom(ctx context.Context, from time.Time) error {
	result, err := a.db.ExecContext(ctx, queryPurgeAnalyticsFrom, from.UTC())
	if err != nil {
		return fmt.Errorf("purge analytics from %s: %w", from.UTC().Format(time.RFC3339), err)
	}
	if n, err := result.RowsAffected(); err == nil {
		slog.Info("[AnalyticsAdapter] Cleared analytics window", "from", from.UTC(), "rows", n)
	}
	return nil
}

// QueryRange fetches records for one station (nil = global rows) and interval
// with start <= moment < end, ordered by moment ASC.
func (a *AnalyticsAdapter) QueryRange(
	ctx context.Context,
	stationID *int64,
	interval analytics.Interval,
	start time.Time,
	end time.Time,
) ([]analytics.Record, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if stationID == nil {
		rows, err = a.db.QueryContext(ctx, queryRangeGlobalAnalytics, string(interval), start.UTC(), end.UTC())
	} else {
		rows, err = a.db.QueryContext(ctx, queryRangeStationAnalytics, *stationID, string(interval), start.UTC(), end.UTC())
	}
	if err != nil {
		return nil, fmt.Errorf("query analytics: %w", err)
	}
	defer rows.Close()

	var results []analytics.Record
	for rows.Next() {
		rec, err := scanRecordRow(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return results, nil
}
