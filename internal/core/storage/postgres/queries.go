package postgres

// SQL queries for listening-history sources, stations, settings and listeners.

const (
	// queryRangeStats summarizes song_history listener counts for one station.
	// MIN/MAX are NULL for an empty range; the average defaults to 0.
	queryRangeStats = `
		SELECT
			MIN(listeners_start),
			MAX(listeners_start),
			COALESCE(ROUND(AVG(listeners_start), 2), 0)
		FROM song_history
		WHERE station_id = $1
		  AND timestamp_start >= $2
		  AND timestamp_start < $3
	`

	// queryUniqueListeners counts distinct listeners whose connection overlaps
	// the range. A NULL timestamp_end means the listener is still connected.
	queryUniqueListeners = `
		SELECT COUNT(DISTINCT listener_hash)
		FROM listeners
		WHERE station_id = $1
		  AND timestamp_start < $3
		  AND (timestamp_end IS NULL OR timestamp_end >= $2)
	`

	queryListStations = `
		SELECT id, name, timezone
		FROM stations
		ORDER BY id ASC
	`

	queryReadSetting = `SELECT value FROM settings WHERE name = $1`

	queryPurgeListeners = `DELETE FROM listeners`
)
