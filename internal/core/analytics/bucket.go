package analytics

import (
	"fmt"
	"time"
	_ "time/tzdata" // IANA zone data for hosts without /usr/share/zoneinfo

	coreerr "github.com/aevon-lab/listenstats/internal/core/errors"
)

// HoursPerDay is the number of hourly buckets walked per UTC day.
const HoursPerDay = 24

// StartOfDay truncates t to 00:00:00 UTC.
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// WindowStart returns the first UTC midnight of a trailing window of days ending at now.
// Example: WindowStart(2024-01-06T13:20Z, 5) → 2024-01-01T00:00Z
func WindowStart(now time.Time, days int) time.Time {
	return StartOfDay(now.UTC().AddDate(0, 0, -days))
}

// HourMoment is the canonical UTC timestamp stored for an hourly record.
func HourMoment(dayStartUTC time.Time, hour int) time.Time {
	return dayStartUTC.UTC().Add(time.Duration(hour) * time.Hour)
}

// HourBucket returns the station-local range queried for one hourly record.
// The instant dayStartUTC+hour is expressed in the station's location, so the
// range carries the station's wall clock while the stored record keeps the UTC hour.
func HourBucket(dayStartUTC time.Time, hour int, station Station) (time.Time, time.Time) {
	start := HourMoment(dayStartUTC, hour).In(stationLocation(station))
	return start, start.Add(time.Hour)
}

// DayBucket returns the station-local range queried for one daily record.
// The end is one calendar day later in the station's location, so DST days are
// 23 or 25 hours long.
func DayBucket(dayStartUTC time.Time, station Station) (time.Time, time.Time) {
	start := dayStartUTC.UTC().In(stationLocation(station))
	return start, start.AddDate(0, 0, 1)
}

// ResolveLocation loads the IANA zone for a station timezone.
// An empty timezone means UTC.
func ResolveLocation(station Station) (Station, error) {
	if station.Timezone == "" {
		station.Location = time.UTC
		return station, nil
	}
	loc, err := time.LoadLocation(station.Timezone)
	if err != nil {
		return station, &coreerr.ConfigurationError{
			Setting: fmt.Sprintf("station %d timezone", station.ID),
			Value:   station.Timezone,
			Message: err.Error(),
		}
	}
	station.Location = loc
	return station, nil
}

func stationLocation(station Station) *time.Location {
	if station.Location == nil {
		return time.UTC
	}
	return station.Location
}
