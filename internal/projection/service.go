package projection

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aevon-lab/listenstats/internal/core/analytics"
	"github.com/aevon-lab/listenstats/internal/core/storage"
)

const (
	stationAll = "all"

	maxHourlyRange = 31 * 24 * time.Hour
	maxDailyRange  = 366 * 24 * time.Hour
)

// ErrInvalidQuery marks request validation errors that should return HTTP 400.
var ErrInvalidQuery = errors.New("invalid analytics query")

// Service serves stored analytics records. It never recomputes buckets.
type Service struct {
	reader storage.AnalyticsReader
}

// NewService creates a new projection service.
func NewService(reader storage.AnalyticsReader) *Service {
	return &Service{reader: reader}
}

// QueryAnalytics returns stored records for one station or the global rows over [start, end).
func (s *Service) QueryAnalytics(ctx context.Context, req AnalyticsQueryRequest) (*AnalyticsQueryResponse, error) {
	req, stationID, err := normalizeAndValidate(req)
	if err != nil {
		return nil, err
	}

	records, err := s.reader.QueryRange(ctx, stationID, analytics.Interval(req.Interval), req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("query analytics: %w", err)
	}

	values := make([]AnalyticsValue, 0, len(records))
	for _, rec := range records {
		values = append(values, AnalyticsValue{
			Moment:          rec.Moment.UTC(),
			Min:             rec.Stats.Min,
			Max:             rec.Stats.Max,
			Average:         rec.Stats.Average,
			UniqueListeners: rec.Stats.UniqueCount,
		})
	}

	return &AnalyticsQueryResponse{
		Station:  req.Station,
		Interval: req.Interval,
		Start:    req.Start,
		End:      req.End,
		Values:   values,
	}, nil
}

func normalizeAndValidate(req AnalyticsQueryRequest) (AnalyticsQueryRequest, *int64, error) {
	req.Station = strings.TrimSpace(req.Station)
	if req.Station == "" {
		req.Station = stationAll
	}
	if req.Interval == "" {
		req.Interval = string(analytics.IntervalDaily)
	}
	req.Start = req.Start.UTC()
	req.End = req.End.UTC()

	if !req.End.After(req.Start) {
		return req, nil, invalidQueryf("end time must be after start time")
	}

	switch analytics.Interval(req.Interval) {
	case analytics.IntervalHourly:
		if req.End.Sub(req.Start) > maxHourlyRange {
			return req, nil, invalidQueryf("hourly range must not exceed %s", maxHourlyRange)
		}
	case analytics.IntervalDaily:
		if req.End.Sub(req.Start) > maxDailyRange {
			return req, nil, invalidQueryf("daily range must not exceed %s", maxDailyRange)
		}
	default:
		return req, nil, invalidQueryf("invalid interval: %s (must be hourly or daily)", req.Interval)
	}

	if req.Station == stationAll {
		return req, nil, nil
	}
	id, err := strconv.ParseInt(req.Station, 10, 64)
	if err != nil || id <= 0 {
		return req, nil, invalidQueryf("invalid station: %s (must be a station ID or %q)", req.Station, stationAll)
	}
	return req, &id, nil
}

func invalidQueryf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}
