package projection

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnalyticsQueryRequest represents the query parameters for fetching stored analytics.
type AnalyticsQueryRequest struct {
	Station  string    `form:"station"`  // station ID, or "all" / empty for the global rows
	Interval string    `form:"interval"` // hourly | daily; default daily
	Start    time.Time `form:"start" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	End      time.Time `form:"end" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}

// AnalyticsValue is one stored bucket in the response.
// Min/Max serialize as null when the station had no samples.
type AnalyticsValue struct {
	Moment          time.Time           `json:"moment"`
	Min             decimal.NullDecimal `json:"min"`
	Max             decimal.NullDecimal `json:"max"`
	Average         decimal.Decimal     `json:"average"`
	UniqueListeners *int64              `json:"unique_listeners"`
}

// AnalyticsQueryResponse represents the response for an analytics query.
type AnalyticsQueryResponse struct {
	Station  string           `json:"station"`
	Interval string           `json:"interval"`
	Start    time.Time        `json:"start"`
	End      time.Time        `json:"end"`
	Values   []AnalyticsValue `json:"values"`
}
