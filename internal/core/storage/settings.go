package storage

import (
	"context"

	"github.com/aevon-lab/listenstats/internal/core/analytics"
)

// StaticSettings serves an analytics level fixed in the config file.
// Used when analytics.level_source is "config".
type StaticSettings struct {
	Level string
}

// AnalyticsLevel parses the configured value. Unknown values are a *ConfigurationError.
func (s StaticSettings) AnalyticsLevel(_ context.Context) (analytics.Level, error) {
	return analytics.ParseLevel(s.Level)
}
