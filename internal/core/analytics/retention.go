package analytics

import (
	"strings"

	coreerr "github.com/aevon-lab/listenstats/internal/core/errors"
)

// Level is the configured analytics (privacy) level.
type Level string

const (
	LevelNone          Level = "none"
	LevelNoIdentifiers Level = "no_ip"
	LevelFull          Level = "all"
)

// ParseLevel maps a stored setting value onto a Level.
// Unknown values are a *ConfigurationError.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return LevelNone, nil
	case "no_ip", "no_identifiers":
		return LevelNoIdentifiers, nil
	case "all", "full":
		return LevelFull, nil
	}
	return "", &coreerr.ConfigurationError{
		Setting: "analytics",
		Value:   s,
		Message: "unrecognized analytics level (must be none, no_ip or all)",
	}
}

// Action is what a retention level requires a run to do.
type Action struct {
	PurgeListeners      bool
	PurgeAnalytics      bool
	RunRollup           bool
	WithUniqueListeners bool
}

// Name is a short label for logs and metrics.
func (a Action) Name() string {
	switch {
	case a.PurgeAnalytics:
		return "purge_all"
	case a.RunRollup && !a.WithUniqueListeners:
		return "purge_identifiers_and_rollup"
	case a.RunRollup:
		return "rollup"
	}
	return "noop"
}

// Decide returns the action for a level.
func Decide(level Level) (Action, error) {
	switch level {
	case LevelNone:
		return Action{PurgeListeners: true, PurgeAnalytics: true}, nil
	case LevelNoIdentifiers:
		return Action{PurgeListeners: true, RunRollup: true, WithUniqueListeners: false}, nil
	case LevelFull:
		return Action{RunRollup: true, WithUniqueListeners: true}, nil
	}
	return Action{}, &coreerr.ConfigurationError{
		Setting: "analytics",
		Value:   string(level),
		Message: "unrecognized analytics level",
	}
}
