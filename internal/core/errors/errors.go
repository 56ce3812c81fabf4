package errors

import (
	"fmt"
	"time"
)

const (
	HttpInternalError      = "internal_error"
	HttpInvalidQueryError  = "invalid_query"
	HttpConfigurationError = "configuration_error"
	HttpRunInProgressError = "run_in_progress"
	HttpSourceQueryError   = "source_query_failed"
	HttpStoreError         = "store_failed"
)

// ErrorResponse is the error response body for API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// ConfigurationError is fatal: the run aborts before any mutation.
type ConfigurationError struct {
	Setting string
	Value   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %q: %s", e.Setting, e.Value, e.Message)
}

// SourceQueryError wraps a stats or unique-count query failure for one station.
type SourceQueryError struct {
	Source    string // "stats" or "unique_listeners"
	StationID int64
	Start     time.Time
	End       time.Time
	Err       error
}

func (e *SourceQueryError) Error() string {
	return fmt.Sprintf("%s query for station %d [%s, %s): %v",
		e.Source, e.StationID,
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339),
		e.Err)
}

func (e *SourceQueryError) Unwrap() error { return e.Err }

// StoreError wraps a persistence failure.
type StoreError struct {
	Op  string // save, commit, purge_analytics, purge_listeners, ...
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
