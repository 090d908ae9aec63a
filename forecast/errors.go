/*
errors.go - Error types for the forecasting engine

PURPOSE:
  Sentinels for errors.Is plus structured errors carrying context.

  Insufficient history is never surfaced as an error by the public
  operations: they return the empty "no prediction" value instead.
  ErrInsufficientHistory only appears in logs and internal helpers.

SEE ALSO:
  - api/handlers.go: Maps these to HTTP status codes
*/
package forecast

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientHistory means a computation had fewer samples than its minimum.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrForecastNotFound is returned when no forecast is saved for a week.
	ErrForecastNotFound = errors.New("forecast not found")

	// ErrInvalidWeek is returned for unparsable or missing week dates.
	ErrInvalidWeek = errors.New("invalid week start")

	// ErrInvalidSetting is returned when a tunable cannot be parsed or is out of range.
	ErrInvalidSetting = errors.New("invalid setting")

	// ErrMalformedDays is returned when a stored per-day list cannot be decoded.
	ErrMalformedDays = errors.New("malformed forecast day list")

	// ErrMalformedState is returned when a learned-state blob cannot be decoded.
	ErrMalformedState = errors.New("malformed learned state")

	// ErrInvalidRecord is returned when an ingested record breaks the record model.
	ErrInvalidRecord = errors.New("invalid record")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// SettingError describes a tunable that was rejected.
type SettingError struct {
	Key   string
	Value string
	Cause error
}

func (e *SettingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("setting %s=%q: %v", e.Key, e.Value, e.Cause)
	}
	return fmt.Sprintf("setting %s=%q out of range", e.Key, e.Value)
}

func (e *SettingError) Unwrap() error {
	return ErrInvalidSetting
}

// DecodeError describes a stored blob that failed to decode. Kind is the
// sentinel it matches (ErrMalformedDays or ErrMalformedState).
type DecodeError struct {
	What  string
	Kind  error
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.What, e.Cause)
}

func (e *DecodeError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidWeek) ||
		errors.Is(err, ErrInvalidSetting) ||
		errors.Is(err, ErrInvalidRecord)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrForecastNotFound)
}
