/*
store.go - Contracts the engine consumes

PURPOSE:
  The engine never owns storage or network access. Everything it reads or
  writes goes through these narrow interfaces, implemented by:

    forecast/store.Memory    In-memory, for tests and demos
    store/sqlite.Store       SQLite persistence
    providers.*              Weather and holiday HTTP providers
    analytics.Comfort        Comfort-limit aggregation

CONVENTIONS:
  - Get* methods return (nil, nil) when the row does not exist.
  - Date ranges are inclusive; a zero time means unbounded on that side.
  - Providers are best-effort. Callers treat an error as "no data".
*/
package forecast

import (
	"context"
	"time"
)

// HistoricalRecords is a read-only view of recorded days and their shifts.
type HistoricalRecords interface {
	DailyRecords(ctx context.Context, from, to time.Time) ([]DailyRecord, error)
}

// SettingsStore is the generic key-value store for tunables and learned state.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (value string, ok bool, err error)
	SetSetting(ctx context.Context, key, value string) error
}

// PatternStore persists mined patterns. SavePattern upserts on (type, key).
type PatternStore interface {
	GetPattern(ctx context.Context, patternType PatternType, key string) (*DetectedPattern, error)
	SavePattern(ctx context.Context, patternType PatternType, key string, payload []byte, confidence float64) error
	ListPatterns(ctx context.Context) ([]DetectedPattern, error)
}

// ForecastRecord is the persisted form of a WeeklyForecast. JSON columns
// are kept opaque here and decoded by the codec.
type ForecastRecord struct {
	ID                string
	WeekStart         time.Time
	PredictedRevenue  *float64
	DaysJSON          string
	ActualRevenue     *float64
	CompletedAt       *time.Time
	AccuracyJSON      string
	StaffAccuracyJSON string
	CreatedAt         time.Time
}

// ForecastStore persists weekly forecasts, one row per week start.
type ForecastStore interface {
	GetForecast(ctx context.Context, weekStart time.Time) (*ForecastRecord, error)
	SaveForecast(ctx context.Context, rec ForecastRecord) error
	ListEvaluatedForecasts(ctx context.Context, limit int) ([]ForecastRecord, error)
}

// WeatherProvider returns daily weather for a date range. An invalid
// location yields no data.
type WeatherProvider interface {
	DailyWeather(ctx context.Context, from, to time.Time, loc Location) ([]WeatherDay, error)
}

// HolidayProvider returns public holidays. An empty country yields no data.
type HolidayProvider interface {
	Holidays(ctx context.Context, from, to time.Time, countryCode string) ([]Holiday, error)
}

// EventsProvider returns manually entered demand events.
type EventsProvider interface {
	Events(ctx context.Context, from, to time.Time) ([]DemandEvent, error)
}

// ComfortAnalytics supplies per-schema €/worker comfort limits.
type ComfortAnalytics interface {
	ComfortLimits(ctx context.Context) (ComfortLimits, error)
}
