/*
Package sqlite provides a SQLite-backed implementation of the forecast storage
contracts.

PURPOSE:
  Persists recorded days and shifts, the key-value settings (including the
  learned bias/MAE blobs), detected patterns, weekly forecasts and demand
  events. One Store satisfies every storage interface in package forecast.

INTERFACES IMPLEMENTED:
  forecast.HistoricalRecords: Days with their shifts
  forecast.SettingsStore:     Key-value settings
  forecast.PatternStore:      Detected patterns, unique on (type, key)
  forecast.ForecastStore:     Weekly forecasts, unique on week_start
  forecast.EventsProvider:    Manually entered demand events

KEY TABLES:
  days:              One row per date
  shifts:            One row per (date, shift_name)
  settings:          Key-value strings
  detected_patterns: Mined patterns with JSON payloads
  weekly_forecasts:  Saved forecasts and their evaluation
  events:            Demand events

STORAGE CONVENTIONS:
  - Dates are "YYYY-MM-DD" text, timestamps RFC3339 text.
  - Money columns are decimal strings, written via shopspring/decimal so
    totals read back exactly as entered.
  - Weather is a JSON column because every measurement is optional.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Writes are single-row upserts; the
  engine accepts last-write-wins for the rare concurrent write.

WAL MODE:
  File databases are opened with WAL so readers do not block the writer.
  ":memory:" databases are limited to a single connection, since every
  new connection would otherwise see an empty database.

USAGE:
  store, err := sqlite.New("./data/shift-forecast.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  eng := forecast.NewEngine(forecast.Dependencies{Records: store, ...})

SEE ALSO:
  - forecast/store.go: Interface definitions
  - forecast/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/shift-forecast/forecast"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL"
	if dbPath == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Recorded days
	CREATE TABLE IF NOT EXISTS days (
		date TEXT PRIMARY KEY,
		revenue TEXT NOT NULL DEFAULT '0',
		hours_worked REAL NOT NULL DEFAULT 0,
		total_staff INTEGER NOT NULL DEFAULT 0,
		weather_json TEXT,
		is_holiday BOOLEAN NOT NULL DEFAULT FALSE,
		feedback_only BOOLEAN NOT NULL DEFAULT FALSE,
		notes TEXT,
		updated_at TEXT NOT NULL
	);

	-- Shifts of a day; at most one per shift name
	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL REFERENCES days(date) ON DELETE CASCADE,
		shift_name TEXT NOT NULL,
		revenue TEXT NOT NULL DEFAULT '0',
		hours_worked REAL NOT NULL DEFAULT 0,
		staff_sala INTEGER NOT NULL DEFAULT 0,
		staff_cocina INTEGER NOT NULL DEFAULT 0,
		q1_volume TEXT,
		q2_rhythm TEXT,
		q3_margin TEXT,
		q4_difficulty TEXT,
		q5_kitchen TEXT,
		difficulty_score REAL,
		kitchen_difficulty REAL,
		comfort_level TEXT,
		revenue_per_sala REAL,
		revenue_per_cocina REAL,
		weather_json TEXT,
		UNIQUE(date, shift_name)
	);

	CREATE INDEX IF NOT EXISTS idx_shifts_date
		ON shifts(date);

	-- Key-value settings and learned state
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Mined patterns
	CREATE TABLE IF NOT EXISTS detected_patterns (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		key TEXT NOT NULL DEFAULT '',
		payload_json TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(type, key)
	);

	-- Weekly forecasts
	CREATE TABLE IF NOT EXISTS weekly_forecasts (
		id TEXT PRIMARY KEY,
		week_start TEXT NOT NULL UNIQUE,
		predicted_revenue TEXT,
		days_json TEXT NOT NULL,
		actual_revenue TEXT,
		completed_at TEXT,
		accuracy_json TEXT,
		staff_accuracy_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_weekly_forecasts_completed
		ON weekly_forecasts(completed_at) WHERE completed_at IS NOT NULL;

	-- Demand events
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		impact TEXT NOT NULL DEFAULT 'Medio',
		description TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_date
		ON events(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"shifts", "days", "settings", "detected_patterns", "weekly_forecasts", "events"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// ResetHistory clears recorded days and everything learned from them,
// keeping tunable settings other than the bias/MAE state.
func (s *Store) ResetHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmts := []string{
		"DELETE FROM shifts",
		"DELETE FROM days",
		"DELETE FROM detected_patterns",
		"DELETE FROM weekly_forecasts",
		"DELETE FROM events",
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key IN (?, ?)",
		forecast.SettingPredictionBias, forecast.SettingPredictionMAE)
	return err
}

// Helper functions

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// money renders an amount as a two-decimal string.
func money(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

func nullMoney(v *float64) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: money(*v), Valid: true}
}

func parseMoney(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

func moneyPtr(s sql.NullString) *float64 {
	if !s.Valid {
		return nil
	}
	v := parseMoney(s.String)
	return &v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func weatherJSON(w *forecast.Weather) (sql.NullString, error) {
	if w == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(w)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// parseWeather ignores unreadable blobs: weather is best-effort context.
func parseWeather(s sql.NullString) *forecast.Weather {
	if !s.Valid || s.String == "" {
		return nil
	}
	var w forecast.Weather
	if err := json.Unmarshal([]byte(s.String), &w); err != nil {
		return nil
	}
	return &w
}
