package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/shift-forecast/forecast"
)

// =============================================================================
// WEEKLY FORECASTS (forecast.ForecastStore)
// =============================================================================

const forecastColumns = `id, week_start, predicted_revenue, days_json, actual_revenue,
	completed_at, accuracy_json, staff_accuracy_json, created_at`

// GetForecast returns the forecast of the week containing weekStart, or nil.
func (s *Store) GetForecast(ctx context.Context, weekStart time.Time) (*forecast.ForecastRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+forecastColumns+" FROM weekly_forecasts WHERE week_start = ?",
		forecast.FormatDate(forecast.MondayOf(weekStart)))
	rec, err := scanForecast(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read forecast: %w", err)
	}
	return &rec, nil
}

// SaveForecast upserts on week_start. The id and creation time of an
// existing row are kept.
func (s *Store) SaveForecast(ctx context.Context, rec forecast.ForecastRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	var completed sql.NullString
	if rec.CompletedAt != nil {
		completed = sql.NullString{String: formatTime(*rec.CompletedAt), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weekly_forecasts (`+forecastColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(week_start) DO UPDATE SET
			predicted_revenue = excluded.predicted_revenue,
			days_json = excluded.days_json,
			actual_revenue = excluded.actual_revenue,
			completed_at = excluded.completed_at,
			accuracy_json = excluded.accuracy_json,
			staff_accuracy_json = excluded.staff_accuracy_json`,
		rec.ID,
		forecast.FormatDate(forecast.MondayOf(rec.WeekStart)),
		nullMoney(rec.PredictedRevenue),
		rec.DaysJSON,
		nullMoney(rec.ActualRevenue),
		completed,
		nullString(rec.AccuracyJSON),
		nullString(rec.StaffAccuracyJSON),
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save forecast: %w", err)
	}
	return nil
}

// ListEvaluatedForecasts returns up to limit completed weeks, newest first.
func (s *Store) ListEvaluatedForecasts(ctx context.Context, limit int) ([]forecast.ForecastRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + forecastColumns + ` FROM weekly_forecasts
		WHERE completed_at IS NOT NULL
		ORDER BY week_start DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query forecasts: %w", err)
	}
	defer rows.Close()

	var out []forecast.ForecastRecord
	for rows.Next() {
		rec, err := scanForecast(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan forecast: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanForecast(r scanner) (forecast.ForecastRecord, error) {
	var (
		rec                     forecast.ForecastRecord
		weekStart, createdAt    string
		predicted, actual       sql.NullString
		completed               sql.NullString
		accuracy, staffAccuracy sql.NullString
	)
	err := r.Scan(&rec.ID, &weekStart, &predicted, &rec.DaysJSON, &actual,
		&completed, &accuracy, &staffAccuracy, &createdAt)
	if err != nil {
		return rec, err
	}
	rec.WeekStart, _ = forecast.ParseDate(weekStart)
	rec.PredictedRevenue = moneyPtr(predicted)
	rec.ActualRevenue = moneyPtr(actual)
	if completed.Valid {
		t := parseTime(completed.String)
		rec.CompletedAt = &t
	}
	rec.AccuracyJSON = accuracy.String
	rec.StaffAccuracyJSON = staffAccuracy.String
	rec.CreatedAt = parseTime(createdAt)
	return rec, nil
}
