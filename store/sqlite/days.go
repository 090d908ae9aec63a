package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warp/shift-forecast/forecast"
)

// =============================================================================
// DAYS AND SHIFTS (forecast.HistoricalRecords)
// =============================================================================

// SaveDay upserts a day and its shifts. Shifts of the date missing from
// d.Shifts are removed.
func (s *Store) SaveDay(ctx context.Context, d forecast.DailyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	date := forecast.FormatDate(d.Date)
	weather, err := weatherJSON(d.Weather)
	if err != nil {
		return fmt.Errorf("failed to encode weather: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO days (date, revenue, hours_worked, total_staff, weather_json,
		                  is_holiday, feedback_only, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			revenue = excluded.revenue,
			hours_worked = excluded.hours_worked,
			total_staff = excluded.total_staff,
			weather_json = excluded.weather_json,
			is_holiday = excluded.is_holiday,
			feedback_only = excluded.feedback_only,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`
	_, err = tx.ExecContext(ctx, query,
		date, money(d.Revenue), d.HoursWorked, d.TotalStaff, weather,
		d.IsHoliday, d.FeedbackOnly, nullString(d.Notes), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save day: %w", err)
	}

	kept := make([]any, 0, len(d.Shifts)+1)
	kept = append(kept, date)
	for _, sh := range d.Shifts {
		if sh.Shift.Index() < 0 {
			return fmt.Errorf("%w: unknown shift %q", forecast.ErrInvalidRecord, sh.Shift)
		}
		if err := saveShift(ctx, tx, date, sh); err != nil {
			return err
		}
		kept = append(kept, string(sh.Shift))
	}

	del := "DELETE FROM shifts WHERE date = ?"
	if len(kept) > 1 {
		del += " AND shift_name NOT IN (?" + strings.Repeat(", ?", len(kept)-2) + ")"
	}
	if _, err := tx.ExecContext(ctx, del, kept...); err != nil {
		return fmt.Errorf("failed to prune shifts: %w", err)
	}

	return tx.Commit()
}

func saveShift(ctx context.Context, db execer, date string, sh forecast.ShiftRecord) error {
	weather, err := weatherJSON(sh.Weather)
	if err != nil {
		return fmt.Errorf("failed to encode shift weather: %w", err)
	}
	id := sh.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := `
		INSERT INTO shifts (id, date, shift_name, revenue, hours_worked, staff_sala, staff_cocina,
		                    q1_volume, q2_rhythm, q3_margin, q4_difficulty, q5_kitchen,
		                    difficulty_score, kitchen_difficulty, comfort_level,
		                    revenue_per_sala, revenue_per_cocina, weather_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, shift_name) DO UPDATE SET
			revenue = excluded.revenue,
			hours_worked = excluded.hours_worked,
			staff_sala = excluded.staff_sala,
			staff_cocina = excluded.staff_cocina,
			q1_volume = excluded.q1_volume,
			q2_rhythm = excluded.q2_rhythm,
			q3_margin = excluded.q3_margin,
			q4_difficulty = excluded.q4_difficulty,
			q5_kitchen = excluded.q5_kitchen,
			difficulty_score = excluded.difficulty_score,
			kitchen_difficulty = excluded.kitchen_difficulty,
			comfort_level = excluded.comfort_level,
			revenue_per_sala = excluded.revenue_per_sala,
			revenue_per_cocina = excluded.revenue_per_cocina,
			weather_json = excluded.weather_json
	`
	fb := sh.Feedback
	_, err = db.ExecContext(ctx, query,
		id, date, string(sh.Shift), money(sh.Revenue), sh.HoursWorked, sh.StaffSala, sh.StaffCocina,
		nullString(fb.Volume), nullString(fb.Rhythm), nullString(fb.Margin),
		nullString(fb.Difficulty), nullString(fb.Kitchen),
		nullFloat(sh.Difficulty), nullFloat(sh.KitchenDifficulty), nullString(sh.ComfortLevel),
		nullFloat(sh.RevenuePerSala), nullFloat(sh.RevenuePerCocina), weather,
	)
	if err != nil {
		return fmt.Errorf("failed to save shift %s/%s: %w", date, sh.Shift, err)
	}
	return nil
}

// DailyRecords returns days in [from, to] with their shifts, oldest first.
// Zero bounds are open.
func (s *Store) DailyRecords(ctx context.Context, from, to time.Time) ([]forecast.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := dateRange(from, to)

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, revenue, hours_worked, total_staff, weather_json, is_holiday, feedback_only, notes
		FROM days`+where+`
		ORDER BY date ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query days: %w", err)
	}
	defer rows.Close()

	var days []forecast.DailyRecord
	index := make(map[string]int)
	for rows.Next() {
		var (
			d       forecast.DailyRecord
			date    string
			revenue string
			weather sql.NullString
			notes   sql.NullString
		)
		if err := rows.Scan(&date, &revenue, &d.HoursWorked, &d.TotalStaff, &weather,
			&d.IsHoliday, &d.FeedbackOnly, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan day: %w", err)
		}
		parsed, err := forecast.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("bad stored date %q: %w", date, err)
		}
		d.Date = parsed
		d.Revenue = parseMoney(revenue)
		d.Weather = parseWeather(weather)
		d.Notes = notes.String
		index[date] = len(days)
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, nil
	}

	shifts, err := s.queryShifts(ctx, where, args...)
	if err != nil {
		return nil, err
	}
	for _, sh := range shifts {
		if i, ok := index[forecast.FormatDate(sh.Date)]; ok {
			days[i].Shifts = append(days[i].Shifts, sh)
		}
	}
	return days, nil
}

func (s *Store) queryShifts(ctx context.Context, where string, args ...any) ([]forecast.ShiftRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, shift_name, revenue, hours_worked, staff_sala, staff_cocina,
		       q1_volume, q2_rhythm, q3_margin, q4_difficulty, q5_kitchen,
		       difficulty_score, kitchen_difficulty, comfort_level,
		       revenue_per_sala, revenue_per_cocina, weather_json
		FROM shifts`+where+`
		ORDER BY date ASC, CASE shift_name WHEN 'Midday' THEN 0 WHEN 'Afternoon' THEN 1 ELSE 2 END`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var out []forecast.ShiftRecord
	for rows.Next() {
		var (
			sh                  forecast.ShiftRecord
			date, name, revenue string
			q1, q2, q3, q4, q5  sql.NullString
			difficulty, kitchen sql.NullFloat64
			comfort             sql.NullString
			perSala, perCocina  sql.NullFloat64
			weather             sql.NullString
		)
		err := rows.Scan(&sh.ID, &date, &name, &revenue, &sh.HoursWorked, &sh.StaffSala, &sh.StaffCocina,
			&q1, &q2, &q3, &q4, &q5, &difficulty, &kitchen, &comfort, &perSala, &perCocina, &weather)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		sh.Date, _ = forecast.ParseDate(date)
		sh.Shift = forecast.Shift(name)
		sh.Revenue = parseMoney(revenue)
		sh.Feedback = forecast.FeedbackAnswers{
			Volume: q1.String, Rhythm: q2.String, Margin: q3.String, Difficulty: q4.String, Kitchen: q5.String,
		}
		sh.Difficulty = floatPtr(difficulty)
		sh.KitchenDifficulty = floatPtr(kitchen)
		sh.ComfortLevel = comfort.String
		sh.RevenuePerSala = floatPtr(perSala)
		sh.RevenuePerCocina = floatPtr(perCocina)
		sh.Weather = parseWeather(weather)
		out = append(out, sh)
	}
	return out, rows.Err()
}

// dateRange builds a WHERE clause on the date column for [from, to].
func dateRange(from, to time.Time) (string, []any) {
	var conds []string
	var args []any
	if !from.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, forecast.FormatDate(from))
	}
	if !to.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, forecast.FormatDate(to))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
