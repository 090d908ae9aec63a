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
// DEMAND EVENTS (forecast.EventsProvider)
// =============================================================================

// AddEvent stores a demand event and returns it with its id set.
func (s *Store) AddEvent(ctx context.Context, ev forecast.DemandEvent) (forecast.DemandEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(ev.Name) == "" {
		return ev, fmt.Errorf("%w: event name is required", forecast.ErrInvalidRecord)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Impact == "" {
		ev.Impact = forecast.ImpactMedium
	}
	ev.Date = forecast.DateOf(ev.Date)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, date, name, impact, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, forecast.FormatDate(ev.Date), ev.Name, ev.Impact, nullString(ev.Description), formatTime(time.Now()),
	)
	if err != nil {
		return ev, fmt.Errorf("failed to save event: %w", err)
	}
	return ev, nil
}

// Events returns events dated in [from, to], oldest first.
func (s *Store) Events(ctx context.Context, from, to time.Time) ([]forecast.DemandEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := dateRange(from, to)
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, date, name, impact, description FROM events"+where+" ORDER BY date ASC, created_at ASC",
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []forecast.DemandEvent
	for rows.Next() {
		var (
			ev   forecast.DemandEvent
			date string
			desc sql.NullString
		)
		if err := rows.Scan(&ev.ID, &date, &ev.Name, &ev.Impact, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Date, _ = forecast.ParseDate(date)
		ev.Description = desc.String
		out = append(out, ev)
	}
	return out, rows.Err()
}
