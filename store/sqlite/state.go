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
// SETTINGS (forecast.SettingsStore)
// =============================================================================

// GetSetting returns the stored value and whether the key exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return value, true, nil
}

// SetSetting upserts a setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save setting %q: %w", key, err)
	}
	return nil
}

// ListSettings returns every setting.
func (s *Store) ListSettings(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// =============================================================================
// DETECTED PATTERNS (forecast.PatternStore)
// =============================================================================

const patternColumns = "id, type, key, payload_json, confidence, created_at, updated_at"

// GetPattern returns the pattern for (type, key), or nil.
func (s *Store) GetPattern(ctx context.Context, t forecast.PatternType, key string) (*forecast.DetectedPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+patternColumns+" FROM detected_patterns WHERE type = ? AND key = ?",
		string(t), key)
	p, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern %s/%s: %w", t, key, err)
	}
	return &p, nil
}

// SavePattern upserts on (type, key), keeping the id and creation time of
// an existing row.
func (s *Store) SavePattern(ctx context.Context, t forecast.PatternType, key string, payload []byte, confidence float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO detected_patterns (`+patternColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type, key) DO UPDATE SET
			payload_json = excluded.payload_json,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at`,
		uuid.NewString(), string(t), key, string(payload), confidence, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save pattern %s/%s: %w", t, key, err)
	}
	return nil
}

// ListPatterns returns every pattern ordered by type and key.
func (s *Store) ListPatterns(ctx context.Context) ([]forecast.DetectedPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+patternColumns+" FROM detected_patterns ORDER BY type, key")
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	var out []forecast.DetectedPattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPattern(r scanner) (forecast.DetectedPattern, error) {
	var (
		p                    forecast.DetectedPattern
		typ, payload         string
		createdAt, updatedAt string
	)
	if err := r.Scan(&p.ID, &typ, &p.Key, &payload, &p.Confidence, &createdAt, &updatedAt); err != nil {
		return p, err
	}
	p.Type = forecast.PatternType(typ)
	p.Payload = []byte(payload)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}
