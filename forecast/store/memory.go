// Package store provides in-memory implementations of the forecast contracts.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/shift-forecast/forecast"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	days      map[string]forecast.DailyRecord
	settings  map[string]string
	patterns  map[patternKey]forecast.DetectedPattern
	forecasts map[string]forecast.ForecastRecord
	events    []forecast.DemandEvent
}

type patternKey struct {
	Type forecast.PatternType
	Key  string
}

func NewMemory() *Memory {
	return &Memory{
		days:      make(map[string]forecast.DailyRecord),
		settings:  make(map[string]string),
		patterns:  make(map[patternKey]forecast.DetectedPattern),
		forecasts: make(map[string]forecast.ForecastRecord),
	}
}

// SaveDay upserts a day keyed by its date.
func (m *Memory) SaveDay(_ context.Context, d forecast.DailyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sh := range d.Shifts {
		if sh.Shift.Index() < 0 {
			return fmt.Errorf("%w: unknown shift %q", forecast.ErrInvalidRecord, sh.Shift)
		}
	}
	d.Date = forecast.DateOf(d.Date)
	key := forecast.FormatDate(d.Date)

	// Shift ids survive a re-save of the same (date, shift).
	existing := make(map[forecast.Shift]string)
	for _, sh := range m.days[key].Shifts {
		existing[sh.Shift] = sh.ID
	}
	shifts := make([]forecast.ShiftRecord, len(d.Shifts))
	for i, sh := range d.Shifts {
		if sh.ID == "" {
			sh.ID = existing[sh.Shift]
		}
		if sh.ID == "" {
			sh.ID = uuid.NewString()
		}
		sh.Date = d.Date
		shifts[i] = sh
	}
	d.Shifts = shifts
	m.days[key] = d
	return nil
}

// DailyRecords returns days in [from, to] sorted by date. Zero bounds are open.
func (m *Memory) DailyRecords(_ context.Context, from, to time.Time) ([]forecast.DailyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []forecast.DailyRecord
	for _, d := range m.days {
		if !from.IsZero() && d.Date.Before(forecast.DateOf(from)) {
			continue
		}
		if !to.IsZero() && d.Date.After(forecast.DateOf(to)) {
			continue
		}
		d.Shifts = append([]forecast.ShiftRecord(nil), d.Shifts...)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) GetSetting(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

func (m *Memory) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// ListSettings returns a copy of every setting.
func (m *Memory) ListSettings(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.settings))
	for k, v := range m.settings {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) GetPattern(_ context.Context, t forecast.PatternType, key string) (*forecast.DetectedPattern, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patterns[patternKey{t, key}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// SavePattern upserts on (type, key), keeping the original id and creation time.
func (m *Memory) SavePattern(_ context.Context, t forecast.PatternType, key string, payload []byte, confidence float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	k := patternKey{t, key}
	p, ok := m.patterns[k]
	if !ok {
		p = forecast.DetectedPattern{ID: uuid.NewString(), Type: t, Key: key, CreatedAt: now}
	}
	p.Payload = append([]byte(nil), payload...)
	p.Confidence = confidence
	p.UpdatedAt = now
	m.patterns[k] = p
	return nil
}

func (m *Memory) ListPatterns(_ context.Context) ([]forecast.DetectedPattern, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]forecast.DetectedPattern, 0, len(m.patterns))
	for _, p := range m.patterns {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (m *Memory) GetForecast(_ context.Context, weekStart time.Time) (*forecast.ForecastRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.forecasts[forecast.FormatDate(forecast.MondayOf(weekStart))]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// SaveForecast upserts on the week start.
func (m *Memory) SaveForecast(_ context.Context, rec forecast.ForecastRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.WeekStart = forecast.MondayOf(rec.WeekStart)
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.forecasts[forecast.FormatDate(rec.WeekStart)] = rec
	return nil
}

// ListEvaluatedForecasts returns completed weeks, newest first.
func (m *Memory) ListEvaluatedForecasts(_ context.Context, limit int) ([]forecast.ForecastRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []forecast.ForecastRecord
	for _, r := range m.forecasts {
		if r.CompletedAt != nil {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.After(out[j].WeekStart) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AddEvent records a demand event and returns it with its id set.
func (m *Memory) AddEvent(_ context.Context, ev forecast.DemandEvent) (forecast.DemandEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *Memory) Events(_ context.Context, from, to time.Time) ([]forecast.DemandEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []forecast.DemandEvent
	for _, ev := range m.events {
		if !from.IsZero() && ev.Date.Before(forecast.DateOf(from)) {
			continue
		}
		if !to.IsZero() && ev.Date.After(forecast.DateOf(to)) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days = make(map[string]forecast.DailyRecord)
	m.settings = make(map[string]string)
	m.patterns = make(map[patternKey]forecast.DetectedPattern)
	m.forecasts = make(map[string]forecast.ForecastRecord)
	m.events = nil
	return nil
}

// ResetHistory clears recorded days and everything learned from them,
// keeping tunable settings.
func (m *Memory) ResetHistory(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days = make(map[string]forecast.DailyRecord)
	m.patterns = make(map[patternKey]forecast.DetectedPattern)
	m.forecasts = make(map[string]forecast.ForecastRecord)
	m.events = nil
	delete(m.settings, forecast.SettingPredictionBias)
	delete(m.settings, forecast.SettingPredictionMAE)
	return nil
}
