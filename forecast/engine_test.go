package forecast_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-forecast/forecast"
	"github.com/warp/shift-forecast/forecast/store"
)

type engineFixture struct {
	mem *store.Memory
	now time.Time
	eng *forecast.Engine
}

func newEngineFixture(t *testing.T, history []forecast.DailyRecord) *engineFixture {
	t.Helper()
	fx := &engineFixture{mem: seeded(t, history), now: date(2026, 2, 11).Add(15 * time.Hour)}
	fx.eng = forecast.NewEngine(forecast.Dependencies{
		Records:   fx.mem,
		Settings:  fx.mem,
		Patterns:  fx.mem,
		Forecasts: fx.mem,
		Events:    fx.mem,
		Holidays:  stubHolidays{holidays: []forecast.Holiday{{Date: date(2026, 2, 19), Name: "Fiesta"}}},
		Now:       func() time.Time { return fx.now },
	})
	return fx
}

func TestEngine_NextWeekLive(t *testing.T) {
	// GIVEN eight flat weeks and the default conservative factor
	fx := newEngineFixture(t, flatWeeks(8, date(2026, 2, 8), 1000, &forecast.ShiftRevenue{300, 300, 400}))
	ctx := context.Background()

	// WHEN next week is requested
	f, err := fx.eng.NextWeek(ctx, forecast.Overrides{})

	// THEN the live forecast is returned with staffing on every day
	require.NoError(t, err)
	require.Len(t, f.Days, 7)
	assert.False(t, f.Saved)
	assert.Equal(t, date(2026, 2, 16), f.WeekStart)
	assert.Equal(t, 6790.0, f.Total)
	for _, d := range f.Days {
		require.NotNil(t, d.Staff, d.DayName)
		assert.Equal(t, forecast.SourceHistoric, d.Staff.Source)
		require.NotNil(t, d.Context)
	}
	assert.True(t, f.Days[3].Context.IsHoliday)
	assert.Equal(t, "Fiesta", f.Days[3].Context.HolidayName)

	weeks, err := fx.eng.WeeksUsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, weeks)
}

func TestEngine_SaveAndLoad(t *testing.T) {
	fx := newEngineFixture(t, flatWeeks(8, date(2026, 2, 8), 1000, nil))
	ctx := context.Background()

	saved, err := fx.eng.SaveNextWeek(ctx, forecast.Overrides{CountryCode: "pt"})
	require.NoError(t, err)
	assert.True(t, saved.Saved)

	rec, err := fx.mem.GetForecast(ctx, date(2026, 2, 16))
	require.NoError(t, err)
	require.NotNil(t, rec)
	firstID := rec.ID

	// Saving again keeps the row identity.
	_, err = fx.eng.SaveNextWeek(ctx, forecast.Overrides{})
	require.NoError(t, err)
	rec, err = fx.mem.GetForecast(ctx, date(2026, 2, 16))
	require.NoError(t, err)
	assert.Equal(t, firstID, rec.ID)

	next, err := fx.eng.NextWeek(ctx, forecast.Overrides{})
	require.NoError(t, err)
	assert.True(t, next.Saved)
	assert.Equal(t, saved.Total, next.Total)
	require.Len(t, next.Days, 7)
	assert.NotNil(t, next.Days[0].Staff)

	byWeek, err := fx.eng.ByWeek(ctx, date(2026, 2, 20))
	require.NoError(t, err)
	assert.Equal(t, date(2026, 2, 16), byWeek.WeekStart)
	assert.Len(t, byWeek.Days, 7)

	_, err = fx.eng.ByWeek(ctx, date(2026, 3, 4))
	assert.ErrorIs(t, err, forecast.ErrForecastNotFound)
	assert.True(t, forecast.IsNotFound(err))
}

func TestEngine_InsufficientHistorySavesNothing(t *testing.T) {
	fx := newEngineFixture(t, flatWeeks(1, date(2026, 2, 8), 1000, nil)[:3])
	ctx := context.Background()

	f, err := fx.eng.SaveNextWeek(ctx, forecast.Overrides{})

	require.NoError(t, err)
	assert.True(t, f.IsEmpty())
	assert.False(t, f.Saved)
	rec, err := fx.mem.GetForecast(ctx, date(2026, 2, 16))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestEngine_EvaluationCycle(t *testing.T) {
	fx := newEngineFixture(t, flatWeeks(8, date(2026, 2, 8), 1000, nil))
	ctx := context.Background()
	_, err := fx.eng.SaveNextWeek(ctx, forecast.Overrides{})
	require.NoError(t, err)

	// GIVEN the forecast week has passed with each day earning 970
	for i := 0; i < 7; i++ {
		require.NoError(t, fx.mem.SaveDay(ctx, forecast.DailyRecord{
			Date: date(2026, 2, 16).AddDate(0, 0, i), Revenue: 970, HoursWorked: 30,
		}))
	}
	fx.now = date(2026, 2, 24)

	// WHEN the background cycle runs
	report, mined, err := fx.eng.RunEvaluationCycle(ctx)

	// THEN the week is scored and weekday patterns are stored
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 100.0, report.Accuracy.AccuracyPct)
	assert.Equal(t, 7, report.DaysLearned)
	assert.Equal(t, 7, mined)

	history, err := fx.eng.AccuracyHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].Accuracy)
	assert.Equal(t, 100.0, history[0].Accuracy.AccuracyPct)

	// AND timestamps come from the engine clock
	rec, err := fx.mem.GetForecast(ctx, date(2026, 2, 16))
	require.NoError(t, err)
	require.NotNil(t, rec.CompletedAt)
	assert.True(t, rec.CompletedAt.Equal(date(2026, 2, 24)), rec.CompletedAt)
	assert.True(t, rec.CreatedAt.Equal(date(2026, 2, 11).Add(15*time.Hour)), rec.CreatedAt)

	report, _, err = fx.eng.RunEvaluationCycle(ctx)
	require.NoError(t, err)
	assert.Nil(t, report)
}
