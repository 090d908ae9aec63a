package forecast_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-forecast/forecast"
	"github.com/warp/shift-forecast/forecast/store"
)

// Wednesday after the week of 2026-02-09..15.
var evalToday = date(2026, 2, 18)

func TestAccuracy(t *testing.T) {
	m := forecast.Accuracy(1000, 900)
	assert.Equal(t, 10.0, m.OverallErrorPct)
	assert.Equal(t, 90.0, m.AccuracyPct)

	m = forecast.Accuracy(1000, 0)
	assert.Equal(t, 100.0, m.OverallErrorPct)
	assert.Equal(t, 0.0, m.AccuracyPct)

	m = forecast.Accuracy(1000, 2500)
	assert.Equal(t, 0.0, m.AccuracyPct)

	// Nothing predicted: no error can be measured.
	m = forecast.Accuracy(0, 800)
	assert.Equal(t, 0.0, m.OverallErrorPct)
	assert.Equal(t, 100.0, m.AccuracyPct)
}

func TestStaffAccuracy(t *testing.T) {
	d := date(2026, 2, 9)
	days := []forecast.DayForecast{
		{Date: d, Revenue: 900, Staff: &forecast.StaffPlan{
			Sala:   forecast.Triple{2, 2, 2},
			Cocina: forecast.Triple{1, 1, 1},
		}},
		// Days without a plan are skipped.
		{Date: d.AddDate(0, 0, 1), Revenue: 900},
	}
	actual := []forecast.DailyRecord{
		{Date: d, Revenue: 900, Shifts: []forecast.ShiftRecord{
			{Shift: forecast.ShiftMidday, StaffSala: 2, StaffCocina: 1},
			{Shift: forecast.ShiftAfternoon, StaffSala: 2, StaffCocina: 1},
			{Shift: forecast.ShiftNight, StaffSala: 3, StaffCocina: 1},
		}},
		{Date: d.AddDate(0, 0, 1), Revenue: 900, Shifts: []forecast.ShiftRecord{
			{Shift: forecast.ShiftMidday, StaffSala: 5, StaffCocina: 5},
		}},
	}

	rep := forecast.StaffAccuracy(days, actual)

	require.NotNil(t, rep)
	assert.Equal(t, 6, rep.Comparisons)
	assert.Equal(t, 0.17, rep.MAE)
	assert.Equal(t, 66.7, rep.ExactMatchPct)
	require.Len(t, rep.ByDay, 1)
	assert.Equal(t, "2026-02-09", rep.ByDay[0].Date)
	assert.Equal(t, 2, rep.ByDay[0].ExactMatches)

	assert.Nil(t, forecast.StaffAccuracy(days, nil))
}

func saveWeek(t *testing.T, mem *store.Memory, days []forecast.DayForecast) {
	t.Helper()
	f := forecast.WeeklyForecast{WeekStart: date(2026, 2, 9), Days: days}
	f.SumDays()
	rec, err := forecast.ToRecord(f)
	require.NoError(t, err)
	require.NoError(t, mem.SaveForecast(context.Background(), rec))
}

func TestEvaluatePending(t *testing.T) {
	ctx := context.Background()

	t.Run("week with no recorded revenue", func(t *testing.T) {
		// GIVEN a saved week predicting 1000 on Monday and nothing recorded
		mem := seeded(t, nil)
		saveWeek(t, mem, []forecast.DayForecast{{Date: date(2026, 2, 9), Revenue: 1000}})
		ev := &forecast.Evaluator{Records: mem, Forecasts: mem, Settings: mem}

		// WHEN the week is evaluated
		rep, err := ev.EvaluatePending(ctx, evalToday)

		// THEN the error is total and the bias learns from it
		require.NoError(t, err)
		require.NotNil(t, rep)
		assert.Equal(t, 100.0, rep.Accuracy.OverallErrorPct)
		assert.Equal(t, 0.0, rep.Accuracy.AccuracyPct)
		assert.True(t, rep.BiasUpdated)
		assert.Equal(t, 1, rep.DaysLearned)
		assert.Nil(t, rep.Staff)

		state, err := forecast.LoadBiasMaeState(ctx, mem, nil)
		require.NoError(t, err)
		assert.Equal(t, 100.0, state.BiasPct(0))
		assert.Equal(t, 1000.0, state.LearnedMAE(0))

		rec, err := mem.GetForecast(ctx, date(2026, 2, 9))
		require.NoError(t, err)
		require.NotNil(t, rec.CompletedAt)
		require.NotNil(t, rec.ActualRevenue)
		assert.Equal(t, 0.0, *rec.ActualRevenue)
		assert.NotEmpty(t, rec.AccuracyJSON)

		// AND a second run finds nothing pending
		again, err := ev.EvaluatePending(ctx, evalToday)
		require.NoError(t, err)
		assert.Nil(t, again)
	})

	t.Run("actuals and staffing compared", func(t *testing.T) {
		d := date(2026, 2, 9)
		mem := seeded(t, []forecast.DailyRecord{
			{Date: d, Revenue: 900, HoursWorked: 20, Shifts: []forecast.ShiftRecord{
				{Date: d, Shift: forecast.ShiftMidday, Revenue: 300, StaffSala: 1, StaffCocina: 1},
			}},
			{Date: d.AddDate(0, 0, 1), Revenue: 1100, HoursWorked: 20},
			// Outside the evaluated week.
			{Date: d.AddDate(0, 0, 7), Revenue: 5000, HoursWorked: 20},
		})
		plan := &forecast.StaffPlan{Sala: forecast.Triple{1, 1, 1}, Cocina: forecast.Triple{1, 1, 1}}
		saveWeek(t, mem, []forecast.DayForecast{
			{Date: d, Revenue: 1000, Staff: plan},
			{Date: d.AddDate(0, 0, 1), Revenue: 1000, Staff: plan},
		})
		ev := &forecast.Evaluator{Records: mem, Forecasts: mem, Settings: mem}

		rep, err := ev.EvaluatePending(ctx, evalToday)

		require.NoError(t, err)
		assert.Equal(t, 2000.0, rep.Accuracy.ActualRevenue)
		assert.Equal(t, 100.0, rep.Accuracy.AccuracyPct)
		require.NotNil(t, rep.Staff)
		assert.Equal(t, 2, rep.Staff.Comparisons)
		assert.Equal(t, 100.0, rep.Staff.ExactMatchPct)
		assert.Equal(t, 2, rep.DaysLearned)

		state, err := forecast.LoadBiasMaeState(ctx, mem, nil)
		require.NoError(t, err)
		assert.Equal(t, 10.0, state.BiasPct(0))
		assert.Equal(t, -10.0, state.BiasPct(1))

		rec, err := mem.GetForecast(ctx, d)
		require.NoError(t, err)
		f, err := forecast.FromRecord(*rec)
		require.NoError(t, err)
		require.NotNil(t, f.StaffAccuracy)
		assert.Equal(t, 2, f.StaffAccuracy.Comparisons)
	})

	t.Run("malformed day list leaves bias untouched", func(t *testing.T) {
		mem := seeded(t, nil)
		total := 1000.0
		require.NoError(t, mem.SaveForecast(ctx, forecast.ForecastRecord{
			WeekStart:        date(2026, 2, 9),
			PredictedRevenue: &total,
			DaysJSON:         "[{not json",
		}))
		ev := &forecast.Evaluator{Records: mem, Forecasts: mem, Settings: mem}

		rep, err := ev.EvaluatePending(ctx, evalToday)

		require.NoError(t, err)
		require.NotNil(t, rep)
		assert.Equal(t, 100.0, rep.Accuracy.OverallErrorPct)
		assert.False(t, rep.BiasUpdated)
		_, ok, err := mem.GetSetting(ctx, forecast.SettingPredictionBias)
		require.NoError(t, err)
		assert.False(t, ok)

		rec, err := mem.GetForecast(ctx, date(2026, 2, 9))
		require.NoError(t, err)
		assert.NotNil(t, rec.CompletedAt)
		assert.Equal(t, "[{not json", rec.DaysJSON)
	})

	t.Run("no saved forecast", func(t *testing.T) {
		mem := seeded(t, nil)
		ev := &forecast.Evaluator{Records: mem, Forecasts: mem, Settings: mem}
		rep, err := ev.EvaluatePending(ctx, evalToday)
		require.NoError(t, err)
		assert.Nil(t, rep)
	})
}

func TestIsMalformed(t *testing.T) {
	_, err := forecast.DecodeDays("")
	assert.True(t, forecast.IsMalformed(err))
	_, err = forecast.ParseBiasBlob("{")
	assert.True(t, forecast.IsMalformed(err))
	assert.False(t, forecast.IsMalformed(forecast.ErrForecastNotFound))
}
