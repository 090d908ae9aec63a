package forecast_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-forecast/forecast"
)

// Wednesday; the current week starts 2026-02-09 and history ends 2026-02-08.
var composeToday = date(2026, 2, 11)

func TestCompose_InsufficientHistory(t *testing.T) {
	// GIVEN only four qualifying days
	history := flatWeeks(1, date(2026, 2, 8), 1000, nil)[:4]

	// WHEN composing
	f := forecast.Compose(composeToday, history, forecast.BiasMaeState{}, 1)

	// THEN the sentinel is returned
	assert.True(t, f.IsEmpty())
	assert.Equal(t, 0.0, f.Total)
	assert.Nil(t, f.Days)
	assert.Equal(t, date(2026, 2, 16), f.WeekStart)
}

func TestCompose_NeedsTwoWeeks(t *testing.T) {
	// Seven qualifying days all in one week.
	history := flatWeeks(1, date(2026, 2, 8), 1000, nil)
	f := forecast.Compose(composeToday, history, forecast.BiasMaeState{}, 1)
	assert.True(t, f.IsEmpty())
}

func TestCompose_NeedsAPreviousBlock(t *testing.T) {
	// GIVEN three full weeks: the last-four block exists, the previous one does not
	history := flatWeeks(3, date(2026, 2, 8), 1000, nil)

	// WHEN composing
	f := forecast.Compose(composeToday, history, forecast.BiasMaeState{}, 1)

	// THEN no forecast is produced but the usable weeks are still reported
	assert.True(t, f.IsEmpty())
	assert.Nil(t, f.Days)
	assert.Equal(t, 0.0, f.Total)
	assert.Equal(t, 3, f.WeeksUsed)
	assert.Equal(t, date(2026, 2, 16), f.WeekStart)

	// AND a fifth week is enough; four weeks against one clamps the trend to +15%
	f = forecast.Compose(composeToday, flatWeeks(5, date(2026, 2, 8), 1000, nil), forecast.BiasMaeState{}, 1)
	require.Len(t, f.Days, 7)
	assert.Equal(t, 5, f.WeeksUsed)
	assert.InDelta(t, 1052.5, f.Days[0].Revenue, 0.01)
}

func TestCompose_FlatScenario(t *testing.T) {
	// GIVEN eight flat weeks at 1000 with no shift history
	history := flatWeeks(8, date(2026, 2, 8), 1000, nil)

	// WHEN composing with no bias and no conservative damping
	f := forecast.Compose(composeToday, history, forecast.BiasMaeState{}, 1)

	// THEN every day is 1000 with the default shift split
	require.Len(t, f.Days, 7)
	assert.Equal(t, date(2026, 2, 16), f.WeekStart)
	assert.Equal(t, 7000.0, f.Total)
	assert.Equal(t, 8, f.WeeksUsed)
	for i, d := range f.Days {
		assert.Equal(t, date(2026, 2, 16).AddDate(0, 0, i), d.Date)
		assert.Equal(t, forecast.DayName(i), d.DayName)
		assert.Equal(t, 1000.0, d.Revenue)
		assert.Equal(t, 1000.0, d.Min)
		assert.Equal(t, 1000.0, d.Max)
		assert.Equal(t, forecast.ShiftRevenue{330, 330, 340}, d.Shifts)
		assert.Equal(t, forecast.SourceDefault, d.ShiftSource)
	}
}

func TestCompose_ConservativeFactorScalesEverything(t *testing.T) {
	history := flatWeeks(8, date(2026, 2, 8), 1000, nil)

	f := forecast.Compose(composeToday, history, forecast.BiasMaeState{}, 0.97)

	require.Len(t, f.Days, 7)
	d := f.Days[0]
	assert.Equal(t, 970.0, d.Revenue)
	assert.Equal(t, 970.0, d.Min)
	assert.Equal(t, 970.0, d.Max)
	assert.Equal(t, forecast.ShiftRevenue{320.1, 320.1, 329.8}, d.Shifts)
}

func TestCompose_InvalidConservativeFactorUsesDefault(t *testing.T) {
	history := flatWeeks(8, date(2026, 2, 8), 1000, nil)
	f := forecast.Compose(composeToday, history, forecast.BiasMaeState{}, 5)
	require.Len(t, f.Days, 7)
	assert.Equal(t, 970.0, f.Days[0].Revenue)
}

func TestCompose_BiasDampens(t *testing.T) {
	// GIVEN a learned +20% over-prediction on Mondays and a 100 MAE
	history := flatWeeks(8, date(2026, 2, 8), 1000, nil)
	var bias forecast.BiasMaeState
	bias = bias.Record(0, 40, 100) // clamped to 20%

	f := forecast.Compose(composeToday, history, bias, 1)

	// THEN Monday is damped by 1 - 0.20*0.35 and its band widens by 1.5*MAE
	require.Len(t, f.Days, 7)
	assert.Equal(t, 930.0, f.Days[0].Revenue)
	assert.Equal(t, 790.5, f.Days[0].Min) // 0.85 floor wins over 930-150
	assert.Equal(t, 1069.5, f.Days[0].Max)
	assert.Equal(t, 1000.0, f.Days[1].Revenue)
}

func TestCompose_TrendIsDamped(t *testing.T) {
	// GIVEN the last four weeks 20% above the previous four
	old := flatWeeks(4, date(2026, 1, 11), 1000, nil)
	recent := flatWeeks(4, date(2026, 2, 8), 1200, nil)
	history := append(old, recent...)

	f := forecast.Compose(composeToday, history, forecast.BiasMaeState{}, 1)

	// THEN the trend is clamped at +15% and damped to +5.25%
	require.Len(t, f.Days, 7)
	for _, d := range f.Days {
		assert.Greater(t, d.Revenue, 1100.0)
		assert.Less(t, d.Revenue, 1300.0)
	}
}

func TestCompose_IgnoresFeedbackOnlyDays(t *testing.T) {
	history := flatWeeks(8, date(2026, 2, 8), 1000, nil)
	history = append(history, forecast.DailyRecord{
		Date: date(2026, 2, 1), Revenue: 99999, HoursWorked: 10, FeedbackOnly: true,
	})
	// The duplicate date is fine for a pure snapshot: the flag excludes it.
	f := forecast.Compose(composeToday, history, forecast.BiasMaeState{}, 1)
	require.Len(t, f.Days, 7)
	assert.Equal(t, 1000.0, f.Days[6].Revenue)
}

func TestCompose_HistoricShiftShares(t *testing.T) {
	// GIVEN twelve weeks of shift rows split 40/30/30
	history := flatWeeks(12, date(2026, 2, 8), 1000, &forecast.ShiftRevenue{400, 300, 300})

	f := forecast.Compose(composeToday, history, forecast.BiasMaeState{}, 1)

	require.Len(t, f.Days, 7)
	for _, d := range f.Days {
		assert.Equal(t, forecast.SourceHistoric, d.ShiftSource)
		assert.InDelta(t, 400, d.Shifts[0], 0.01)
		assert.InDelta(t, 300, d.Shifts[1], 0.01)
		assert.InDelta(t, d.Revenue, d.Shifts.Sum(), 0.001)
	}
}

func TestCompose_BandProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		// GIVEN noisy history and arbitrary learned state
		history := flatWeeks(10, date(2026, 2, 8), 0, nil)
		for i := range history {
			history[i].Revenue = 200 + rng.Float64()*3000
		}
		var bias forecast.BiasMaeState
		for wd := 0; wd < 7; wd++ {
			bias = bias.Record(wd, rng.Float64()*80-40, rng.Float64()*900)
		}

		f := forecast.Compose(composeToday, history, bias, 1)

		// THEN 0.85×est ≤ min ≤ est ≤ max ≤ 1.15×est for every day
		require.Len(t, f.Days, 7)
		for _, d := range f.Days {
			assert.GreaterOrEqual(t, d.Revenue, 0.0)
			assert.GreaterOrEqual(t, d.Min, 0.85*d.Revenue-0.01)
			assert.LessOrEqual(t, d.Min, d.Revenue)
			assert.GreaterOrEqual(t, d.Max, d.Revenue)
			assert.LessOrEqual(t, d.Max, 1.15*d.Revenue+0.01)
		}
	}
}

func TestComposer_ComputeLivePrediction(t *testing.T) {
	ctx := context.Background()
	mem := seeded(t, flatWeeks(8, date(2026, 2, 8), 1000, nil))
	require.NoError(t, mem.SetSetting(ctx, forecast.SettingConservativeFactor, "1,0"))

	c := forecast.NewComposer(mem, mem, nil)
	f, err := c.ComputeLivePrediction(ctx, composeToday)
	require.NoError(t, err)
	require.Len(t, f.Days, 7)
	assert.Equal(t, 1000.0, f.Days[3].Revenue)

	weeks, err := c.WeeksUsed(ctx, composeToday)
	require.NoError(t, err)
	assert.Equal(t, 8, weeks)
}

func TestComposer_ComputeLivePrediction_EmptyStore(t *testing.T) {
	mem := seeded(t, nil)
	c := forecast.NewComposer(mem, mem, nil)

	f, err := c.ComputeLivePrediction(context.Background(), composeToday)
	require.NoError(t, err)
	assert.True(t, f.IsEmpty())
}
