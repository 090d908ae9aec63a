package analytics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-forecast/analytics"
	"github.com/warp/shift-forecast/forecast"
	"github.com/warp/shift-forecast/forecast/store"
)

func ptr(v float64) *float64 { return &v }

type shiftFixture struct {
	revenue    float64
	sala       int
	cocina     int
	difficulty *float64
	feedback   forecast.FeedbackAnswers
	perSala    *float64
}

// seed stores one day per shift so each fixture lands on its own date.
func seed(t *testing.T, fixtures ...shiftFixture) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i, s := range fixtures {
		date := start.AddDate(0, 0, i)
		require.NoError(t, m.SaveDay(context.Background(), forecast.DailyRecord{
			Date:        date,
			Revenue:     s.revenue,
			HoursWorked: 4,
			Shifts: []forecast.ShiftRecord{{
				Date:           date,
				Shift:          forecast.ShiftMidday,
				Revenue:        s.revenue,
				StaffSala:      s.sala,
				StaffCocina:    s.cocina,
				Difficulty:     s.difficulty,
				Feedback:       s.feedback,
				RevenuePerSala: s.perSala,
			}},
		}))
	}
	return m
}

func repeatShift(n int, s shiftFixture) []shiftFixture {
	out := make([]shiftFixture, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func findSchema(rs []analytics.SchemaReport, key string) *analytics.SchemaReport {
	for i := range rs {
		if rs[i].Schema == key {
			return &rs[i]
		}
	}
	return nil
}

func TestReport_BandsAndLimits(t *testing.T) {
	// GIVEN: 2-1 shifts that are easy at 350 €/waiter and hard at 550 €/waiter
	hardKitchen := forecast.FeedbackAnswers{Kitchen: "Difícil"}
	fixtures := repeatShift(3, shiftFixture{revenue: 700, sala: 2, cocina: 1, difficulty: ptr(2), feedback: hardKitchen})
	fixtures = append(fixtures, repeatShift(3, shiftFixture{revenue: 1100, sala: 2, cocina: 1, difficulty: ptr(4), feedback: hardKitchen})...)
	c := analytics.NewComfort(seed(t, fixtures...))

	// WHEN
	rep, err := c.Report(context.Background(), 0)
	require.NoError(t, err)

	// THEN: every sala schema is listed in order
	require.Len(t, rep.Schemas, len(analytics.SalaSchemas))
	assert.Equal(t, "1-1", rep.Schemas[0].Schema)
	assert.Len(t, rep.Bands, 7)

	s := findSchema(rep.Schemas, "2-1")
	require.NotNil(t, s)
	require.Len(t, s.Bands, 2)
	assert.Equal(t, analytics.BandItem{Min: 0, Max: 400, Count: 3, AvgDifficulty: 2, PctDifficult: 0}, s.Bands[0])
	assert.Equal(t, analytics.BandItem{Min: 500, Max: 600, Count: 3, AvgDifficulty: 4, PctDifficult: 100}, s.Bands[1])
	require.NotNil(t, s.ComfortLimit)
	assert.Equal(t, 500.0, *s.ComfortLimit)

	// AND: the kitchen is grouped by cook count using the kitchen answer
	require.Len(t, rep.CocinaSchemas, 1)
	k := rep.CocinaSchemas[0]
	assert.Equal(t, "1", k.Schema)
	require.NotNil(t, k.ComfortLimit)
	assert.Equal(t, 700.0, *k.ComfortLimit)

	limits := rep.Limits()
	assert.Equal(t, map[string]float64{"2-1": 500}, limits.Sala)
	assert.Equal(t, map[string]float64{"1": 700}, limits.Cocina)
}

func TestReport_SmallGroupsYieldNoLimit(t *testing.T) {
	// GIVEN: only two hard 1-1 shifts
	c := analytics.NewComfort(seed(t, repeatShift(2, shiftFixture{revenue: 900, sala: 1, cocina: 1, difficulty: ptr(5)})...))

	// WHEN
	rep, err := c.Report(context.Background(), 0)
	require.NoError(t, err)

	// THEN
	s := findSchema(rep.Schemas, "1-1")
	require.NotNil(t, s)
	assert.Empty(t, s.Bands)
	assert.Nil(t, s.ComfortLimit)

	// AND: a smaller threshold lets them through
	rep, err = c.Report(context.Background(), 2)
	require.NoError(t, err)
	s = findSchema(rep.Schemas, "1-1")
	require.NotNil(t, s.ComfortLimit)
	assert.Equal(t, 800.0, *s.ComfortLimit)
}

func TestReport_DerivesDifficultyAndPrefersStoredRevenuePerWorker(t *testing.T) {
	// GIVEN: no stored difficulty, a hard questionnaire, and a stored €/waiter
	hard := forecast.FeedbackAnswers{Volume: "Sala completa", Rhythm: "Muchas entradas juntas", Margin: "Poco margen"}
	c := analytics.NewComfort(seed(t, repeatShift(3, shiftFixture{revenue: 200, sala: 1, cocina: 1, feedback: hard, perSala: ptr(650)})...))

	// WHEN
	rep, err := c.Report(context.Background(), 0)
	require.NoError(t, err)

	// THEN: (3 + 4 + (6-4)) / 3 = 3.0 lands in the 600 band below the limit
	s := findSchema(rep.Schemas, "1-1")
	require.Len(t, s.Bands, 1)
	assert.Equal(t, 600.0, s.Bands[0].Min)
	assert.Equal(t, 3.0, s.Bands[0].AvgDifficulty)
	assert.Nil(t, s.ComfortLimit)
}

func TestReport_SkipsShiftsWithoutDifficulty(t *testing.T) {
	// GIVEN
	c := analytics.NewComfort(seed(t, repeatShift(4, shiftFixture{revenue: 800, sala: 2, cocina: 2})...))

	// WHEN
	limits, err := c.ComfortLimits(context.Background())

	// THEN
	require.NoError(t, err)
	assert.Empty(t, limits.Sala)
	assert.Empty(t, limits.Cocina)
}

type failingRecords struct{}

func (failingRecords) DailyRecords(context.Context, time.Time, time.Time) ([]forecast.DailyRecord, error) {
	return nil, errors.New("disk on fire")
}

func TestComfortLimits_PropagatesStoreErrors(t *testing.T) {
	c := analytics.NewComfort(failingRecords{})
	_, err := c.ComfortLimits(context.Background())
	assert.ErrorContains(t, err, "disk on fire")
}
