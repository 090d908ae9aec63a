package forecast_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/shift-forecast/forecast"
)

func TestNextMonday(t *testing.T) {
	tests := []struct {
		from, want time.Time
	}{
		{date(2026, 2, 9), date(2026, 2, 16)},  // Monday -> following Monday
		{date(2026, 2, 10), date(2026, 2, 16)}, // Tuesday
		{date(2026, 2, 15), date(2026, 2, 16)}, // Sunday
		{date(2026, 2, 16), date(2026, 2, 23)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, forecast.NextMonday(tt.from), "from %s", forecast.FormatDate(tt.from))
	}
}

func TestWeekHelpers(t *testing.T) {
	assert.Equal(t, 0, forecast.WeekdayIndex(date(2026, 2, 9)))
	assert.Equal(t, 6, forecast.WeekdayIndex(date(2026, 2, 15)))
	assert.Equal(t, date(2026, 2, 9), forecast.MondayOf(date(2026, 2, 15)))
	assert.Equal(t, date(2026, 2, 9), forecast.MondayOf(time.Date(2026, 2, 9, 23, 30, 0, 0, time.UTC)))

	// A Sunday is not yet complete on itself.
	assert.Equal(t, date(2026, 2, 8), forecast.LastCompletedSunday(date(2026, 2, 15)))
	assert.Equal(t, date(2026, 2, 15), forecast.LastCompletedSunday(date(2026, 2, 16)))

	assert.Equal(t, "Wednesday", forecast.DayName(2))
	idx, ok := forecast.WeekdayFromName("Sunday")
	assert.True(t, ok)
	assert.Equal(t, 6, idx)
}
