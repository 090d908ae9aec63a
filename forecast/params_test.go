package forecast_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-forecast/forecast"
	"github.com/warp/shift-forecast/forecast/store"
)

func TestValidateSetting(t *testing.T) {
	tests := []struct {
		key, value string
		ok         bool
	}{
		{forecast.SettingConservativeFactor, "0,95", true},
		{forecast.SettingConservativeFactor, "2.5", false},
		{forecast.SettingConservativeFactor, "0", false},
		{forecast.SettingShiftHours, "abc", false},
		{forecast.SettingTargetRevenuePerHour, "Inf", false},
		{forecast.SettingTargetRevenuePerHour, "+inf", false},
		{forecast.SettingRevenueFloor, "NaN", false},
		{forecast.SettingLongitude, "-Infinity", false},
		{forecast.SettingRevenueFloor, "0", true},
		{forecast.SettingLatitude, "91", false},
		{forecast.SettingCountryCode, "es", true},
		{forecast.SettingCountryCode, "E", false},
		{forecast.SettingPredictionBias, "{}", false},
		{"restaurant_name", "Casa Lucas", true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := forecast.ValidateSetting(tt.key, tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, forecast.ErrInvalidSetting)
			}
		})
	}
}

func TestLoadParams_IgnoresInvalidValues(t *testing.T) {
	// GIVEN
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.SetSetting(ctx, forecast.SettingTargetRevenuePerHour, "60,5"))
	require.NoError(t, m.SetSetting(ctx, forecast.SettingConservativeFactor, "7"))
	require.NoError(t, m.SetSetting(ctx, forecast.SettingShiftHours, "Inf"))
	require.NoError(t, m.SetSetting(ctx, forecast.SettingLatitude, "40.4"))
	require.NoError(t, m.SetSetting(ctx, forecast.SettingCountryCode, " pt "))

	// WHEN
	p := forecast.LoadParams(ctx, m, nil)

	// THEN
	assert.Equal(t, 60.5, p.TargetRevenuePerHour)
	assert.Equal(t, 0.97, p.ConservativeFactor, "out of range keeps the default")
	assert.Equal(t, 4.0, p.ShiftHours, "non-finite keeps the default")
	require.NotNil(t, p.Location.Lat)
	assert.Nil(t, p.Location.Lon)
	assert.False(t, p.Location.Valid())
	assert.Equal(t, "PT", p.CountryCode)
}
