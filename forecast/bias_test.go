package forecast_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-forecast/forecast"
	"github.com/warp/shift-forecast/forecast/store"
)

func TestUpdateWindow(t *testing.T) {
	t.Run("appends and averages", func(t *testing.T) {
		list, avg := forecast.UpdateWindow([]float64{5, 10}, 15, 12)
		assert.Equal(t, []float64{5, 10, 15}, list)
		assert.Equal(t, 10.0, avg)
	})

	t.Run("evicts the oldest beyond the window", func(t *testing.T) {
		full := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
		list, avg := forecast.UpdateWindow(full, 100, 12)
		assert.Len(t, list, 12)
		assert.Equal(t, 2.0, list[0])
		assert.InDelta(t, 14.75, avg, 1e-9) // mean(2..12, 100)
	})

	t.Run("does not alias the input", func(t *testing.T) {
		in := make([]float64, 2, 8)
		in[0], in[1] = 1, 2
		out, _ := forecast.UpdateWindow(in, 3, 12)
		out[0] = 99
		assert.Equal(t, 1.0, in[0])
	})
}

func TestBiasMaeState_ThirteenUpdates(t *testing.T) {
	// GIVEN 13 sequential updates to Tuesday
	var s forecast.BiasMaeState
	for i := 1; i <= 13; i++ {
		s = s.Record(1, float64(i), float64(i*10))
	}

	// THEN the window holds 12 values and the first one is gone
	assert.Len(t, s.Bias.Recent[1], forecast.BiasWindowSize)
	assert.NotContains(t, s.Bias.Recent[1], 1.0)
	assert.InDelta(t, 7.5, s.BiasPct(1), 1e-9)    // mean(2..13)
	assert.InDelta(t, 75.0, s.LearnedMAE(1), 1e-9) // mean(20..130)

	// AND other weekdays are untouched
	assert.Empty(t, s.Bias.Recent[0])
	assert.Equal(t, 0.0, s.BiasPct(0))
}

func TestBiasMaeState_RecordReturnsCopy(t *testing.T) {
	var s forecast.BiasMaeState
	s1 := s.Record(3, 10, 100)
	s1.Record(3, 50, 500)

	assert.Equal(t, []float64{10}, s1.Bias.Recent[3])
	assert.Empty(t, s.Bias.Recent[3])
}

func TestBlobRoundTrip(t *testing.T) {
	var s forecast.BiasMaeState
	s = s.Record(0, 12.5, 80).Record(0, -4, 20).Record(5, 3, 15)

	bias, err := forecast.SerializeBiasBlob(s.Bias)
	require.NoError(t, err)
	mae, err := forecast.SerializeMAEBlob(s.MAE)
	require.NoError(t, err)
	assert.Contains(t, bias, `"avg":`)
	assert.Contains(t, mae, `"avg_mae":`)

	gotBias, err := forecast.ParseBiasBlob(bias)
	require.NoError(t, err)
	gotMAE, err := forecast.ParseMAEBlob(mae)
	require.NoError(t, err)

	assert.Equal(t, s.Bias.Avg, gotBias.Avg)
	assert.Equal(t, s.MAE.Avg, gotMAE.Avg)
	assert.Equal(t, []float64{12.5, -4}, gotBias.Recent[0])
	assert.Equal(t, []float64{15}, gotMAE.Recent[5])
}

func TestParseBlob_RecentOverridesAvg(t *testing.T) {
	w, err := forecast.ParseBiasBlob(`{"avg":[9,9,9,9,9,9,9],"recent_2":[2,4]}`)
	require.NoError(t, err)
	assert.Equal(t, 9.0, w.Avg[0])
	assert.Equal(t, 3.0, w.Avg[2])
}

func TestParseBlob_Malformed(t *testing.T) {
	w, err := forecast.ParseMAEBlob(`{not json`)
	assert.Error(t, err)
	assert.ErrorIs(t, err, forecast.ErrMalformedState)
	assert.Equal(t, forecast.RollingWindows{}, w)
}

func TestLoadBiasMaeState_MalformedIsZero(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.SetSetting(ctx, forecast.SettingPredictionBias, "garbage"))

	s, err := forecast.LoadBiasMaeState(ctx, mem, nil)
	require.NoError(t, err)
	assert.Equal(t, forecast.BiasMaeState{}, s)
}

func TestSaveLoadBiasMaeState(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := forecast.BiasMaeState{}.Record(4, 8, 60)

	require.NoError(t, forecast.SaveBiasMaeState(ctx, mem, s))
	got, err := forecast.LoadBiasMaeState(ctx, mem, nil)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got.BiasPct(4))
	assert.Equal(t, 60.0, got.LearnedMAE(4))
}
