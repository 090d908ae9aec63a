package forecast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// BIAS / MAE STATE - Rolling per-weekday learning
// =============================================================================

// BiasWindowSize is the maximum number of samples kept per weekday.
const BiasWindowSize = 12

// RollingWindows holds one bounded window per weekday plus its average.
type RollingWindows struct {
	Avg    [7]float64
	Recent [7][]float64
}

// BiasMaeState is the learned correction state. It is a value: Record
// returns an updated copy and persistence happens only through
// LoadBiasMaeState / SaveBiasMaeState.
type BiasMaeState struct {
	Bias RollingWindows // signed percentage errors
	MAE  RollingWindows // absolute errors in currency
}

// UpdateWindow appends v, trims from the front beyond size and returns the
// trimmed window with its arithmetic mean (0 if empty).
func UpdateWindow(list []float64, v float64, size int) ([]float64, float64) {
	out := make([]float64, 0, len(list)+1)
	out = append(out, list...)
	out = append(out, v)
	if size > 0 && len(out) > size {
		out = out[len(out)-size:]
	}
	return out, mean(out)
}

// Record feeds one observation for weekday into both windows.
func (s BiasMaeState) Record(weekday int, errorPct, absError float64) BiasMaeState {
	if weekday < 0 || weekday > 6 {
		return s
	}
	next := s.clone()
	next.Bias.Recent[weekday], next.Bias.Avg[weekday] =
		UpdateWindow(s.Bias.Recent[weekday], errorPct, BiasWindowSize)
	next.MAE.Recent[weekday], next.MAE.Avg[weekday] =
		UpdateWindow(s.MAE.Recent[weekday], absError, BiasWindowSize)
	return next
}

// BiasPct returns the learned average signed error for a weekday.
func (s BiasMaeState) BiasPct(weekday int) float64 {
	if weekday < 0 || weekday > 6 {
		return 0
	}
	return s.Bias.Avg[weekday]
}

// LearnedMAE returns the learned average absolute error for a weekday.
func (s BiasMaeState) LearnedMAE(weekday int) float64 {
	if weekday < 0 || weekday > 6 {
		return 0
	}
	return s.MAE.Avg[weekday]
}

func (s BiasMaeState) clone() BiasMaeState {
	out := s
	for i := 0; i < 7; i++ {
		out.Bias.Recent[i] = append([]float64(nil), s.Bias.Recent[i]...)
		out.MAE.Recent[i] = append([]float64(nil), s.MAE.Recent[i]...)
	}
	return out
}

// =============================================================================
// BLOB ENCODING
//
//   bias: {"avg":[7 floats], "recent_0":[...], ..., "recent_6":[...]}
//   mae:  {"avg_mae":[7 floats], "recent_0":[...], ..., "recent_6":[...]}
//
// A non-empty recent_i window wins over the stored average for weekday i.
// =============================================================================

// ParseBiasBlob decodes the bias blob. Malformed input yields zero state.
func ParseBiasBlob(raw string) (RollingWindows, error) {
	return parseWindows(raw, "avg")
}

// ParseMAEBlob decodes the MAE blob. Malformed input yields zero state.
func ParseMAEBlob(raw string) (RollingWindows, error) {
	return parseWindows(raw, "avg_mae")
}

// SerializeBiasBlob encodes the bias windows.
func SerializeBiasBlob(w RollingWindows) (string, error) {
	return serializeWindows(w, "avg")
}

// SerializeMAEBlob encodes the MAE windows.
func SerializeMAEBlob(w RollingWindows) (string, error) {
	return serializeWindows(w, "avg_mae")
}

func parseWindows(raw, avgKey string) (RollingWindows, error) {
	var w RollingWindows
	if raw == "" {
		return w, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return RollingWindows{}, &DecodeError{Kind: ErrMalformedState, What: avgKey + " blob", Cause: err}
	}
	if a, ok := fields[avgKey]; ok {
		var avg []float64
		if err := json.Unmarshal(a, &avg); err != nil {
			return RollingWindows{}, &DecodeError{Kind: ErrMalformedState, What: avgKey, Cause: err}
		}
		for i := 0; i < 7 && i < len(avg); i++ {
			w.Avg[i] = avg[i]
		}
	}
	for i := 0; i < 7; i++ {
		r, ok := fields[fmt.Sprintf("recent_%d", i)]
		if !ok {
			continue
		}
		var list []float64
		if err := json.Unmarshal(r, &list); err != nil {
			return RollingWindows{}, &DecodeError{Kind: ErrMalformedState, What: fmt.Sprintf("recent_%d", i), Cause: err}
		}
		if len(list) > BiasWindowSize {
			list = list[len(list)-BiasWindowSize:]
		}
		w.Recent[i] = list
		if len(list) > 0 {
			w.Avg[i] = mean(list)
		}
	}
	return w, nil
}

func serializeWindows(w RollingWindows, avgKey string) (string, error) {
	out := make(map[string][]float64, 8)
	avg := make([]float64, 7)
	copy(avg, w.Avg[:])
	out[avgKey] = avg
	for i := 0; i < 7; i++ {
		list := w.Recent[i]
		if list == nil {
			list = []float64{}
		}
		out[fmt.Sprintf("recent_%d", i)] = list
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// =============================================================================
// PERSISTENCE BOUNDARY
// =============================================================================

// LoadBiasMaeState reads both blobs. Missing or malformed blobs are logged
// and treated as zero state; only store failures are returned.
func LoadBiasMaeState(ctx context.Context, settings SettingsStore, log logrus.FieldLogger) (BiasMaeState, error) {
	var s BiasMaeState
	if settings == nil {
		return s, nil
	}
	log = componentLogger(log, "bias")

	raw, _, err := settings.GetSetting(ctx, SettingPredictionBias)
	if err != nil {
		return s, fmt.Errorf("read bias state: %w", err)
	}
	if s.Bias, err = ParseBiasBlob(raw); err != nil {
		log.WithError(err).WithField("key", SettingPredictionBias).Warn("malformed bias blob, using zero state")
	}

	raw, _, err = settings.GetSetting(ctx, SettingPredictionMAE)
	if err != nil {
		return s, fmt.Errorf("read mae state: %w", err)
	}
	if s.MAE, err = ParseMAEBlob(raw); err != nil {
		log.WithError(err).WithField("key", SettingPredictionMAE).Warn("malformed mae blob, using zero state")
	}
	return s, nil
}

// SaveBiasMaeState writes both blobs.
func SaveBiasMaeState(ctx context.Context, settings SettingsStore, s BiasMaeState) error {
	bias, err := SerializeBiasBlob(s.Bias)
	if err != nil {
		return err
	}
	mae, err := SerializeMAEBlob(s.MAE)
	if err != nil {
		return err
	}
	if err := settings.SetSetting(ctx, SettingPredictionBias, bias); err != nil {
		return fmt.Errorf("save bias state: %w", err)
	}
	if err := settings.SetSetting(ctx, SettingPredictionMAE, mae); err != nil {
		return fmt.Errorf("save mae state: %w", err)
	}
	return nil
}
