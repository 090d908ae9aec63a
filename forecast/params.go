package forecast

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setting keys read from the key-value store.
const (
	SettingTargetRevenuePerHour = "target_revenue_per_person_hour"
	SettingShiftHours           = "shift_hours"
	SettingConservativeFactor   = "conservative_factor"
	SettingRevenueFloor         = "revenue_floor"
	SettingLatitude             = "restaurant_lat"
	SettingLongitude            = "restaurant_lon"
	SettingCountryCode          = "country_code"

	SettingPredictionBias = "prediction_bias"
	SettingPredictionMAE  = "prediction_mae"
)

// Params are the runtime tunables of one computation.
type Params struct {
	TargetRevenuePerHour float64
	ShiftHours           float64
	ConservativeFactor   float64
	RevenueFloor         float64
	Location             Location
	CountryCode          string
}

// DefaultParams returns the tunables used when nothing is configured.
func DefaultParams() Params {
	return Params{
		TargetRevenuePerHour: 50,
		ShiftHours:           4,
		ConservativeFactor:   0.97,
		RevenueFloor:         3000,
		CountryCode:          "ES",
	}
}

// settingRanges bounds every numeric tunable.
var settingRanges = map[string]func(float64) bool{
	SettingTargetRevenuePerHour: func(v float64) bool { return v > 0 },
	SettingShiftHours:           func(v float64) bool { return v > 0 },
	SettingConservativeFactor:   func(v float64) bool { return v > 0 && v <= 2 },
	SettingRevenueFloor:         func(v float64) bool { return v >= 0 },
	SettingLatitude:             func(v float64) bool { return v >= -90 && v <= 90 },
	SettingLongitude:            func(v float64) bool { return v >= -180 && v <= 180 },
}

// ValidateSetting checks a value before it is written. Unknown keys are
// accepted as free text; the learned-state keys are owned by evaluation and
// rejected. Errors wrap ErrInvalidSetting.
func ValidateSetting(key, raw string) error {
	switch key {
	case SettingPredictionBias, SettingPredictionMAE:
		return &SettingError{Key: key, Value: raw, Cause: errors.New("written by evaluation only")}
	case SettingCountryCode:
		if c := strings.TrimSpace(raw); len(c) < 2 {
			return &SettingError{Key: key, Value: raw, Cause: errors.New("expected an ISO country code")}
		}
		return nil
	}
	valid, ok := settingRanges[key]
	if !ok {
		return nil
	}
	v, err := ParseSettingFloat(raw)
	if err != nil {
		return &SettingError{Key: key, Value: raw, Cause: err}
	}
	if !valid(v) {
		return &SettingError{Key: key, Value: raw}
	}
	return nil
}

// LoadParams reads tunables from settings. Missing keys keep their default;
// unparsable or out-of-range values are logged and ignored.
func LoadParams(ctx context.Context, settings SettingsStore, log logrus.FieldLogger) Params {
	p := DefaultParams()
	if settings == nil {
		return p
	}
	log = componentLogger(log, "params")

	read := func(key string) (float64, bool) {
		raw, ok, err := settings.GetSetting(ctx, key)
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("setting read failed")
			return 0, false
		}
		if !ok || strings.TrimSpace(raw) == "" {
			return 0, false
		}
		if err := ValidateSetting(key, raw); err != nil {
			log.WithError(err).Warn("ignoring setting")
			return 0, false
		}
		v, _ := ParseSettingFloat(raw)
		return v, true
	}

	if v, ok := read(SettingTargetRevenuePerHour); ok {
		p.TargetRevenuePerHour = v
	}
	if v, ok := read(SettingShiftHours); ok {
		p.ShiftHours = v
	}
	if v, ok := read(SettingConservativeFactor); ok {
		p.ConservativeFactor = v
	}
	if v, ok := read(SettingRevenueFloor); ok {
		p.RevenueFloor = v
	}
	if v, ok := read(SettingLatitude); ok {
		p.Location.Lat = &v
	}
	if v, ok := read(SettingLongitude); ok {
		p.Location.Lon = &v
	}
	if raw, ok, err := settings.GetSetting(ctx, SettingCountryCode); err == nil && ok && strings.TrimSpace(raw) != "" {
		p.CountryCode = strings.ToUpper(strings.TrimSpace(raw))
	}
	return p
}

// ParseSettingFloat parses a finite number accepting ',' or '.' as decimal
// separator.
func ParseSettingFloat(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."), 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errors.New("expected a finite number")
	}
	return v, nil
}
