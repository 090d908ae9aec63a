/*
types.go - Core domain types for the forecasting engine

PURPOSE:
  Defines the record model read from history (DailyRecord, ShiftRecord),
  the produced forecast model (WeeklyForecast, DayForecast) and the small
  value types they are built from (Shift, Triple, ShiftRevenue).

KEY INVARIANTS:
  - Day-of-week index is Monday=0 ... Sunday=6 everywhere (see WeekdayIndex).
  - The shift set is fixed and ordered: Midday, Afternoon, Night.
  - Missing shift or day records are absent samples, never zeros.
  - Snapped headcounts in a StaffPlan are integers in [1,3].

SEE ALSO:
  - codec.go: Wire format for persisted per-day lists
  - store.go: Contracts that produce and consume these types
*/
package forecast

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SHIFTS
// =============================================================================

// Shift is one of the three fixed daily service periods.
type Shift string

const (
	ShiftMidday    Shift = "Midday"
	ShiftAfternoon Shift = "Afternoon"
	ShiftNight     Shift = "Night"
)

// Shifts lists the shift set in its canonical order.
var Shifts = [3]Shift{ShiftMidday, ShiftAfternoon, ShiftNight}

// Index returns the position of the shift in Shifts, or -1.
func (s Shift) Index() int {
	for i, sh := range Shifts {
		if sh == s {
			return i
		}
	}
	return -1
}

// ParseShift normalizes a shift name. Spanish labels used by the
// recording workflow ("Mediodía", "Tarde", "Noche") are accepted too.
func ParseShift(name string) (Shift, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "midday", "mediodia", "mediodía", "comida":
		return ShiftMidday, true
	case "afternoon", "tarde":
		return ShiftAfternoon, true
	case "night", "noche", "cena":
		return ShiftNight, true
	}
	return "", false
}

// ShiftRevenue holds one value per shift, indexed by Shift.Index().
type ShiftRevenue [3]float64

// Sum returns the total across shifts.
func (r ShiftRevenue) Sum() float64 { return r[0] + r[1] + r[2] }

// Triple is a per-shift headcount (Midday, Afternoon, Night).
type Triple [3]int

// String renders the compact "M-T-N" form.
func (t Triple) String() string {
	return fmt.Sprintf("%d-%d-%d", t[0], t[1], t[2])
}

// Sum returns the total headcount across shifts.
func (t Triple) Sum() int { return t[0] + t[1] + t[2] }

// IsZero reports whether no headcount was set.
func (t Triple) IsZero() bool { return t == Triple{} }

// ParseTriple parses the compact "M-T-N" form.
func ParseTriple(s string) (Triple, bool) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return Triple{}, false
	}
	var t Triple
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Triple{}, false
		}
		t[i] = n
	}
	return t, true
}

// =============================================================================
// HISTORY RECORDS (read-only to the engine)
// =============================================================================

// Weather is a daily or per-shift weather summary. Every measurement is
// optional because providers and manual entries fill them unevenly.
type Weather struct {
	Code        *int     `json:"code,omitempty"`
	Description string   `json:"description,omitempty"`
	TempMax     *float64 `json:"temp_max,omitempty"`
	TempMin     *float64 `json:"temp_min,omitempty"`
	PrecipMm    *float64 `json:"precip_mm,omitempty"`
	WindMaxKmh  *float64 `json:"wind_max_kmh,omitempty"`
}

// IsRainy reports rain from the weather code or at least 0.5mm of precipitation.
func (w *Weather) IsRainy() bool {
	if w == nil {
		return false
	}
	if w.Code != nil && IsPrecipitationCode(*w.Code) {
		return true
	}
	return w.PrecipMm != nil && *w.PrecipMm >= 0.5
}

// Temperature returns the representative temperature (max, else min).
func (w *Weather) Temperature() (float64, bool) {
	if w == nil {
		return 0, false
	}
	if w.TempMax != nil {
		return *w.TempMax, true
	}
	if w.TempMin != nil {
		return *w.TempMin, true
	}
	return 0, false
}

// HasExtremeTemperature reports whether the max or the min falls outside
// the mild range.
func (w *Weather) HasExtremeTemperature() bool {
	if w == nil {
		return false
	}
	if w.TempMax != nil && IsExtremeTemperature(*w.TempMax) {
		return true
	}
	return w.TempMin != nil && IsExtremeTemperature(*w.TempMin)
}

// IsPrecipitationCode reports whether a WMO weather code describes
// drizzle, rain, snow, showers or thunderstorms.
func IsPrecipitationCode(code int) bool {
	switch {
	case code >= 51 && code <= 67:
		return true
	case code >= 71 && code <= 77:
		return true
	case code >= 80 && code <= 82:
		return true
	case code == 95 || code == 96:
		return true
	}
	return false
}

// IsExtremeTemperature reports temperatures below 5°C or above 30°C.
func IsExtremeTemperature(t float64) bool { return t < 5 || t > 30 }

// IsMildTemperature reports temperatures in [15,25]°C.
func IsMildTemperature(t float64) bool { return t >= 15 && t <= 25 }

// FeedbackAnswers are the five categorical answers recorded per shift.
type FeedbackAnswers struct {
	Volume     string `json:"q1_volume,omitempty"`
	Rhythm     string `json:"q2_rhythm,omitempty"`
	Margin     string `json:"q3_margin,omitempty"`
	Difficulty string `json:"q4_difficulty,omitempty"`
	Kitchen    string `json:"q5_kitchen,omitempty"`
}

// ShiftRecord is one shift of a recorded day.
type ShiftRecord struct {
	ID          string
	Date        time.Time
	Shift       Shift
	Revenue     float64
	HoursWorked float64
	StaffSala   int
	StaffCocina int
	Feedback    FeedbackAnswers

	// Derived by the recording workflow.
	Difficulty        *float64
	KitchenDifficulty *float64
	ComfortLevel      string
	RevenuePerSala    *float64
	RevenuePerCocina  *float64

	Weather *Weather
}

// DailyRecord is one recorded day with its shifts.
type DailyRecord struct {
	Date         time.Time
	Revenue      float64
	HoursWorked  float64
	TotalStaff   int
	Weather      *Weather
	IsHoliday    bool
	FeedbackOnly bool
	Notes        string
	Shifts       []ShiftRecord
}

// Qualifies reports whether the day carries usable financials.
func (d DailyRecord) Qualifies() bool {
	return !d.FeedbackOnly && d.Revenue > 0 && d.HoursWorked > 0
}

// =============================================================================
// PROVIDER DATA
// =============================================================================

// Location of the restaurant. Both coordinates are required for weather.
type Location struct {
	Lat *float64
	Lon *float64
}

// Valid reports whether both coordinates are set.
func (l Location) Valid() bool { return l.Lat != nil && l.Lon != nil }

// WeatherDay is a provider forecast or archive entry for one date.
type WeatherDay struct {
	Date    time.Time
	Weather Weather
}

// Holiday is a public holiday on a date.
type Holiday struct {
	Date time.Time
	Name string
}

// Event impact labels.
const (
	ImpactHigh   = "Alto"
	ImpactMedium = "Medio"
	ImpactLow    = "Bajo"
)

// DemandEvent is a manually entered event that may shift demand.
type DemandEvent struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Name        string    `json:"name"`
	Impact      string    `json:"impact"`
	Description string    `json:"description,omitempty"`
}

// ComfortLimits maps headcount schemas to €/worker comfort limits.
// Sala is keyed by "S-C" schema, Cocina by the cook count ("1","2","3").
type ComfortLimits struct {
	Sala   map[string]float64
	Cocina map[string]float64
}

// =============================================================================
// PRODUCED FORECAST
// =============================================================================

// Recommendation provenance tags.
const (
	SourceHistoric  = "historic"
	SourceHeuristic = "heuristic"
	SourceMixed     = "mixed"
	SourceDefault   = "default"
)

// FactorBreakdown explains the enrichment multiplier of a day.
type FactorBreakdown struct {
	Weather     float64 `json:"weather"`
	Holiday     float64 `json:"holiday"`
	Temperature float64 `json:"temperature"`
	Event       float64 `json:"event"`
	Total       float64 `json:"total"`
}

// DayContext is the external context attached to an enriched day.
type DayContext struct {
	Weather     *Weather `json:"weather,omitempty"`
	IsRainy     bool     `json:"is_rainy"`
	IsHoliday   bool     `json:"is_holiday"`
	HolidayName string   `json:"holiday_name,omitempty"`
	Events      []string `json:"events,omitempty"`
}

// StaffPlan is the recommended headcount of a day.
type StaffPlan struct {
	Sala   Triple
	Cocina Triple
	Source string
}

// DayForecast is one day of a weekly forecast.
type DayForecast struct {
	Date        time.Time
	DayName     string
	Revenue     float64
	Min         float64
	Max         float64
	Shifts      ShiftRevenue
	ShiftSource string

	// Set once enrichment ran.
	BaseRevenue *float64
	Factors     *FactorBreakdown
	Context     *DayContext

	// Set once staffing ran.
	Staff *StaffPlan
}

// WeeklyForecast is the forecast for the week starting at WeekStart (a Monday).
type WeeklyForecast struct {
	WeekStart time.Time
	Total     float64
	Days      []DayForecast
	WeeksUsed int
	Saved     bool

	// Set once the week is evaluated.
	ActualRevenue *float64
	CompletedAt   *time.Time
	Accuracy      *AccuracyMetrics
	StaffAccuracy *StaffAccuracyReport
}

// IsEmpty reports the "no prediction" sentinel.
func (f WeeklyForecast) IsEmpty() bool { return len(f.Days) == 0 }

// SumDays recomputes Total from the per-day estimates.
func (f *WeeklyForecast) SumDays() {
	var total float64
	for _, d := range f.Days {
		total += d.Revenue
	}
	f.Total = round2(total)
}

// =============================================================================
// EVALUATION RESULTS
// =============================================================================

// AccuracyMetrics compares a forecast week against its realized revenue.
type AccuracyMetrics struct {
	OverallErrorPct  float64 `json:"overall_error_percent"`
	AccuracyPct      float64 `json:"accuracy_percent"`
	ActualRevenue    float64 `json:"actual_revenue"`
	PredictedRevenue float64 `json:"predicted_revenue"`
}

// StaffAccuracyDay is the per-day detail of a staffing comparison.
type StaffAccuracyDay struct {
	Date         string  `json:"date"`
	MAE          float64 `json:"sala_mae_day"`
	ExactMatches int     `json:"exact_match"`
}

// StaffAccuracyReport compares recommended against actual headcounts.
type StaffAccuracyReport struct {
	MAE           float64            `json:"sala_mae"`
	Comparisons   int                `json:"comparisons_count"`
	ExactMatchPct float64            `json:"exact_match_pct"`
	ByDay         []StaffAccuracyDay `json:"by_day"`
}

// EvaluationReport is the result of evaluating one closed week.
type EvaluationReport struct {
	WeekStart   time.Time
	Accuracy    AccuracyMetrics
	Staff       *StaffAccuracyReport
	BiasUpdated bool
	DaysLearned int
}

// =============================================================================
// DETECTED PATTERNS
// =============================================================================

// PatternType names a kind of mined pattern.
type PatternType string

const (
	PatternRainImpact        PatternType = "rain_impact"
	PatternHolidayImpact     PatternType = "holiday_impact"
	PatternTemperatureImpact PatternType = "temperature_impact"
	PatternWeekdaySeasonal   PatternType = "weekday_seasonal"
)

// DetectedPattern is a mined pattern row. At most one exists per (Type, Key).
type DetectedPattern struct {
	ID         string
	Type       PatternType
	Key        string
	Payload    []byte
	Confidence float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ImpactPayload is the payload of the rain, holiday and temperature patterns.
// "With" is the condition group (rainy, holiday, extreme).
type ImpactPayload struct {
	PctDiff      float64 `json:"pct_diff"`
	Factor       float64 `json:"factor"`
	AvgWith      float64 `json:"avg_with"`
	AvgWithout   float64 `json:"avg_without"`
	CountWith    int     `json:"count_with"`
	CountWithout int     `json:"count_without"`
}

// EffectiveFactor is the stored factor clamped to the range enrichment trusts.
func (p ImpactPayload) EffectiveFactor() float64 {
	f := p.Factor
	if f == 0 || math.IsNaN(f) {
		f = 1 + p.PctDiff/100
	}
	return clamp(f, 0.90, 1.10)
}

// WeekdayPayload is the payload of a weekday seasonal pattern.
type WeekdayPayload struct {
	Weekday    int     `json:"weekday"`
	AvgRevenue float64 `json:"avg_revenue"`
	StdDev     float64 `json:"std_dev"`
	Count      int     `json:"count"`
}
