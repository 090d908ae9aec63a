package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// DAY LIST WIRE FORMAT
//
// Persisted day lists are decoded here once; the rest of the engine only
// sees DayForecast. Staffing is written both as explicit per-shift fields
// and as compact "M-T-N" strings; on read the explicit fields win and the
// compact form is the fallback when all three explicit values are zero.
// =============================================================================

type dayWire struct {
	Date        string  `json:"date"`
	DayName     string  `json:"day_name"`
	Revenue     float64 `json:"revenue"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Midday      float64 `json:"shift_midday"`
	Afternoon   float64 `json:"shift_afternoon"`
	Night       float64 `json:"shift_night"`
	ShiftSource string  `json:"shift_source,omitempty"`

	BaseRevenue *float64         `json:"revenue_base,omitempty"`
	Factors     *FactorBreakdown `json:"factors,omitempty"`
	Context     *DayContext      `json:"context,omitempty"`

	SalaMidday      int    `json:"staff_sala_midday,omitempty"`
	SalaAfternoon   int    `json:"staff_sala_afternoon,omitempty"`
	SalaNight       int    `json:"staff_sala_night,omitempty"`
	CocinaMidday    int    `json:"staff_cocina_midday,omitempty"`
	CocinaAfternoon int    `json:"staff_cocina_afternoon,omitempty"`
	CocinaNight     int    `json:"staff_cocina_night,omitempty"`
	SalaCompact     string `json:"staff_sala,omitempty"`
	CocinaCompact   string `json:"staff_cocina,omitempty"`
	StaffSource     string `json:"staff_source,omitempty"`
}

func toWire(d DayForecast) dayWire {
	w := dayWire{
		Date:        FormatDate(d.Date),
		DayName:     d.DayName,
		Revenue:     d.Revenue,
		Min:         d.Min,
		Max:         d.Max,
		Midday:      d.Shifts[0],
		Afternoon:   d.Shifts[1],
		Night:       d.Shifts[2],
		ShiftSource: d.ShiftSource,
		BaseRevenue: d.BaseRevenue,
		Factors:     d.Factors,
		Context:     d.Context,
	}
	if d.Staff != nil {
		s := d.Staff
		w.SalaMidday, w.SalaAfternoon, w.SalaNight = s.Sala[0], s.Sala[1], s.Sala[2]
		w.CocinaMidday, w.CocinaAfternoon, w.CocinaNight = s.Cocina[0], s.Cocina[1], s.Cocina[2]
		w.SalaCompact = s.Sala.String()
		w.CocinaCompact = s.Cocina.String()
		w.StaffSource = s.Source
	}
	return w
}

func fromWire(w dayWire) (DayForecast, error) {
	date, err := time.Parse(dateLayout, w.Date)
	if err != nil {
		if date, err = time.Parse(time.RFC3339, w.Date); err != nil {
			return DayForecast{}, fmt.Errorf("day date %q: %w", w.Date, err)
		}
		date = DateOf(date)
	}
	d := DayForecast{
		Date:        date,
		DayName:     w.DayName,
		Revenue:     w.Revenue,
		Min:         w.Min,
		Max:         w.Max,
		Shifts:      ShiftRevenue{w.Midday, w.Afternoon, w.Night},
		ShiftSource: w.ShiftSource,
		BaseRevenue: w.BaseRevenue,
		Factors:     w.Factors,
		Context:     w.Context,
	}
	if d.DayName == "" {
		d.DayName = DayName(WeekdayIndex(date))
	}

	sala := Triple{w.SalaMidday, w.SalaAfternoon, w.SalaNight}
	cocina := Triple{w.CocinaMidday, w.CocinaAfternoon, w.CocinaNight}
	if sala.IsZero() {
		sala, _ = ParseTriple(w.SalaCompact)
	}
	if cocina.IsZero() {
		cocina, _ = ParseTriple(w.CocinaCompact)
	}
	if !sala.IsZero() || !cocina.IsZero() {
		d.Staff = &StaffPlan{Sala: sala, Cocina: cocina, Source: w.StaffSource}
	}
	return d, nil
}

// MarshalJSON renders the day in its wire form, so API responses and saved
// day lists share one shape.
func (d DayForecast) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(d))
}

// UnmarshalJSON reads the wire form written by MarshalJSON.
func (d *DayForecast) UnmarshalJSON(b []byte) error {
	var w dayWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out, err := fromWire(w)
	if err != nil {
		return err
	}
	*d = out
	return nil
}

// EncodeDays serializes a per-day list.
func EncodeDays(days []DayForecast) (string, error) {
	wire := make([]dayWire, len(days))
	for i, d := range days {
		wire[i] = toWire(d)
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeDays parses a per-day list. Errors wrap ErrMalformedDays.
func DecodeDays(raw string) ([]DayForecast, error) {
	if raw == "" {
		return nil, &DecodeError{What: "days", Kind: ErrMalformedDays, Cause: errors.New("empty")}
	}
	var wire []dayWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, &DecodeError{What: "days", Kind: ErrMalformedDays, Cause: err}
	}
	days := make([]DayForecast, 0, len(wire))
	for _, w := range wire {
		d, err := fromWire(w)
		if err != nil {
			return nil, &DecodeError{What: "days", Kind: ErrMalformedDays, Cause: err}
		}
		days = append(days, d)
	}
	return days, nil
}

// =============================================================================
// RECORD CONVERSION
// =============================================================================

// ToRecord converts a forecast to its persisted form.
func ToRecord(f WeeklyForecast) (ForecastRecord, error) {
	days, err := EncodeDays(f.Days)
	if err != nil {
		return ForecastRecord{}, err
	}
	total := f.Total
	rec := ForecastRecord{
		WeekStart:        MondayOf(f.WeekStart),
		PredictedRevenue: &total,
		DaysJSON:         days,
		ActualRevenue:    f.ActualRevenue,
		CompletedAt:      f.CompletedAt,
	}
	if f.Accuracy != nil {
		b, err := json.Marshal(f.Accuracy)
		if err != nil {
			return ForecastRecord{}, err
		}
		rec.AccuracyJSON = string(b)
	}
	if f.StaffAccuracy != nil {
		b, err := json.Marshal(f.StaffAccuracy)
		if err != nil {
			return ForecastRecord{}, err
		}
		rec.StaffAccuracyJSON = string(b)
	}
	return rec, nil
}

// FromRecord converts a persisted record. A malformed day list leaves Days
// empty and is returned as the error alongside the otherwise usable value.
func FromRecord(rec ForecastRecord) (WeeklyForecast, error) {
	f := WeeklyForecast{
		WeekStart:     rec.WeekStart,
		ActualRevenue: rec.ActualRevenue,
		CompletedAt:   rec.CompletedAt,
		Saved:         true,
	}
	if rec.PredictedRevenue != nil {
		f.Total = *rec.PredictedRevenue
	}
	if rec.AccuracyJSON != "" {
		var m AccuracyMetrics
		if json.Unmarshal([]byte(rec.AccuracyJSON), &m) == nil {
			f.Accuracy = &m
		}
	}
	if rec.StaffAccuracyJSON != "" {
		var s StaffAccuracyReport
		if json.Unmarshal([]byte(rec.StaffAccuracyJSON), &s) == nil {
			f.StaffAccuracy = &s
		}
	}
	days, err := DecodeDays(rec.DaysJSON)
	if err != nil {
		return f, err
	}
	f.Days = days
	return f, nil
}
