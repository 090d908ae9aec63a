/*
Package analytics aggregates recorded shifts into comfort limits.

PURPOSE:
  For every staffing schema, groups shifts into bands of revenue per worker
  and reports how hard those shifts felt. The comfort limit of a schema is
  the lower edge of the first band whose mean difficulty reaches 3.5: the
  €/worker at which the team usually starts to struggle.

  Sala schemas are keyed "S-C" (waiters-cooks) and use the floor difficulty.
  Cocina schemas are keyed by the cook count and use the kitchen difficulty.

SEE ALSO:
  - forecast/staffing.go: consumes ComfortLimits
  - scoring/feedback.go:  difficulty from questionnaire answers
*/
package analytics

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/shift-forecast/forecast"
	"github.com/warp/shift-forecast/logging"
	"github.com/warp/shift-forecast/scoring"
)

const (
	// DefaultMinShifts is the smallest group that yields a limit.
	DefaultMinShifts = 3

	difficultThreshold = 4.0
	limitThreshold     = 3.5
)

// BandEdges are the €/worker band boundaries. The last band is open-ended
// in practice.
var BandEdges = []float64{0, 400, 500, 600, 700, 800, 1000, 9999}

// SalaSchemas are reported in this order.
var SalaSchemas = []string{"1-1", "1-2", "2-1", "2-2", "2-3", "3-2", "3-3"}

// =============================================================================
// REPORT
// =============================================================================

// Band is one band definition.
type Band struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// BandItem aggregates the shifts of a schema falling in one band.
type BandItem struct {
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	Count         int     `json:"count"`
	AvgDifficulty float64 `json:"avg_difficulty"`
	PctDifficult  float64 `json:"pct_difficult"`
}

// SchemaReport is the band breakdown of one schema.
type SchemaReport struct {
	Schema       string     `json:"schema"`
	Bands        []BandItem `json:"bands"`
	ComfortLimit *float64   `json:"comfort_limit_approx"`
}

// Report is the full comfort breakdown.
type Report struct {
	Schemas       []SchemaReport `json:"schemas"`
	CocinaSchemas []SchemaReport `json:"cocina_schemas"`
	Bands         []Band         `json:"bands"`
}

// Limits flattens the report into the form the staffing stage consumes.
func (r Report) Limits() forecast.ComfortLimits {
	out := forecast.ComfortLimits{
		Sala:   make(map[string]float64),
		Cocina: make(map[string]float64),
	}
	for _, s := range r.Schemas {
		if s.ComfortLimit != nil && *s.ComfortLimit > 0 {
			out.Sala[s.Schema] = *s.ComfortLimit
		}
	}
	for _, s := range r.CocinaSchemas {
		if s.ComfortLimit != nil && *s.ComfortLimit > 0 {
			out.Cocina[s.Schema] = *s.ComfortLimit
		}
	}
	return out
}

// =============================================================================
// SERVICE
// =============================================================================

// Comfort computes comfort reports from recorded history. It satisfies
// forecast.ComfortAnalytics.
type Comfort struct {
	Records   forecast.HistoricalRecords
	MinShifts int
	Log       logrus.FieldLogger
}

var _ forecast.ComfortAnalytics = (*Comfort)(nil)

// NewComfort returns a Comfort over records with the default group size.
func NewComfort(records forecast.HistoricalRecords) *Comfort {
	return &Comfort{Records: records, MinShifts: DefaultMinShifts}
}

// sample is one shift reduced to the two numbers a band needs.
type sample struct {
	perWorker  float64
	difficulty float64
}

// Report aggregates every recorded shift. minShifts <= 0 uses the
// configured group size.
func (c *Comfort) Report(ctx context.Context, minShifts int) (Report, error) {
	if minShifts <= 0 {
		minShifts = c.MinShifts
	}
	if minShifts <= 0 {
		minShifts = DefaultMinShifts
	}

	days, err := c.Records.DailyRecords(ctx, time.Time{}, time.Time{})
	if err != nil {
		return Report{}, fmt.Errorf("load history: %w", err)
	}

	sala := make(map[string][]sample)
	cocina := make(map[string][]sample)
	for _, d := range days {
		for _, sh := range d.Shifts {
			if s, ok := salaSample(sh); ok {
				key := fmt.Sprintf("%d-%d", sh.StaffSala, sh.StaffCocina)
				sala[key] = append(sala[key], s)
			}
			if s, ok := cocinaSample(sh); ok {
				key := strconv.Itoa(sh.StaffCocina)
				cocina[key] = append(cocina[key], s)
			}
		}
	}

	rep := Report{Bands: bandDefinitions()}
	for _, key := range SalaSchemas {
		samples := sala[key]
		if len(samples) < minShifts {
			rep.Schemas = append(rep.Schemas, SchemaReport{Schema: key, Bands: []BandItem{}})
			continue
		}
		rep.Schemas = append(rep.Schemas, aggregate(key, samples))
	}

	keys := make([]string, 0, len(cocina))
	for k := range cocina {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if len(cocina[key]) < minShifts {
			continue
		}
		rep.CocinaSchemas = append(rep.CocinaSchemas, aggregate(key, cocina[key]))
	}

	logger(c.Log).WithFields(logrus.Fields{
		"days":           len(days),
		"sala_schemas":   len(sala),
		"cocina_schemas": len(rep.CocinaSchemas),
	}).Debug("comfort report computed")
	return rep, nil
}

// ComfortLimits implements forecast.ComfortAnalytics.
func (c *Comfort) ComfortLimits(ctx context.Context) (forecast.ComfortLimits, error) {
	rep, err := c.Report(ctx, 0)
	if err != nil {
		return forecast.ComfortLimits{}, err
	}
	return rep.Limits(), nil
}

// =============================================================================
// AGGREGATION
// =============================================================================

func salaSample(sh forecast.ShiftRecord) (sample, bool) {
	if sh.StaffSala <= 0 {
		return sample{}, false
	}
	perWorker, ok := perWorker(sh.RevenuePerSala, sh.Revenue, sh.StaffSala)
	if !ok {
		return sample{}, false
	}
	diff := sh.Difficulty
	if diff == nil {
		if v, ok := scoring.Difficulty(answers(sh.Feedback)); ok {
			diff = &v
		}
	}
	if diff == nil {
		return sample{}, false
	}
	return sample{perWorker: perWorker, difficulty: *diff}, true
}

func cocinaSample(sh forecast.ShiftRecord) (sample, bool) {
	if sh.StaffCocina <= 0 {
		return sample{}, false
	}
	perWorker, ok := perWorker(sh.RevenuePerCocina, sh.Revenue, sh.StaffCocina)
	if !ok {
		return sample{}, false
	}
	diff := sh.KitchenDifficulty
	if diff == nil {
		if v, ok := scoring.KitchenDifficulty(answers(sh.Feedback)); ok {
			diff = &v
		}
	}
	if diff == nil {
		return sample{}, false
	}
	return sample{perWorker: perWorker, difficulty: *diff}, true
}

// perWorker prefers the stored figure and otherwise derives it from the
// shift revenue.
func perWorker(stored *float64, revenue float64, staff int) (float64, bool) {
	if stored != nil {
		return *stored, true
	}
	if revenue <= 0 || staff <= 0 {
		return 0, false
	}
	return revenue / float64(staff), true
}

func answers(f forecast.FeedbackAnswers) scoring.Answers {
	return scoring.Answers{
		Volume:     f.Volume,
		Rhythm:     f.Rhythm,
		Margin:     f.Margin,
		Difficulty: f.Difficulty,
		Kitchen:    f.Kitchen,
	}
}

func aggregate(schema string, samples []sample) SchemaReport {
	out := SchemaReport{Schema: schema, Bands: []BandItem{}}
	for i := 0; i+1 < len(BandEdges); i++ {
		lo, hi := BandEdges[i], BandEdges[i+1]
		var sum float64
		var n, difficult int
		for _, s := range samples {
			if s.perWorker < lo || s.perWorker >= hi {
				continue
			}
			sum += s.difficulty
			n++
			if s.difficulty >= difficultThreshold {
				difficult++
			}
		}
		if n == 0 {
			continue
		}
		avg := sum / float64(n)
		out.Bands = append(out.Bands, BandItem{
			Min:           lo,
			Max:           hi,
			Count:         n,
			AvgDifficulty: round(avg, 2),
			PctDifficult:  round(100*float64(difficult)/float64(n), 1),
		})
		if out.ComfortLimit == nil && avg >= limitThreshold {
			limit := lo
			out.ComfortLimit = &limit
		}
	}
	return out
}

func bandDefinitions() []Band {
	out := make([]Band, 0, len(BandEdges)-1)
	for i := 0; i+1 < len(BandEdges); i++ {
		out = append(out, Band{Min: BandEdges[i], Max: BandEdges[i+1]})
	}
	return out
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func logger(l logrus.FieldLogger) logrus.FieldLogger {
	if l != nil {
		return l
	}
	return logging.Component("comfort")
}
