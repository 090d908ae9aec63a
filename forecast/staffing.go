/*
staffing.go - Sala / cocina headcount recommendation

PURPOSE:
  Turns per-shift revenue into a recommended sala (floor) and cocina
  (kitchen) headcount for each shift of a day.

PIPELINE (per shift):
  1. Minimum total headcount from tiered productivity thresholds.
  2. Split into sala/cocina: historic ratio when the (weekday, shift) has at
     least 2 samples, else the shift-aware table in package scoring.
  3. Resolve: historic medians scaled by revenue ratio, else the smallest
     comfort schema, never below the minimum.
  4. Days under the revenue floor cap both roles at 2.
  Then the day's triples are snapped to the allowed-combination tables.

  Sizing uses the lower band of the forecast, scaling the shift figures by
  min/revenue.

SEE ALSO:
  - scoring/headcount.go: Total -> (sala, cocina) tables
  - analytics/comfort.go: Comfort limits
*/
package forecast

import (
	"context"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/shift-forecast/scoring"
)

const (
	maxTotalHeadcount   = 6
	minRoleHeadcount    = 1
	maxRoleHeadcount    = 3
	floorRoleHeadcount  = 2
	minHistoricSamples  = 2
	staffHistoryDays    = 84
	defaultComfortLimit = 350
	comfortMargin       = 1.05
	minHistoricScale    = 0.7
	maxHistoricScale    = 1.6
	tierStepMultiplier  = 1.5
)

// =============================================================================
// ALLOWED COMBINATIONS - product decision, keep as literal data
// =============================================================================

// AllowedSala lists the sala triples a plan may use.
var AllowedSala = []Triple{
	{1, 1, 1}, {1, 1, 2}, {2, 1, 2}, {2, 2, 2}, {1, 2, 1},
	{2, 1, 1}, {3, 1, 3}, {1, 2, 3}, {3, 1, 2}, {3, 2, 2},
}

// AllowedCocina lists the cocina triples a plan may use.
var AllowedCocina = []Triple{
	{1, 1, 1}, {2, 1, 2}, {1, 1, 2}, {2, 2, 2}, {3, 1, 3}, {1, 2, 3}, {3, 2, 2},
}

// Schema is a (sala, cocina) headcount pair for one shift.
type Schema struct {
	Sala   int
	Cocina int
}

// Key renders the "S-C" form used by comfort analytics.
func (s Schema) Key() string { return strconv.Itoa(s.Sala) + "-" + strconv.Itoa(s.Cocina) }

// AllowedSchemas are the per-shift schemas tried by the comfort fallback,
// smallest first.
var AllowedSchemas = []Schema{{1, 1}, {1, 2}, {2, 1}, {2, 2}, {2, 3}, {3, 2}, {3, 3}}

// =============================================================================
// HISTORIC PROFILE
// =============================================================================

// HistoricStaff is the observed staffing of a (weekday, shift).
type HistoricStaff struct {
	Sala       int
	Cocina     int
	AvgRevenue float64
	Samples    int
}

type staffKey struct {
	weekday int
	shift   Shift
}

// StaffProfile maps (weekday, shift) to observed staffing.
type StaffProfile map[staffKey]HistoricStaff

// Lookup returns the profile entry, or nil when it has too few samples.
func (p StaffProfile) Lookup(weekday int, shift Shift) *HistoricStaff {
	h, ok := p[staffKey{weekday, shift}]
	if !ok {
		return nil
	}
	return &h
}

// BuildStaffProfile aggregates shift rows with known headcounts. Feedback-only
// days contribute their headcounts but not revenue.
func BuildStaffProfile(days []DailyRecord) StaffProfile {
	type acc struct {
		sala, cocina []int
		revenues     []float64
	}
	groups := make(map[staffKey]*acc)
	for _, d := range days {
		wd := WeekdayIndex(d.Date)
		for _, s := range d.Shifts {
			if s.Shift.Index() < 0 || s.StaffSala < 0 || s.StaffCocina < 0 {
				continue
			}
			staffed := s.StaffSala > 0 || s.StaffCocina > 0
			if s.Revenue <= 0 && !(d.FeedbackOnly && staffed) {
				continue
			}
			k := staffKey{wd, s.Shift}
			a, ok := groups[k]
			if !ok {
				a = &acc{}
				groups[k] = a
			}
			a.sala = append(a.sala, s.StaffSala)
			a.cocina = append(a.cocina, s.StaffCocina)
			if s.Revenue > 0 {
				a.revenues = append(a.revenues, s.Revenue)
			}
		}
	}

	profile := make(StaffProfile)
	for k, a := range groups {
		if len(a.sala) < minHistoricSamples {
			continue
		}
		profile[k] = HistoricStaff{
			Sala:       clampInt(medianInt(a.sala), minRoleHeadcount, maxRoleHeadcount),
			Cocina:     clampInt(medianInt(a.cocina), minRoleHeadcount, maxRoleHeadcount),
			AvgRevenue: mean(a.revenues),
			Samples:    len(a.sala),
		}
	}
	return profile
}

// medianInt uses the integer average of the middle pair for even counts.
func medianInt(xs []int) int {
	if len(xs) == 0 {
		return 0
	}
	s := append([]int(nil), xs...)
	sort.Ints(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// =============================================================================
// PER-SHIFT RULES
// =============================================================================

// MinHeadcount is the minimum total headcount for a shift's revenue. The
// first threshold is targetPerHour × shiftHours; each further threshold
// adds 1.5 times that amount.
func MinHeadcount(revenue, targetPerHour, shiftHours float64) int {
	if targetPerHour <= 0 || shiftHours <= 0 {
		return 1
	}
	first := targetPerHour * shiftHours
	step := tierStepMultiplier * first
	n, threshold := 1, first
	for n < maxTotalHeadcount && revenue >= threshold {
		n++
		threshold += step
	}
	return n
}

// MinStaffByProductivity splits a minimum total into sala and cocina.
func MinStaffByProductivity(total int, shift Shift, dayRevenue float64, hist *HistoricStaff, revenueFloor float64) (sala, cocina int) {
	afternoon := shift == ShiftAfternoon
	if hist != nil && hist.Sala+hist.Cocina > 0 {
		ratio := float64(hist.Sala) / float64(hist.Sala+hist.Cocina)
		sala = int(math.Ceil(float64(total) * ratio))
		cocina = total - sala
		if cocina < 1 {
			cocina = 1
			sala = total - 1
		}
		sala = max(1, sala)
		half := int(math.Ceil(float64(total) / 2))
		if afternoon && cocina > sala {
			sala = half
			cocina = total - sala
		} else if !afternoon && sala > cocina {
			cocina = half
			sala = total - cocina
		}
	} else {
		sala, cocina = scoring.SplitHeadcount(total, afternoon)
	}
	if dayRevenue < revenueFloor {
		sala = min(sala, floorRoleHeadcount)
		cocina = min(cocina, floorRoleHeadcount)
	}
	return clampInt(sala, minRoleHeadcount, maxRoleHeadcount), clampInt(cocina, minRoleHeadcount, maxRoleHeadcount)
}

// ComfortSchema returns the smallest allowed schema keeping revenue per
// worker within the comfort limits (default 350) plus a 5% margin.
func ComfortSchema(revenue float64, limits ComfortLimits) (Schema, bool) {
	for _, s := range AllowedSchemas {
		limS, ok := limits.Sala[s.Key()]
		if !ok || limS <= 0 {
			limS = defaultComfortLimit
		}
		limC, ok := limits.Cocina[strconv.Itoa(s.Cocina)]
		if !ok || limC <= 0 {
			limC = defaultComfortLimit
		}
		if revenue/float64(s.Sala) <= limS*comfortMargin && revenue/float64(s.Cocina) <= limC*comfortMargin {
			return s, true
		}
	}
	return Schema{}, false
}

// ResolveShift picks the headcount of one shift given its minimums.
func ResolveShift(revenue float64, minSala, minCocina int, hist *HistoricStaff, limits ComfortLimits) (sala, cocina int, source string) {
	fit := func(v, floor int) int {
		return clampInt(max(v, floor), minRoleHeadcount, maxRoleHeadcount)
	}
	if hist != nil {
		sala, cocina = hist.Sala, hist.Cocina
		if hist.AvgRevenue > 0 && revenue > 0 {
			r := clamp(revenue/hist.AvgRevenue, minHistoricScale, maxHistoricScale)
			sala = clampInt(roundHalfAway(float64(sala)*r), minRoleHeadcount, maxRoleHeadcount)
			cocina = clampInt(roundHalfAway(float64(cocina)*r), minRoleHeadcount, maxRoleHeadcount)
		}
		return fit(sala, minSala), fit(cocina, minCocina), SourceHistoric
	}
	if s, ok := ComfortSchema(revenue, limits); ok {
		return fit(s.Sala, minSala), fit(s.Cocina, minCocina), SourceHeuristic
	}
	return fit(minSala, minRoleHeadcount), fit(minCocina, minRoleHeadcount), SourceHeuristic
}

// =============================================================================
// SNAPPING
// =============================================================================

var shiftPairs = [3][2]int{{0, 1}, {0, 2}, {1, 2}}

// consistentWith reports whether t never gives a shift fewer staff than a
// shift with no more revenue.
func consistentWith(t Triple, rev ShiftRevenue) bool {
	for _, p := range shiftPairs {
		a, b := p[0], p[1]
		if rev[a] >= rev[b] && t[a] < t[b] {
			return false
		}
		if rev[b] >= rev[a] && t[b] < t[a] {
			return false
		}
	}
	return true
}

func covers(t, minimum Triple) bool {
	return t[0] >= minimum[0] && t[1] >= minimum[1] && t[2] >= minimum[2]
}

func manhattan(a, b Triple) int {
	d := 0
	for i := range a {
		if a[i] > b[i] {
			d += a[i] - b[i]
		} else {
			d += b[i] - a[i]
		}
	}
	return d
}

// Snap picks the allowed triple for computed minimums. Candidates must be
// consistent with the revenue ordering; among those covering the minimums
// the smallest total wins (then distance), otherwise the closest (then
// smallest total). Ties keep table order.
func Snap(minimum Triple, allowed []Triple, rev ShiftRevenue) Triple {
	var pool []Triple
	for _, t := range allowed {
		if consistentWith(t, rev) {
			pool = append(pool, t)
		}
	}
	if len(pool) == 0 {
		pool = allowed
	}
	if len(pool) == 0 {
		return minimum
	}

	var covering []Triple
	for _, t := range pool {
		if covers(t, minimum) {
			covering = append(covering, t)
		}
	}
	if len(covering) > 0 {
		return best(covering, func(a, b Triple) bool {
			if a.Sum() != b.Sum() {
				return a.Sum() < b.Sum()
			}
			return manhattan(a, minimum) < manhattan(b, minimum)
		})
	}
	return best(pool, func(a, b Triple) bool {
		da, db := manhattan(a, minimum), manhattan(b, minimum)
		if da != db {
			return da < db
		}
		return a.Sum() < b.Sum()
	})
}

func best(ts []Triple, less func(a, b Triple) bool) Triple {
	out := ts[0]
	for _, t := range ts[1:] {
		if less(t, out) {
			out = t
		}
	}
	return out
}

// =============================================================================
// DAY PLANNING
// =============================================================================

// PlanDay computes the staff plan of one forecast day.
func PlanDay(d DayForecast, profile StaffProfile, limits ComfortLimits, p Params) StaffPlan {
	sizing, dayRevenue := d.Shifts, d.Revenue
	if d.Min > 0 && d.Revenue > 0 {
		sizing = scaleShifts(d.Shifts, d.Min/d.Revenue)
		dayRevenue = d.Min
	}
	wd := WeekdayIndex(d.Date)

	var sala, cocina Triple
	historic := 0
	for i, sh := range Shifts {
		rev := sizing[i]
		hist := profile.Lookup(wd, sh)
		minS, minC := MinStaffByProductivity(MinHeadcount(rev, p.TargetRevenuePerHour, p.ShiftHours), sh, dayRevenue, hist, p.RevenueFloor)
		s, c, src := ResolveShift(rev, minS, minC, hist, limits)
		if dayRevenue < p.RevenueFloor {
			s, c = min(s, floorRoleHeadcount), min(c, floorRoleHeadcount)
		}
		if src == SourceHistoric {
			historic++
		}
		sala[i], cocina[i] = s, c
	}

	source := SourceHeuristic
	switch {
	case historic == len(Shifts):
		source = SourceHistoric
	case historic > 0:
		source = SourceMixed
	}
	return StaffPlan{
		Sala:   Snap(sala, AllowedSala, sizing),
		Cocina: Snap(cocina, AllowedCocina, sizing),
		Source: source,
	}
}

// StaffRecommender attaches staff plans to forecast days.
type StaffRecommender struct {
	Records HistoricalRecords
	Comfort ComfortAnalytics
	Log     logrus.FieldLogger
}

// Recommend plans every day using the 12 weeks of history up to asOf.
// Missing history or comfort limits degrade to the heuristic rules.
func (r *StaffRecommender) Recommend(ctx context.Context, days []DayForecast, p Params, asOf time.Time) []DayForecast {
	log := componentLogger(r.Log, "staffing")
	if p.TargetRevenuePerHour <= 0 {
		p.TargetRevenuePerHour = DefaultParams().TargetRevenuePerHour
	}
	if p.ShiftHours <= 0 {
		p.ShiftHours = DefaultParams().ShiftHours
	}

	var profile StaffProfile
	if r.Records != nil {
		to := DateOf(asOf)
		history, err := r.Records.DailyRecords(ctx, to.AddDate(0, 0, -staffHistoryDays), to)
		if err != nil {
			log.WithError(err).Warn("staff history unavailable, using heuristics")
		}
		profile = BuildStaffProfile(history)
	}

	var limits ComfortLimits
	if r.Comfort != nil {
		l, err := r.Comfort.ComfortLimits(ctx)
		if err != nil {
			log.WithError(err).Warn("comfort limits unavailable, using defaults")
		} else {
			limits = l
		}
	}

	out := make([]DayForecast, len(days))
	for i, d := range days {
		plan := PlanDay(d, profile, limits, p)
		d.Staff = &plan
		out[i] = d
	}
	return out
}
