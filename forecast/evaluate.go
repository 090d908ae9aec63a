/*
evaluate.go - Closing the loop on a finished week

PURPOSE:
  Once a week has fully elapsed, compares its saved forecast against the
  recorded revenue and staffing, stores the accuracy on the forecast row
  and feeds per-day errors into the learned bias/MAE state.

ORDER OF WORK:
  1. Accuracy (always persisted once the forecast is found).
  2. Per-day list decode. Failure stops here: no staffing report, no learning.
  3. Staffing accuracy (reported when any shift could be compared).
  4. Bias/MAE update for every day with a positive prediction.

  Evaluation is the only writer of the bias state. It runs from the
  background scheduler, never from a request path.
*/
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// Evaluator evaluates closed weeks.
type Evaluator struct {
	Records   HistoricalRecords
	Forecasts ForecastStore
	Settings  SettingsStore
	Now       func() time.Time // completion clock; nil is time.Now
	Log       logrus.FieldLogger
}

// Accuracy compares predicted and actual week revenue.
func Accuracy(predicted, actual float64) AccuracyMetrics {
	var errPct float64
	if predicted > 0 {
		errPct = math.Abs(predicted-actual) / predicted * 100
	}
	return AccuracyMetrics{
		OverallErrorPct:  round2(errPct),
		AccuracyPct:      round2(max(0, 100-errPct)),
		ActualRevenue:    round2(actual),
		PredictedRevenue: round2(predicted),
	}
}

// actualRevenueByDate sums non feedback-only revenue per date.
func actualRevenueByDate(days []DailyRecord) map[string]float64 {
	out := make(map[string]float64, len(days))
	for _, d := range days {
		if d.FeedbackOnly {
			continue
		}
		out[FormatDate(d.Date)] += d.Revenue
	}
	return out
}

// LearnFromDays feeds each day with a positive prediction into state and
// returns the updated state and the number of days learned.
func LearnFromDays(state BiasMaeState, days []DayForecast, actual map[string]float64) (BiasMaeState, int) {
	n := 0
	for _, d := range days {
		if d.Revenue <= 0 {
			continue
		}
		got := actual[FormatDate(d.Date)]
		errPct := (d.Revenue - got) / d.Revenue * 100
		state = state.Record(WeekdayIndex(d.Date), errPct, math.Abs(d.Revenue-got))
		n++
	}
	return state, n
}

// StaffAccuracy compares planned against recorded headcounts for every
// shift that exists in both. Days without a plan are skipped. Returns nil
// when nothing could be compared.
func StaffAccuracy(days []DayForecast, actual []DailyRecord) *StaffAccuracyReport {
	type key struct {
		date  string
		shift Shift
	}
	recorded := make(map[key]ShiftRecord)
	for _, d := range actual {
		for _, s := range d.Shifts {
			if s.StaffSala < 0 || s.StaffCocina < 0 {
				continue
			}
			k := key{FormatDate(d.Date), s.Shift}
			if _, dup := recorded[k]; !dup {
				recorded[k] = s
			}
		}
	}

	rep := &StaffAccuracyReport{}
	var salaErr, cocinaErr float64
	var exact int
	for _, d := range days {
		if d.Staff == nil {
			continue
		}
		date := FormatDate(d.Date)
		var dayErr float64
		var dayComparisons, dayExact int
		for i, sh := range Shifts {
			s, ok := recorded[key{date, sh}]
			if !ok {
				continue
			}
			ds := math.Abs(float64(d.Staff.Sala[i] - s.StaffSala))
			dc := math.Abs(float64(d.Staff.Cocina[i] - s.StaffCocina))
			salaErr += ds
			cocinaErr += dc
			dayErr += ds + dc
			dayComparisons += 2
			if ds == 0 && dc == 0 {
				exact++
				dayExact++
			}
		}
		if dayComparisons == 0 {
			continue
		}
		rep.Comparisons += dayComparisons
		rep.ByDay = append(rep.ByDay, StaffAccuracyDay{
			Date:         date,
			MAE:          round2(dayErr / float64(dayComparisons)),
			ExactMatches: dayExact,
		})
	}
	if rep.Comparisons == 0 {
		return nil
	}
	rep.MAE = round2((salaErr + cocinaErr) / float64(rep.Comparisons))
	rep.ExactMatchPct = round1(100 * float64(exact) / (float64(rep.Comparisons) / 2))
	return rep
}

// EvaluatePending evaluates the week ending on the last completed Sunday
// before today, if its forecast exists and is not yet complete. It returns
// (nil, nil) when there is nothing to evaluate.
func (e *Evaluator) EvaluatePending(ctx context.Context, today time.Time) (*EvaluationReport, error) {
	log := componentLogger(e.Log, "evaluator")
	sunday := LastCompletedSunday(today)
	monday := sunday.AddDate(0, 0, -6)
	log = log.WithField("week_start", FormatDate(monday))

	rec, err := e.Forecasts.GetForecast(ctx, monday)
	if err != nil {
		return nil, fmt.Errorf("load forecast: %w", err)
	}
	if rec == nil || rec.CompletedAt != nil {
		log.Debug("no pending forecast")
		return nil, nil
	}

	actualDays, err := e.Records.DailyRecords(ctx, monday, sunday)
	if err != nil {
		return nil, fmt.Errorf("load actuals: %w", err)
	}
	byDate := actualRevenueByDate(actualDays)
	var actual float64
	for _, v := range byDate {
		actual += v
	}
	var predicted float64
	if rec.PredictedRevenue != nil {
		predicted = *rec.PredictedRevenue
	}

	report := &EvaluationReport{WeekStart: monday, Accuracy: Accuracy(predicted, actual)}

	days, decodeErr := DecodeDays(rec.DaysJSON)
	if decodeErr == nil {
		report.Staff = StaffAccuracy(days, actualDays)
	}

	f, _ := FromRecord(*rec)
	now := e.clock().UTC()
	actualRounded := round2(actual)
	f.ActualRevenue = &actualRounded
	f.CompletedAt = &now
	f.Accuracy = &report.Accuracy
	f.StaffAccuracy = report.Staff
	updated, err := ToRecord(f)
	if err != nil {
		return nil, err
	}
	updated.ID = rec.ID
	updated.CreatedAt = rec.CreatedAt
	updated.PredictedRevenue = rec.PredictedRevenue
	updated.DaysJSON = rec.DaysJSON
	if err := e.Forecasts.SaveForecast(ctx, updated); err != nil {
		return nil, fmt.Errorf("save evaluation: %w", err)
	}

	log = log.WithFields(logrus.Fields{
		"predicted": report.Accuracy.PredictedRevenue,
		"actual":    report.Accuracy.ActualRevenue,
		"error_pct": report.Accuracy.OverallErrorPct,
	})
	if decodeErr != nil {
		log.WithError(decodeErr).Warn("stored day list unusable, skipping bias update")
		return report, nil
	}

	state, err := LoadBiasMaeState(ctx, e.Settings, e.Log)
	if err != nil {
		log.WithError(err).Warn("bias state unavailable, skipping bias update")
		return report, nil
	}
	state, report.DaysLearned = LearnFromDays(state, days, byDate)
	if report.DaysLearned > 0 {
		if err := SaveBiasMaeState(ctx, e.Settings, state); err != nil {
			log.WithError(err).Warn("bias state not saved")
			return report, nil
		}
		report.BiasUpdated = true
	}
	log.WithField("days_learned", report.DaysLearned).Info("week evaluated")
	return report, nil
}

// IsMalformed reports whether err came from an unusable stored blob.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedDays) || errors.Is(err, ErrMalformedState)
}

func (e *Evaluator) clock() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
