/*
composer.go - Next-week revenue forecast

PURPOSE:
  Combines the baseline, trend, learned bias and month seasonality into a
  per-day point estimate with a confidence band and a per-shift split.

  estimate = weekdayAvg × trend × recentLevel × month × bias + slope
  halfBand = max(1.5 × stdDevEur, 1.5 × learnedMAE)
  min/max  = estimate ∓ halfBand, kept within [0.85, 1.15] × estimate

  The conservative factor multiplies every output figure last.

DEGRADATION:
  Fewer than 5 qualifying days, or fewer than 2 usable weeks, returns the
  empty forecast for next Monday. This is not an error.

SEE ALSO:
  - baseline.go, trend.go, shiftsplit.go: Inputs
  - bias.go: Learned correction
  - enrich.go: Next pipeline stage
*/
package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	minQualifyingDays = 5
	biasClampPct      = 20
	bandSigmas        = 1.5
	bandFloorRatio    = 0.85
	bandCeilRatio     = 1.15
)

// Composer computes live next-week predictions from history.
type Composer struct {
	Records  HistoricalRecords
	Settings SettingsStore
	Log      logrus.FieldLogger
}

// NewComposer creates a composer.
func NewComposer(records HistoricalRecords, settings SettingsStore, log logrus.FieldLogger) *Composer {
	return &Composer{Records: records, Settings: settings, Log: componentLogger(log, "composer")}
}

// ComputeLivePrediction forecasts the week after today. Only store
// failures are returned as errors.
func (c *Composer) ComputeLivePrediction(ctx context.Context, today time.Time) (WeeklyForecast, error) {
	history, err := c.Records.DailyRecords(ctx, time.Time{}, MondayOf(today).AddDate(0, 0, -1))
	if err != nil {
		return WeeklyForecast{}, fmt.Errorf("load history: %w", err)
	}
	bias, err := LoadBiasMaeState(ctx, c.Settings, c.Log)
	if err != nil {
		return WeeklyForecast{}, err
	}
	params := LoadParams(ctx, c.Settings, c.Log)

	f := Compose(today, history, bias, params.ConservativeFactor)
	if f.IsEmpty() {
		c.logger().WithFields(logrus.Fields{
			"week_start": FormatDate(f.WeekStart),
			"records":    len(history),
		}).Info("not enough history for a prediction")
	}
	return f, nil
}

// WeeksUsed reports how many weeks would feed the trend for a forecast
// computed today.
func (c *Composer) WeeksUsed(ctx context.Context, today time.Time) (int, error) {
	monday := MondayOf(today)
	history, err := c.Records.DailyRecords(ctx, time.Time{}, monday.AddDate(0, 0, -1))
	if err != nil {
		return 0, fmt.Errorf("load history: %w", err)
	}
	q := qualifyingHistory(history, monday)
	if len(q) < minQualifyingDays {
		return 0, nil
	}
	return len(SelectTrendWeeks(q)), nil
}

func (c *Composer) logger() logrus.FieldLogger {
	return componentLogger(c.Log, "composer")
}

// Compose is the pure forecast computation over a history snapshot.
func Compose(today time.Time, history []DailyRecord, bias BiasMaeState, conservative float64) WeeklyForecast {
	currentMonday := MondayOf(today)
	out := WeeklyForecast{WeekStart: NextMonday(today)}
	if conservative <= 0 || conservative > 2 {
		conservative = DefaultParams().ConservativeFactor
	}

	q := qualifyingHistory(history, currentMonday)
	if len(q) < minQualifyingDays {
		return out
	}
	weeks := SelectTrendWeeks(q)
	if len(weeks) <= trendHalfWeeks {
		// No previous block to compare against.
		out.WeeksUsed = len(weeks)
		return out
	}

	baseline := EstimateBaseline(q)
	trend := EstimateTrend(q, weeks)
	shares := EstimateShiftShares(history, currentMonday)
	out.WeeksUsed = trend.Weeks

	for i, date := range WeekDates(out.WeekStart) {
		day := composeDay(date, i, baseline, trend, bias, shares[i])
		if conservative != 1 {
			day = applyConservative(day, conservative)
		}
		out.Days = append(out.Days, day)
	}
	out.SumDays()
	return out
}

func composeDay(date time.Time, wd int, b Baseline, t Trend, bias BiasMaeState, shares ShiftShares) DayForecast {
	stats := b.Weekday[wd]
	biasFactor := clamp(1-clamp(bias.BiasPct(wd), -biasClampPct, biasClampPct)/100*momentumDamping, 0.93, 1.04)

	estimate := stats.Mean * t.Factor * b.RecentLevel * b.MonthFactor(date.Month()) * biasFactor
	estimate = max(0, round2(estimate+t.Slope[wd]))

	stdEur := defaultWeekdayCV * estimate
	if stats.Mean > 0 {
		stdEur = stats.CV * stats.Mean
	}
	half := max(bandSigmas*stdEur, bandSigmas*bias.LearnedMAE(wd))

	return DayForecast{
		Date:        date,
		DayName:     DayName(wd),
		Revenue:     estimate,
		Min:         round2(max(0, estimate-half, bandFloorRatio*estimate)),
		Max:         round2(min(estimate+half, bandCeilRatio*estimate)),
		Shifts:      splitByShares(estimate, shares.Shares),
		ShiftSource: shares.Source,
	}
}

func applyConservative(d DayForecast, f float64) DayForecast {
	d.Revenue = round2(d.Revenue * f)
	d.Min = round2(d.Min * f)
	d.Max = round2(d.Max * f)
	d.Shifts = scaleShifts(d.Shifts, f)
	return d
}
