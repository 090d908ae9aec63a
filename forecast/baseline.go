package forecast

import (
	"sort"
	"time"
)

const (
	baselineWindowRecords = 84
	recentLevelRecords    = 14
	minBaselineRecords    = 5
	defaultWeekdayCV      = 0.15
)

// WeekdayStats is the revenue profile of one weekday.
type WeekdayStats struct {
	Mean    float64
	CV      float64
	Samples int
}

// Baseline is the per-weekday revenue profile of recent history.
type Baseline struct {
	Weekday       [7]WeekdayStats
	OverallRecent float64
	RecentLevel   float64
	months        map[time.Month]float64
}

// qualifyingHistory keeps the days before cutoff that carry financials,
// newest first.
func qualifyingHistory(days []DailyRecord, cutoff time.Time) []DailyRecord {
	out := make([]DailyRecord, 0, len(days))
	for _, d := range days {
		if d.Qualifies() && DateOf(d.Date).Before(cutoff) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func revenues(days []DailyRecord) []float64 {
	out := make([]float64, len(days))
	for i, d := range days {
		out[i] = d.Revenue
	}
	return out
}

// EstimateBaseline builds the baseline from qualifying history sorted
// newest first. The base window is the 84 most recent records, or the
// full history when that window holds fewer than 5.
func EstimateBaseline(history []DailyRecord) Baseline {
	base := history
	if recent := history[:min(len(history), baselineWindowRecords)]; len(recent) >= minBaselineRecords {
		base = recent
	}

	b := Baseline{
		OverallRecent: mean(revenues(base)),
		RecentLevel:   1,
		months:        make(map[time.Month]float64),
	}

	if b.OverallRecent > 0 {
		last := mean(revenues(history[:min(len(history), recentLevelRecords)]))
		b.RecentLevel = clamp(last/b.OverallRecent, 0.90, 1.02)
	}

	var byWeekday [7][]float64
	byMonth := make(map[time.Month][]float64)
	for _, d := range base {
		idx := WeekdayIndex(d.Date)
		byWeekday[idx] = append(byWeekday[idx], d.Revenue)
		byMonth[d.Date.Month()] = append(byMonth[d.Date.Month()], d.Revenue)
	}
	for i, vals := range byWeekday {
		if len(vals) == 0 {
			b.Weekday[i] = WeekdayStats{Mean: b.OverallRecent, CV: defaultWeekdayCV}
			continue
		}
		m := mean(vals)
		var cv float64
		if m > 0 {
			cv = populationStdDev(vals) / m
		}
		b.Weekday[i] = WeekdayStats{Mean: m, CV: cv, Samples: len(vals)}
	}
	for m, vals := range byMonth {
		b.months[m] = mean(vals)
	}
	return b
}

// MonthFactor is the seasonality of a calendar month, clamped to [0.9,1.1].
func (b Baseline) MonthFactor(m time.Month) float64 {
	v, ok := b.months[m]
	if !ok || b.OverallRecent <= 0 {
		return 1
	}
	return clamp(v/b.OverallRecent, 0.9, 1.1)
}
