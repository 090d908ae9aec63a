package forecast

import (
	"sort"
	"time"
)

const (
	maxTrendWeeks   = 8
	trendHalfWeeks  = 4
	trendClampPct   = 15
	momentumDamping = 0.35
	fullWeekDays    = 6
	relaxedWeekDays = 5
	minTrendWeeks   = 2
)

// WeekTotal aggregates the qualifying days of one Monday-start week.
type WeekTotal struct {
	Monday  time.Time
	Revenue float64
	Days    int
}

// Trend is the week-over-week momentum and per-weekday slope.
type Trend struct {
	Pct    float64
	Factor float64
	Weeks  int
	Slope  [7]float64
}

func groupWeeks(history []DailyRecord) []WeekTotal {
	byMonday := make(map[time.Time]*WeekTotal)
	for _, d := range history {
		m := MondayOf(d.Date)
		w, ok := byMonday[m]
		if !ok {
			w = &WeekTotal{Monday: m}
			byMonday[m] = w
		}
		w.Revenue += d.Revenue
		w.Days++
	}
	weeks := make([]WeekTotal, 0, len(byMonday))
	for _, w := range byMonday {
		weeks = append(weeks, *w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Monday.After(weeks[j].Monday) })
	return weeks
}

// SelectTrendWeeks returns up to 8 most recent weeks with at least 6
// qualifying days, relaxing to 5 when fewer than 2 such weeks exist.
func SelectTrendWeeks(history []DailyRecord) []WeekTotal {
	all := groupWeeks(history)
	pick := func(minDays int) []WeekTotal {
		var out []WeekTotal
		for _, w := range all {
			if w.Days >= minDays {
				out = append(out, w)
			}
			if len(out) == maxTrendWeeks {
				break
			}
		}
		return out
	}
	weeks := pick(fullWeekDays)
	if len(weeks) < minTrendWeeks {
		weeks = pick(relaxedWeekDays)
	}
	return weeks
}

// EstimateTrend compares the last four selected weeks against the four
// before them. With fewer than five weeks the previous block is empty and
// the trend is flat.
func EstimateTrend(history []DailyRecord, weeks []WeekTotal) Trend {
	t := Trend{Factor: 1, Weeks: len(weeks)}

	last := weeks[:min(len(weeks), trendHalfWeeks)]
	var prev []WeekTotal
	if len(weeks) > trendHalfWeeks {
		prev = weeks[trendHalfWeeks:]
	}
	var sumLast, sumPrev float64
	for _, w := range last {
		sumLast += w.Revenue
	}
	for _, w := range prev {
		sumPrev += w.Revenue
	}
	if sumPrev > 0 {
		t.Pct = (sumLast - sumPrev) / sumPrev * 100
	}
	t.Factor = 1 + clamp(t.Pct, -trendClampPct, trendClampPct)/100*momentumDamping

	inLast := make(map[time.Time]bool, len(last))
	for _, w := range last {
		inLast[w.Monday] = true
	}
	var byWeekday [7][]float64 // newest first, history is sorted that way
	for _, d := range history {
		if inLast[MondayOf(d.Date)] {
			idx := WeekdayIndex(d.Date)
			byWeekday[idx] = append(byWeekday[idx], d.Revenue)
		}
	}
	for i, vals := range byWeekday {
		if n := len(vals); n > 1 {
			t.Slope[i] = (vals[0] - vals[n-1]) / float64(n-1) * momentumDamping
		}
	}
	return t
}
