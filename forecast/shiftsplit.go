package forecast

import "time"

const (
	shiftWindowDays     = 84
	minShiftSamples     = 20
	minWeekdayShiftDays = 6
)

var defaultShares = [3]float64{0.33, 0.33, 0.34}

// ShiftShares is the revenue split of a weekday across the three shifts.
type ShiftShares struct {
	Shares [3]float64
	Source string
}

// EstimateShiftShares derives per-weekday shift shares from the shift rows
// of the 84 days before currentMonday. Weekdays without enough history get
// the default split.
func EstimateShiftShares(days []DailyRecord, currentMonday time.Time) [7]ShiftShares {
	var out [7]ShiftShares
	for i := range out {
		out[i] = ShiftShares{Shares: defaultShares, Source: SourceDefault}
	}

	from := currentMonday.AddDate(0, 0, -shiftWindowDays)
	type dayShares struct {
		weekday int
		shares  [3]float64
	}
	var rows int
	var perDay []dayShares
	for _, d := range days {
		date := DateOf(d.Date)
		if d.FeedbackOnly || date.Before(from) || !date.Before(currentMonday) {
			continue
		}
		var byShift [3]float64
		var total float64
		for _, s := range d.Shifts {
			idx := s.Shift.Index()
			if idx < 0 || s.Revenue <= 0 {
				continue
			}
			rows++
			byShift[idx] += s.Revenue
			total += s.Revenue
		}
		if total <= 0 {
			continue
		}
		ds := dayShares{weekday: WeekdayIndex(date)}
		for i := range byShift {
			ds.shares[i] = byShift[i] / total
		}
		perDay = append(perDay, ds)
	}
	if rows < minShiftSamples || len(perDay) < minShiftSamples {
		return out
	}

	var sums [7][3]float64
	var counts [7]int
	for _, ds := range perDay {
		for i := range ds.shares {
			sums[ds.weekday][i] += ds.shares[i]
		}
		counts[ds.weekday]++
	}
	for wd := range out {
		if counts[wd] < minWeekdayShiftDays {
			continue
		}
		var shares [3]float64
		var total float64
		for i := range shares {
			shares[i] = max(0, sums[wd][i]/float64(counts[wd]))
			total += shares[i]
		}
		if total <= 0.01 {
			continue
		}
		for i := range shares {
			shares[i] /= total
		}
		out[wd] = ShiftShares{Shares: shares, Source: SourceHistoric}
	}
	return out
}
