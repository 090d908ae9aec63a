package forecast

import (
	"time"
)

// =============================================================================
// CALENDAR HELPERS - All dates are UTC midnight; weeks start on Monday
// =============================================================================

const dateLayout = "2006-01-02"

var dayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.Format(dateLayout) }

// WeekdayIndex returns Monday=0 ... Sunday=6.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// DayName returns the weekday name for a Monday-based index.
func DayName(idx int) string {
	if idx < 0 || idx > 6 {
		return ""
	}
	return dayNames[idx]
}

// WeekdayFromName is the inverse of DayName.
func WeekdayFromName(name string) (int, bool) {
	for i, n := range dayNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// MondayOf returns the Monday of the week containing t.
func MondayOf(t time.Time) time.Time {
	d := DateOf(t)
	return d.AddDate(0, 0, -WeekdayIndex(d))
}

// NextMonday returns the first Monday strictly after t.
func NextMonday(t time.Time) time.Time {
	return MondayOf(t).AddDate(0, 0, 7)
}

// LastCompletedSunday returns the most recent Sunday strictly before t,
// i.e. the last day of the most recent fully elapsed week.
func LastCompletedSunday(t time.Time) time.Time {
	return MondayOf(t).AddDate(0, 0, -1)
}

// WeekDates returns the seven dates of the week starting at monday.
func WeekDates(monday time.Time) [7]time.Time {
	var out [7]time.Time
	for i := range out {
		out[i] = monday.AddDate(0, 0, i)
	}
	return out
}
