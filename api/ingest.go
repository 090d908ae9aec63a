package api

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/shift-forecast/forecast"
	"github.com/warp/shift-forecast/scoring"
)

// buildDay validates a recorded day and fills in what the recording
// workflow derives: shift scores, revenue per worker and day totals.
func buildDay(req DayRequest) (forecast.DailyRecord, error) {
	date, err := forecast.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return forecast.DailyRecord{}, fmt.Errorf("%w: date %q (use YYYY-MM-DD)", forecast.ErrInvalidRecord, req.Date)
	}
	d := forecast.DailyRecord{
		Date:         date,
		IsHoliday:    req.IsHoliday,
		FeedbackOnly: req.FeedbackOnly,
		Notes:        strings.TrimSpace(req.Notes),
		Weather:      req.Weather,
	}

	seen := make(map[forecast.Shift]bool, len(req.Shifts))
	var revenue, hours float64
	for _, s := range req.Shifts {
		name, ok := forecast.ParseShift(s.Shift)
		if !ok {
			return forecast.DailyRecord{}, fmt.Errorf("%w: unknown shift %q", forecast.ErrInvalidRecord, s.Shift)
		}
		if seen[name] {
			return forecast.DailyRecord{}, fmt.Errorf("%w: shift %s recorded twice", forecast.ErrInvalidRecord, name)
		}
		seen[name] = true
		if s.Revenue < 0 || s.HoursWorked < 0 || s.StaffSala < 0 || s.StaffCocina < 0 {
			return forecast.DailyRecord{}, fmt.Errorf("%w: negative values in shift %s", forecast.ErrInvalidRecord, name)
		}

		sh := forecast.ShiftRecord{
			Date:        date,
			Shift:       name,
			Revenue:     s.Revenue,
			HoursWorked: s.HoursWorked,
			StaffSala:   s.StaffSala,
			StaffCocina: s.StaffCocina,
			Feedback:    s.FeedbackAnswers,
			Weather:     s.Weather,
		}
		annotateShift(&sh)
		d.Shifts = append(d.Shifts, sh)

		revenue += s.Revenue
		hours += s.HoursWorked
		d.TotalStaff += s.StaffSala + s.StaffCocina
	}

	d.Revenue = revenue
	if req.Revenue != nil {
		d.Revenue = *req.Revenue
	}
	d.HoursWorked = hours
	if req.HoursWorked != nil {
		d.HoursWorked = *req.HoursWorked
	}
	if d.Revenue < 0 || d.HoursWorked < 0 {
		return forecast.DailyRecord{}, fmt.Errorf("%w: negative day totals", forecast.ErrInvalidRecord)
	}
	return d, nil
}

// annotateShift derives difficulty, comfort and revenue per worker.
func annotateShift(sh *forecast.ShiftRecord) {
	a := scoring.Answers{
		Volume:     sh.Feedback.Volume,
		Rhythm:     sh.Feedback.Rhythm,
		Margin:     sh.Feedback.Margin,
		Difficulty: sh.Feedback.Difficulty,
		Kitchen:    sh.Feedback.Kitchen,
	}
	if v, ok := scoring.Difficulty(a); ok {
		sh.Difficulty = &v
		sh.ComfortLevel = scoring.ComfortLabel(v)
	}
	if v, ok := scoring.KitchenDifficulty(a); ok {
		sh.KitchenDifficulty = &v
	}
	sh.RevenuePerSala = perHead(sh.Revenue, sh.StaffSala)
	sh.RevenuePerCocina = perHead(sh.Revenue, sh.StaffCocina)
}

func perHead(revenue float64, staff int) *float64 {
	if revenue <= 0 || staff <= 0 {
		return nil
	}
	v := decimal.NewFromFloat(revenue).Div(decimal.NewFromInt(int64(staff))).Round(2).InexactFloat64()
	return &v
}
