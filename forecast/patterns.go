package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	minMiningPoints      = 10
	minGroupSamples      = 6
	minImpactPct         = 15
	minWeekdaySamples    = 2
	impactFactorClamp    = 0.2
	holidayFactorClamp   = 0.3
	impactMaxConfidence  = 90
	weekdayMaxConfidence = 95
)

// MinedPattern is a pattern ready to be persisted.
type MinedPattern struct {
	Type       PatternType
	Key        string
	Payload    any
	Confidence float64
}

// MinePatterns detects weekday profiles and rain, holiday and temperature
// impacts over qualifying history. Fewer than 10 points yields nothing.
func MinePatterns(days []DailyRecord) []MinedPattern {
	var q []DailyRecord
	for _, d := range days {
		if d.Qualifies() {
			q = append(q, d)
		}
	}
	if len(q) < minMiningPoints {
		return nil
	}

	var out []MinedPattern

	var byWeekday [7][]float64
	for _, d := range q {
		wd := WeekdayIndex(d.Date)
		byWeekday[wd] = append(byWeekday[wd], d.Revenue)
	}
	for wd, vals := range byWeekday {
		if len(vals) < minWeekdaySamples {
			continue
		}
		out = append(out, MinedPattern{
			Type: PatternWeekdaySeasonal,
			Key:  DayName(wd),
			Payload: WeekdayPayload{
				Weekday:    wd,
				AvgRevenue: round2(mean(vals)),
				StdDev:     round2(populationStdDev(vals)),
				Count:      len(vals),
			},
			Confidence: math.Min(weekdayMaxConfidence, float64(50+len(vals))),
		})
	}

	var rainy, dry, holiday, regular, extreme, mild []float64
	for _, d := range q {
		if d.Weather != nil {
			if d.Weather.IsRainy() {
				rainy = append(rainy, d.Revenue)
			} else {
				dry = append(dry, d.Revenue)
			}
			if t, ok := d.Weather.Temperature(); ok {
				switch {
				case IsExtremeTemperature(t):
					extreme = append(extreme, d.Revenue)
				case IsMildTemperature(t):
					mild = append(mild, d.Revenue)
				}
			}
		}
		if d.IsHoliday {
			holiday = append(holiday, d.Revenue)
		} else {
			regular = append(regular, d.Revenue)
		}
	}
	if p, ok := compareGroups(PatternRainImpact, rainy, dry, impactFactorClamp); ok {
		out = append(out, p)
	}
	if p, ok := compareGroups(PatternHolidayImpact, holiday, regular, holidayFactorClamp); ok {
		out = append(out, p)
	}
	if p, ok := compareGroups(PatternTemperatureImpact, extreme, mild, impactFactorClamp); ok {
		out = append(out, p)
	}
	return out
}

// compareGroups yields an impact pattern when both groups have at least 6
// samples and their means differ by at least 15%.
func compareGroups(t PatternType, with, without []float64, factorClamp float64) (MinedPattern, bool) {
	if len(with) < minGroupSamples || len(without) < minGroupSamples {
		return MinedPattern{}, false
	}
	avgWith, avgWithout := mean(with), mean(without)
	if avgWithout <= 0 {
		return MinedPattern{}, false
	}
	pct := (avgWith - avgWithout) / avgWithout * 100
	if math.Abs(pct) < minImpactPct {
		return MinedPattern{}, false
	}
	smallest := min(len(with), len(without))
	return MinedPattern{
		Type: t,
		Payload: ImpactPayload{
			PctDiff:      round2(pct),
			Factor:       round2(1 + clamp(pct/100, -factorClamp, factorClamp)),
			AvgWith:      round2(avgWith),
			AvgWithout:   round2(avgWithout),
			CountWith:    len(with),
			CountWithout: len(without),
		},
		Confidence: math.Min(impactMaxConfidence, float64(50+smallest)),
	}, true
}

// PatternMiner persists mined patterns. It is run after evaluation.
type PatternMiner struct {
	Records  HistoricalRecords
	Patterns PatternStore
	Log      logrus.FieldLogger
}

// ComputeAndSave mines all history and upserts the result. It returns the
// number of patterns saved.
func (m *PatternMiner) ComputeAndSave(ctx context.Context) (int, error) {
	log := componentLogger(m.Log, "patterns")
	days, err := m.Records.DailyRecords(ctx, time.Time{}, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("load history: %w", err)
	}
	mined := MinePatterns(days)
	saved := 0
	for _, p := range mined {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return saved, err
		}
		if err := m.Patterns.SavePattern(ctx, p.Type, p.Key, payload, p.Confidence); err != nil {
			return saved, fmt.Errorf("save pattern %s/%s: %w", p.Type, p.Key, err)
		}
		saved++
	}
	log.WithFields(logrus.Fields{"records": len(days), "saved": saved}).Info("patterns mined")
	return saved, nil
}
