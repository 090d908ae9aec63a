/*
enrich.go - Context adjustment of a raw forecast

PURPOSE:
  Applies weather, holiday, temperature and event factors to each day.
  Mined patterns supply a raw factor and a confidence; both the confidence
  and the smaller group size damp how much of the factor is applied:

    blend     = clamp(0.25 + conf/100 × 0.5, 0.25, 0.75) × clamp(minGroup/10, 0.5, 1)
    subFactor = 1 + (raw − 1) × blend
    total     = clamp(Π subFactors, 0.90, 1.06)

  Events use a fixed blend of 0.5 (Alto 1.10, Bajo 0.90, otherwise 1.0).

PROVIDERS:
  Weather, holidays and events are fetched concurrently with a per-call
  timeout. A failed provider contributes no data; the forecast is still
  returned.
*/
package forecast

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultProviderTimeout bounds each external lookup.
const DefaultProviderTimeout = 8 * time.Second

const (
	eventBlend     = 0.5
	minDayFactor   = 0.90
	maxDayFactor   = 1.06
	patternMinRaw  = 0.90
	patternMaxRaw  = 1.10
	highEventRaw   = 1.10
	lowEventRaw    = 0.90
	noPatternBlend = 0.5
)

// Enricher adjusts forecasts with external context.
type Enricher struct {
	Weather  WeatherProvider
	Holidays HolidayProvider
	Events   EventsProvider
	Patterns PatternStore
	Timeout  time.Duration
	Log      logrus.FieldLogger
}

// Impact is a pattern resolved into a raw factor and blend weight.
type Impact struct {
	Raw   float64
	Blend float64
}

// SubFactor is the applied factor of the impact.
func (i Impact) SubFactor() float64 { return 1 + (i.Raw-1)*i.Blend }

// NoImpact leaves revenue untouched.
var NoImpact = Impact{Raw: 1, Blend: noPatternBlend}

// ImpactFromPattern resolves a stored impact pattern. A nil or unreadable
// pattern is NoImpact.
func ImpactFromPattern(p *DetectedPattern) Impact {
	if p == nil {
		return NoImpact
	}
	var payload ImpactPayload
	if err := json.Unmarshal(p.Payload, &payload); err != nil {
		return NoImpact
	}
	blend := clamp(0.25+p.Confidence/100*0.5, 0.25, 0.75)
	if n := min(payload.CountWith, payload.CountWithout); n > 0 {
		blend *= clamp(float64(n)/10, 0.5, 1)
	}
	return Impact{Raw: clamp(payload.EffectiveFactor(), patternMinRaw, patternMaxRaw), Blend: blend}
}

// Impacts groups the three mined impacts consulted per day.
type Impacts struct {
	Rain        Impact
	Holiday     Impact
	Temperature Impact
}

// Conditions is the external context known for one date.
type Conditions struct {
	Weather     *Weather
	HolidayName string
	IsHoliday   bool
	Events      []DemandEvent
}

// EventFactor converts event impact labels into a raw factor. The first
// "Alto" wins; otherwise any "Bajo" lowers demand.
func EventFactor(events []DemandEvent) float64 {
	f := 1.0
	for _, ev := range events {
		switch strings.ToUpper(strings.TrimSpace(ev.Impact)) {
		case "ALTO":
			return highEventRaw
		case "BAJO":
			f = lowEventRaw
		}
	}
	return f
}

// ApplyConditions rescales a day by its context. Days without revenue are
// annotated but not rescaled.
func ApplyConditions(d DayForecast, c Conditions, im Impacts) DayForecast {
	ctx := &DayContext{
		Weather:     c.Weather,
		IsRainy:     c.Weather.IsRainy(),
		IsHoliday:   c.IsHoliday,
		HolidayName: c.HolidayName,
	}
	for _, ev := range c.Events {
		ctx.Events = append(ctx.Events, ev.Name)
	}
	d.Context = ctx

	if d.Revenue <= 0 {
		return d
	}

	br := FactorBreakdown{Weather: 1, Holiday: 1, Temperature: 1}
	if ctx.IsRainy {
		br.Weather = im.Rain.SubFactor()
	}
	if c.IsHoliday {
		br.Holiday = im.Holiday.SubFactor()
	}
	if c.Weather.HasExtremeTemperature() {
		br.Temperature = im.Temperature.SubFactor()
	}
	br.Event = 1 + (EventFactor(c.Events)-1)*eventBlend
	mult := clamp(br.Weather*br.Holiday*br.Temperature*br.Event, minDayFactor, maxDayFactor)
	br.Total = round2(mult)

	base := d.Revenue
	d.BaseRevenue = &base
	d.Factors = &br
	d.Revenue = round2(d.Revenue * mult)
	d.Min = round2(d.Min * mult)
	d.Max = round2(d.Max * mult)
	d.Shifts = scaleShifts(d.Shifts, mult)
	return d
}

// Enrich applies context to every day of days. Provider failures are
// logged and treated as missing data.
func (e *Enricher) Enrich(ctx context.Context, days []DayForecast, loc Location, countryCode string) []DayForecast {
	if len(days) == 0 {
		return days
	}
	log := componentLogger(e.Log, "enricher")
	from, to := DateOf(days[0].Date), DateOf(days[len(days)-1].Date)

	ext := e.fetch(ctx, log, from, to, loc, countryCode)
	im := e.impacts(ctx, log)

	out := make([]DayForecast, len(days))
	for i, d := range days {
		key := FormatDate(d.Date)
		c := Conditions{Events: ext.events[key]}
		if w, ok := ext.weather[key]; ok {
			w := w
			c.Weather = &w
		}
		if name, ok := ext.holidays[key]; ok {
			c.IsHoliday = true
			c.HolidayName = name
		}
		out[i] = ApplyConditions(d, c, im)
	}
	return out
}

type externalContext struct {
	weather  map[string]Weather
	holidays map[string]string
	events   map[string][]DemandEvent
}

func (e *Enricher) fetch(ctx context.Context, log logrus.FieldLogger, from, to time.Time, loc Location, country string) externalContext {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	ext := externalContext{
		weather:  map[string]Weather{},
		holidays: map[string]string{},
		events:   map[string][]DemandEvent{},
	}
	var (
		weather  []WeatherDay
		holidays []Holiday
		events   []DemandEvent
	)
	// Each goroutine writes only its own slice; failures never cancel the group.
	g, gctx := errgroup.WithContext(ctx)
	call := func(provider string, fn func(context.Context) error) {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()
			if err := fn(cctx); err != nil {
				log.WithError(err).WithField("provider", provider).Warn("provider unavailable, continuing without it")
			}
			return nil
		})
	}
	if e.Weather != nil && loc.Valid() {
		call("weather", func(c context.Context) (err error) {
			weather, err = e.Weather.DailyWeather(c, from, to, loc)
			return err
		})
	}
	if e.Holidays != nil && countryCode(country) != "" {
		call("holidays", func(c context.Context) (err error) {
			holidays, err = e.Holidays.Holidays(c, from, to, countryCode(country))
			return err
		})
	}
	if e.Events != nil {
		call("events", func(c context.Context) (err error) {
			events, err = e.Events.Events(c, from, to)
			return err
		})
	}
	_ = g.Wait()

	for _, w := range weather {
		ext.weather[FormatDate(w.Date)] = w.Weather
	}
	for _, h := range holidays {
		ext.holidays[FormatDate(h.Date)] = h.Name
	}
	for _, ev := range events {
		key := FormatDate(ev.Date)
		ext.events[key] = append(ext.events[key], ev)
	}
	return ext
}

func (e *Enricher) impacts(ctx context.Context, log logrus.FieldLogger) Impacts {
	im := Impacts{Rain: NoImpact, Holiday: NoImpact, Temperature: NoImpact}
	if e.Patterns == nil {
		return im
	}
	load := func(t PatternType) Impact {
		p, err := e.Patterns.GetPattern(ctx, t, "")
		if err != nil {
			log.WithError(err).WithField("pattern", t).Warn("pattern lookup failed")
			return NoImpact
		}
		return ImpactFromPattern(p)
	}
	im.Rain = load(PatternRainImpact)
	im.Holiday = load(PatternHolidayImpact)
	im.Temperature = load(PatternTemperatureImpact)
	return im
}

func countryCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
