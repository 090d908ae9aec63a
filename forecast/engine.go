/*
engine.go - Forecasting pipeline facade

PURPOSE:
  Wires the stages into the operations exposed over HTTP and the CLI:

    compose -> enrich -> staff  (NextWeek, SaveNextWeek)
    load saved -> staff         (NextWeek when saved, ByWeek)
    evaluate -> mine patterns   (RunEvaluationCycle, from the scheduler)

  Forecast computation only reads shared state, so any number of callers
  may use an Engine concurrently. The evaluation cycle is the only writer
  of learned state and patterns.

USAGE:
  eng := forecast.NewEngine(forecast.Dependencies{
      Records: store, Settings: store, Patterns: store, Forecasts: store,
      Weather: weather, Holidays: holidays, Events: store, Comfort: comfort,
  })
  f, err := eng.NextWeek(ctx, forecast.Overrides{})
*/
package forecast

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Dependencies are the collaborators of an Engine. Providers and Comfort
// may be nil.
type Dependencies struct {
	Records   HistoricalRecords
	Settings  SettingsStore
	Patterns  PatternStore
	Forecasts ForecastStore

	Weather  WeatherProvider
	Holidays HolidayProvider
	Events   EventsProvider
	Comfort  ComfortAnalytics

	ProviderTimeout time.Duration
	Now             func() time.Time
	Log             logrus.FieldLogger
}

// Engine runs the forecasting pipeline.
type Engine struct {
	Composer  *Composer
	Enricher  *Enricher
	Staff     *StaffRecommender
	Evaluator *Evaluator
	Miner     *PatternMiner

	settings  SettingsStore
	forecasts ForecastStore
	now       func() time.Time
	log       logrus.FieldLogger

	evalMu sync.Mutex
}

// NewEngine builds an engine from its collaborators.
func NewEngine(d Dependencies) *Engine {
	log := componentLogger(d.Log, "engine")
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		Composer: &Composer{Records: d.Records, Settings: d.Settings, Log: log.WithField("stage", "compose")},
		Enricher: &Enricher{
			Weather:  d.Weather,
			Holidays: d.Holidays,
			Events:   d.Events,
			Patterns: d.Patterns,
			Timeout:  d.ProviderTimeout,
			Log:      log.WithField("stage", "enrich"),
		},
		Staff:     &StaffRecommender{Records: d.Records, Comfort: d.Comfort, Log: log.WithField("stage", "staff")},
		Evaluator: &Evaluator{Records: d.Records, Forecasts: d.Forecasts, Settings: d.Settings, Now: now, Log: log.WithField("stage", "evaluate")},
		Miner:     &PatternMiner{Records: d.Records, Patterns: d.Patterns, Log: log.WithField("stage", "patterns")},
		settings:  d.Settings,
		forecasts: d.Forecasts,
		now:       now,
		log:       log,
	}
}

// Overrides replace configured location and country for one request.
type Overrides struct {
	Location    *Location
	CountryCode string
}

func (e *Engine) params(ctx context.Context, o Overrides) Params {
	p := LoadParams(ctx, e.settings, e.log)
	if o.Location != nil && o.Location.Valid() {
		p.Location = *o.Location
	}
	if c := strings.TrimSpace(o.CountryCode); c != "" {
		p.CountryCode = strings.ToUpper(c)
	}
	return p
}

func (e *Engine) today() time.Time { return DateOf(e.now()) }

// NextWeek returns the saved forecast for next Monday with refreshed
// staffing, or the live pipeline result when none is saved.
func (e *Engine) NextWeek(ctx context.Context, o Overrides) (WeeklyForecast, error) {
	today := e.today()
	p := e.params(ctx, o)

	rec, err := e.forecasts.GetForecast(ctx, NextMonday(today))
	if err != nil {
		return WeeklyForecast{}, fmt.Errorf("load saved forecast: %w", err)
	}
	if rec != nil {
		f, err := FromRecord(*rec)
		if err == nil && !f.IsEmpty() {
			f.Days = e.Staff.Recommend(ctx, f.Days, p, today)
			return f, nil
		}
		e.log.WithError(err).WithField("week_start", FormatDate(rec.WeekStart)).
			Warn("saved forecast unusable, computing live")
	}
	return e.live(ctx, today, p)
}

func (e *Engine) live(ctx context.Context, today time.Time, p Params) (WeeklyForecast, error) {
	f, err := e.Composer.ComputeLivePrediction(ctx, today)
	if err != nil || f.IsEmpty() {
		return f, err
	}
	f.Days = e.Enricher.Enrich(ctx, f.Days, p.Location, p.CountryCode)
	f.Days = e.Staff.Recommend(ctx, f.Days, p, today)
	f.SumDays()
	return f, nil
}

// SaveNextWeek computes the live forecast for next week and upserts it.
// With insufficient history nothing is saved and the empty forecast is
// returned.
func (e *Engine) SaveNextWeek(ctx context.Context, o Overrides) (WeeklyForecast, error) {
	today := e.today()
	f, err := e.live(ctx, today, e.params(ctx, o))
	if err != nil || f.IsEmpty() {
		return f, err
	}

	rec, err := ToRecord(f)
	if err != nil {
		return f, err
	}
	existing, err := e.forecasts.GetForecast(ctx, f.WeekStart)
	if err != nil {
		return f, fmt.Errorf("load saved forecast: %w", err)
	}
	if existing != nil {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.ID = uuid.NewString()
		rec.CreatedAt = e.now().UTC()
	}
	if err := e.forecasts.SaveForecast(ctx, rec); err != nil {
		return f, fmt.Errorf("save forecast: %w", err)
	}
	f.Saved = true
	e.log.WithFields(logrus.Fields{
		"week_start": FormatDate(f.WeekStart),
		"total":      f.Total,
	}).Info("forecast saved")
	return f, nil
}

// ByWeek returns the saved forecast of the week containing date with
// refreshed staffing.
func (e *Engine) ByWeek(ctx context.Context, date time.Time) (WeeklyForecast, error) {
	monday := MondayOf(date)
	rec, err := e.forecasts.GetForecast(ctx, monday)
	if err != nil {
		return WeeklyForecast{}, fmt.Errorf("load forecast: %w", err)
	}
	if rec == nil {
		return WeeklyForecast{WeekStart: monday}, ErrForecastNotFound
	}
	f, err := FromRecord(*rec)
	if err != nil {
		e.log.WithError(err).WithField("week_start", FormatDate(monday)).Warn("saved day list unusable")
		return f, nil
	}
	f.Days = e.Staff.Recommend(ctx, f.Days, e.params(ctx, Overrides{}), e.today())
	return f, nil
}

// AccuracyHistory returns up to limit evaluated weeks, newest first.
// The limit is clamped to [1,52].
func (e *Engine) AccuracyHistory(ctx context.Context, limit int) ([]WeeklyForecast, error) {
	recs, err := e.forecasts.ListEvaluatedForecasts(ctx, clampInt(limit, 1, 52))
	if err != nil {
		return nil, err
	}
	out := make([]WeeklyForecast, 0, len(recs))
	for _, r := range recs {
		f, _ := FromRecord(r)
		out = append(out, f)
	}
	return out, nil
}

// MinePatterns re-mines patterns without evaluating. It shares the
// evaluation lock since both write learned state.
func (e *Engine) MinePatterns(ctx context.Context) (int, error) {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()
	return e.Miner.ComputeAndSave(ctx)
}

// Now returns the engine clock.
func (e *Engine) Now() time.Time { return e.now() }

// WeeksUsed reports how many weeks feed the trend of next week's forecast.
func (e *Engine) WeeksUsed(ctx context.Context) (int, error) {
	return e.Composer.WeeksUsed(ctx, e.today())
}

// RunEvaluationCycle evaluates the last closed week and then re-mines
// patterns. Mining failures are logged; evaluation failures are returned.
// Cycles are serialized.
func (e *Engine) RunEvaluationCycle(ctx context.Context) (*EvaluationReport, int, error) {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()
	report, err := e.Evaluator.EvaluatePending(ctx, e.today())
	if err != nil {
		return nil, 0, err
	}
	saved, err := e.Miner.ComputeAndSave(ctx)
	if err != nil {
		e.log.WithError(err).Warn("pattern mining failed")
	}
	return report, saved, nil
}
