/*
scenarios.go - Demo history loaders for testing and demonstrations

PURPOSE:

	Provides synthetic recorded history so the forecast, staffing and
	pattern mining can be demonstrated without real data. Every scenario
	ends on the last completed Sunday, so next week's forecast is always
	computable right after loading.

AVAILABLE SCENARIOS:

	steady-weeks:   8 weeks of a stable weekly profile
	rainy-season:   10 weeks where rainy days sell about a quarter less
	growing-trend:  8 weeks growing 3% week over week

HOW SCENARIOS WORK:
 1. Clear recorded history and learned state (tunables are kept)
 2. Generate each day from the weekday profile and the scenario shape
 3. Split revenue into shifts, derive staffing and feedback answers
 4. Save the days; the handler then re-mines patterns

	Generation is seeded per scenario, so a scenario always writes the
	same history for the same end date.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "rainy-season"}

NOTE:

	Scenarios replace recorded history. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Record ingestion (same derivation as live records)
  - cmd/server/main.go: seed command
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/shift-forecast/forecast"
)

// ErrUnknownScenario is returned for a scenario id that does not exist.
var ErrUnknownScenario = errors.New("unknown scenario")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// weekdayProfile is the typical revenue of each weekday, Monday first.
var weekdayProfile = [7]float64{600, 650, 700, 800, 1200, 1500, 1100}

// shiftShare splits a day across midday, afternoon and night.
var shiftShare = [3]float64{0.40, 0.15, 0.45}

// dayShape is what a scenario decides for one date.
type dayShape struct {
	revenue float64
	weather forecast.Weather
}

type scenario struct {
	ScenarioDTO
	seed  uint64
	shape func(rng *rand.Rand, week, weekday int) dayShape
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "steady-weeks",
			Name:        "Steady Weeks",
			Description: "Stable weekly profile with small day-to-day noise",
			Weeks:       8,
		},
		seed: 1,
		shape: func(rng *rand.Rand, _, wd int) dayShape {
			return dayShape{revenue: noisy(rng, weekdayProfile[wd], 0.05), weather: dryWeather(rng)}
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "rainy-season",
			Name:        "Rainy Season",
			Description: "One day in three is rainy and sells about 25% less",
			Weeks:       10,
		},
		seed: 2,
		shape: func(rng *rand.Rand, _, wd int) dayShape {
			base := noisy(rng, weekdayProfile[wd], 0.05)
			if rng.Float64() < 0.33 {
				return dayShape{revenue: base * 0.75, weather: rainyWeather(rng)}
			}
			return dayShape{revenue: base, weather: dryWeather(rng)}
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "growing-trend",
			Name:        "Growing Trend",
			Description: "Weekly profile growing 3% week over week",
			Weeks:       8,
		},
		seed: 3,
		shape: func(rng *rand.Rand, week, wd int) dayShape {
			growth := math.Pow(1.03, float64(week))
			return dayShape{revenue: noisy(rng, weekdayProfile[wd]*growth, 0.03), weather: dryWeather(rng)}
		},
	},
}

// Scenarios lists the available scenarios.
func Scenarios() []ScenarioDTO {
	out := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.ScenarioDTO
	}
	return out
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// GENERATION
// =============================================================================

// SeedScenario replaces recorded history with scenario id, ending on the
// last completed Sunday before today.
func SeedScenario(ctx context.Context, store Store, id string, today time.Time) (LoadScenarioDTO, error) {
	sc, ok := findScenario(id)
	if !ok {
		return LoadScenarioDTO{}, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	if err := store.ResetHistory(ctx); err != nil {
		return LoadScenarioDTO{}, fmt.Errorf("reset history: %w", err)
	}

	end := forecast.LastCompletedSunday(forecast.DateOf(today))
	start := end.AddDate(0, 0, -7*sc.Weeks+1)
	rng := rand.New(rand.NewPCG(sc.seed, uint64(start.Unix())))

	n := 0
	for week := 0; week < sc.Weeks; week++ {
		for _, date := range forecast.WeekDates(start.AddDate(0, 0, 7*week)) {
			shape := sc.shape(rng, week, forecast.WeekdayIndex(date))
			if err := store.SaveDay(ctx, scenarioDay(date, shape)); err != nil {
				return LoadScenarioDTO{}, fmt.Errorf("save %s: %w", forecast.FormatDate(date), err)
			}
			n++
		}
	}
	return LoadScenarioDTO{
		Scenario:   sc.ID,
		DaysLoaded: n,
		From:       forecast.FormatDate(start),
		To:         forecast.FormatDate(end),
	}, nil
}

// scenarioDay expands a day shape into shifts with staffing and feedback.
func scenarioDay(date time.Time, shape dayShape) forecast.DailyRecord {
	weather := shape.weather
	d := forecast.DailyRecord{Date: date, Weather: &weather}
	for i, sh := range forecast.Shifts {
		rev := money(shape.revenue * shiftShare[i])
		sala := staffFor(rev, 350)
		cocina := staffFor(rev, 450)
		rec := forecast.ShiftRecord{
			Date:        date,
			Shift:       sh,
			Revenue:     rev,
			HoursWorked: float64(sala+cocina) * 4,
			StaffSala:   sala,
			StaffCocina: cocina,
			Feedback: forecast.FeedbackAnswers{
				Difficulty: difficultyAnswer(rev / float64(sala)),
				Kitchen:    difficultyAnswer(rev / float64(cocina)),
			},
			Weather: &weather,
		}
		annotateShift(&rec)
		d.Shifts = append(d.Shifts, rec)
		d.Revenue += rev
		d.HoursWorked += rec.HoursWorked
		d.TotalStaff += sala + cocina
	}
	d.Revenue = money(d.Revenue)
	return d
}

func staffFor(revenue, perHead float64) int {
	return min(3, max(1, int(math.Ceil(revenue/perHead))))
}

func difficultyAnswer(perWorker float64) string {
	switch {
	case perWorker < 200:
		return "Muy fácil"
	case perWorker < 300:
		return "Fácil"
	case perWorker < 400:
		return "Normal"
	case perWorker < 500:
		return "Difícil"
	default:
		return "Muy difícil"
	}
}

func noisy(rng *rand.Rand, v, spread float64) float64 {
	return v * (1 + spread*(2*rng.Float64()-1))
}

func dryWeather(rng *rand.Rand) forecast.Weather {
	code := 1
	tmax := 18 + 6*rng.Float64()
	tmin := tmax - 8
	precip := 0.0
	return forecast.Weather{Code: &code, Description: "Mayormente despejado", TempMax: &tmax, TempMin: &tmin, PrecipMm: &precip}
}

func rainyWeather(rng *rand.Rand) forecast.Weather {
	code := 63
	tmax := 14 + 4*rng.Float64()
	tmin := tmax - 5
	precip := 2 + 8*rng.Float64()
	return forecast.Weather{Code: &code, Description: "Lluvia moderada", TempMax: &tmax, TempMin: &tmin, PrecipMm: &precip}
}

func money(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Scenarios())
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if sc, ok := findScenario(current); ok {
		writeJSON(w, http.StatusOK, sc.ScenarioDTO)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario replaces history with a scenario and re-mines patterns.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := SeedScenario(r.Context(), h.Store, req.ScenarioID, h.Engine.Now())
	if errors.Is(err, ErrUnknownScenario) {
		writeError(w, http.StatusBadRequest, "Unknown scenario", err)
		return
	}
	if err != nil {
		h.fail(w, "Failed to load scenario", err)
		return
	}
	if result.PatternsSaved, err = h.Engine.MinePatterns(r.Context()); err != nil {
		h.logger().WithError(err).Warn("pattern mining after scenario load failed")
	}

	h.mu.Lock()
	h.currentScenario = result.Scenario
	h.mu.Unlock()

	h.logger().WithField("scenario", result.Scenario).WithField("days", result.DaysLoaded).Info("scenario loaded")
	writeJSON(w, http.StatusOK, result)
}

// ResetDatabase clears all data, tunables included.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.fail(w, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
