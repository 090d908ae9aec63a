/*
handlers.go - HTTP API handlers for the forecasting engine

PURPOSE:
  Exposes the forecasting engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to forecast.Engine.

ENDPOINTS:
  Predictions:
    GET    /api/predictions/next-week          Saved or live forecast for next week
    POST   /api/predictions/next-week/save     Compute and save next week
    GET    /api/predictions/by-week            Saved forecast of a given week
    GET    /api/predictions/accuracy-history   Last evaluated weeks
    POST   /api/predictions/evaluate           Run one evaluation cycle

  Patterns:
    GET    /api/patterns                       Mined patterns
    POST   /api/patterns/compute               Re-mine patterns

  Records:
    GET    /api/days                           Recorded days in a range
    POST   /api/days                           Record a day (scores derived here)
    GET    /api/events                         Demand events in a range
    POST   /api/events                         Add a demand event

  Settings & analytics:
    GET    /api/settings                       All settings
    GET    /api/settings/{key}                 One setting
    PUT    /api/settings/{key}                 Write a validated setting
    GET    /api/analytics/comfort              Comfort bands per schema

ERROR HANDLING:
  Errors are returned as JSON {error, details} with status:
  - 400: Invalid input, invalid records, rejected settings
  - 404: Forecast or setting not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo history loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/shift-forecast/analytics"
	"github.com/warp/shift-forecast/forecast"
	"github.com/warp/shift-forecast/logging"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the HTTP layer reads and writes. Both the SQLite and
// the in-memory stores satisfy it.
type Store interface {
	forecast.HistoricalRecords
	forecast.SettingsStore
	forecast.PatternStore
	forecast.ForecastStore
	forecast.EventsProvider

	SaveDay(ctx context.Context, d forecast.DailyRecord) error
	ListSettings(ctx context.Context) (map[string]string, error)
	AddEvent(ctx context.Context, ev forecast.DemandEvent) (forecast.DemandEvent, error)
	Reset(ctx context.Context) error
	ResetHistory(ctx context.Context) error
}

// pinger is implemented by stores backed by a database connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   Store
	Engine  *forecast.Engine
	Comfort *analytics.Comfort
	Log     logrus.FieldLogger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over store and engine.
func NewHandler(store Store, engine *forecast.Engine, comfort *analytics.Comfort) *Handler {
	return &Handler{
		Store:   store,
		Engine:  engine,
		Comfort: comfort,
		Log:     logging.Component("api"),
	}
}

// =============================================================================
// PREDICTION HANDLERS
// =============================================================================

// NextWeek returns the forecast for next Monday's week.
func (h *Handler) NextWeek(w http.ResponseWriter, r *http.Request) {
	o, err := parseOverrides(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid location", err)
		return
	}
	f, err := h.Engine.NextWeek(r.Context(), o)
	if err != nil {
		h.fail(w, "Failed to compute forecast", err)
		return
	}
	dto := toWeeklyDTO(f)
	if f.IsEmpty() {
		dto.WeekStart = forecast.FormatDate(forecast.NextMonday(h.Engine.Now()))
		dto.Message = "Not enough history to compute a forecast"
	}
	writeJSON(w, http.StatusOK, dto)
}

// SaveNextWeek computes and stores next week's forecast.
func (h *Handler) SaveNextWeek(w http.ResponseWriter, r *http.Request) {
	o, err := parseOverrides(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid location", err)
		return
	}
	f, err := h.Engine.SaveNextWeek(r.Context(), o)
	if err != nil {
		h.fail(w, "Failed to save forecast", err)
		return
	}
	if !f.Saved {
		writeJSON(w, http.StatusOK, SaveForecastDTO{Message: "Not enough history to compute a forecast"})
		return
	}
	total := f.Total
	writeJSON(w, http.StatusOK, SaveForecastDTO{
		Saved:        true,
		WeekStart:    forecast.FormatDate(f.WeekStart),
		TotalRevenue: &total,
	})
}

// ByWeek returns the saved forecast of the week containing week_start.
func (h *Handler) ByWeek(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("week_start"))
	date, err := forecast.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid week_start (use YYYY-MM-DD)", forecast.ErrInvalidWeek)
		return
	}
	f, err := h.Engine.ByWeek(r.Context(), date)
	if err != nil {
		h.fail(w, "Failed to load forecast", err)
		return
	}
	writeJSON(w, http.StatusOK, toWeeklyDTO(f))
}

// AccuracyHistory returns the last evaluated weeks, newest first.
func (h *Handler) AccuracyHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	weeks, err := h.Engine.AccuracyHistory(r.Context(), limit)
	if err != nil {
		h.fail(w, "Failed to load accuracy history", err)
		return
	}
	out := make([]AccuracyWeekDTO, 0, len(weeks))
	for _, f := range weeks {
		out = append(out, toAccuracyWeekDTO(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"weeks": out})
}

// Evaluate runs one evaluation and mining cycle.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	report, saved, err := h.Engine.RunEvaluationCycle(r.Context())
	if err != nil {
		h.fail(w, "Evaluation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toEvaluationDTO(report, saved))
}

func toEvaluationDTO(report *forecast.EvaluationReport, saved int) EvaluationDTO {
	dto := EvaluationDTO{PatternsSaved: saved}
	if report == nil {
		return dto
	}
	dto.Evaluated = true
	dto.WeekStart = forecast.FormatDate(report.WeekStart)
	dto.Accuracy = &report.Accuracy
	dto.StaffAccuracy = report.Staff
	dto.BiasUpdated = report.BiasUpdated
	dto.DaysLearned = report.DaysLearned
	return dto
}

// =============================================================================
// PATTERN HANDLERS
// =============================================================================

func (h *Handler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.Store.ListPatterns(r.Context())
	if err != nil {
		h.fail(w, "Failed to list patterns", err)
		return
	}
	out := make([]PatternDTO, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, toPatternDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ComputePatterns(w http.ResponseWriter, r *http.Request) {
	saved, err := h.Engine.MinePatterns(r.Context())
	if err != nil {
		h.fail(w, "Pattern mining failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"saved": saved})
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// ListDays returns recorded days in [from, to]. Both bounds are optional.
func (h *Handler) ListDays(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range (use YYYY-MM-DD)", err)
		return
	}
	days, err := h.Store.DailyRecords(r.Context(), from, to)
	if err != nil {
		h.fail(w, "Failed to list days", err)
		return
	}
	out := make([]DayDTO, 0, len(days))
	for _, d := range days {
		out = append(out, toDayDTO(d))
	}
	writeJSON(w, http.StatusOK, out)
}

// SaveDay records a day, replacing any previous record of the same date.
func (h *Handler) SaveDay(w http.ResponseWriter, r *http.Request) {
	var req DayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	d, err := buildDay(req)
	if err != nil {
		h.fail(w, "Invalid day", err)
		return
	}
	if err := h.Store.SaveDay(r.Context(), d); err != nil {
		h.fail(w, "Failed to save day", err)
		return
	}
	saved, err := h.Store.DailyRecords(r.Context(), d.Date, d.Date)
	if err == nil && len(saved) == 1 {
		d = saved[0]
	}
	writeJSON(w, http.StatusCreated, toDayDTO(d))
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range (use YYYY-MM-DD)", err)
		return
	}
	events, err := h.Store.Events(r.Context(), from, to)
	if err != nil {
		h.fail(w, "Failed to list events", err)
		return
	}
	if events == nil {
		events = []forecast.DemandEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := forecast.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	switch req.Impact {
	case "", forecast.ImpactHigh, forecast.ImpactMedium, forecast.ImpactLow:
	default:
		writeError(w, http.StatusBadRequest, "Invalid impact (Alto, Medio or Bajo)", nil)
		return
	}
	ev, err := h.Store.AddEvent(r.Context(), forecast.DemandEvent{
		Date:        date,
		Name:        strings.TrimSpace(req.Name),
		Impact:      req.Impact,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		h.fail(w, "Failed to create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// =============================================================================
// SETTINGS & ANALYTICS
// =============================================================================

func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Store.ListSettings(r.Context())
	if err != nil {
		h.fail(w, "Failed to list settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) GetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, ok, err := h.Store.GetSetting(r.Context(), key)
	if err != nil {
		h.fail(w, "Failed to read setting", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Setting not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, SettingDTO{Key: key, Value: value})
}

// PutSetting writes a setting after validating it against its range.
func (h *Handler) PutSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req SetSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	value := strings.TrimSpace(req.Value)
	if err := forecast.ValidateSetting(key, value); err != nil {
		h.fail(w, "Invalid setting", err)
		return
	}
	if err := h.Store.SetSetting(r.Context(), key, value); err != nil {
		h.fail(w, "Failed to write setting", err)
		return
	}
	h.logger().WithFields(logrus.Fields{"key": key, "value": value}).Info("setting updated")
	writeJSON(w, http.StatusOK, SettingDTO{Key: key, Value: value})
}

// ComfortReport returns the comfort bands of every staffing schema.
func (h *Handler) ComfortReport(w http.ResponseWriter, r *http.Request) {
	minShifts := 0
	if raw := r.URL.Query().Get("min_shifts"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid min_shifts", err)
			return
		}
		minShifts = n
	}
	rep, err := h.Comfort.Report(r.Context(), minShifts)
	if err != nil {
		h.fail(w, "Failed to compute comfort report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Health reports liveness and database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dto := HealthDTO{Status: "ok", Database: "ok", Time: time.Now().UTC().Format(time.RFC3339)}
	status := http.StatusOK
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			dto.Status, dto.Database = "degraded", "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseOverrides(r *http.Request) (forecast.Overrides, error) {
	q := r.URL.Query()
	o := forecast.Overrides{CountryCode: q.Get("country_code")}
	rawLat, rawLon := q.Get("lat"), q.Get("lon")
	if rawLat == "" && rawLon == "" {
		return o, nil
	}
	lat, err := forecast.ParseSettingFloat(rawLat)
	if err != nil || lat < -90 || lat > 90 {
		return o, errors.New("lat must be a number in [-90, 90]")
	}
	lon, err := forecast.ParseSettingFloat(rawLon)
	if err != nil || lon < -180 || lon > 180 {
		return o, errors.New("lon must be a number in [-180, 180]")
	}
	o.Location = &forecast.Location{Lat: &lat, Lon: &lon}
	return o, nil
}

func parseRange(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		if from, err = forecast.ParseDate(raw); err != nil {
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		to, err = forecast.ParseDate(raw)
	}
	return
}

// fail maps domain errors to status codes.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, forecast.ErrInvalidRecord),
		errors.Is(err, forecast.ErrInvalidSetting),
		errors.Is(err, forecast.ErrInvalidWeek):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, forecast.ErrForecastNotFound):
		writeError(w, http.StatusNotFound, "Forecast not found", err)
	default:
		h.logger().WithError(err).Error(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func (h *Handler) logger() logrus.FieldLogger {
	if h.Log != nil {
		return h.Log
	}
	return logging.Component("api")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
