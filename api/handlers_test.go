/*
handlers_test.go - HTTP tests for the API handlers

Tests drive the full router over the in-memory store:
- Record ingestion and derived scores
- Settings validation
- Forecast, save, by-week and evaluation endpoints
- Error envelope and status mapping
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-forecast/analytics"
	"github.com/warp/shift-forecast/forecast"
	"github.com/warp/shift-forecast/forecast/store"
)

// fixedNow is a Wednesday; next week starts on 2026-02-16.
var fixedNow = time.Date(2026, 2, 11, 15, 0, 0, 0, time.UTC)

type testServer struct {
	store   *store.Memory
	handler *Handler
	router  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	m := store.NewMemory()
	comfort := analytics.NewComfort(m)
	engine := forecast.NewEngine(forecast.Dependencies{
		Records:   m,
		Settings:  m,
		Patterns:  m,
		Forecasts: m,
		Events:    m,
		Comfort:   comfort,
		Now:       func() time.Time { return fixedNow },
	})
	h := NewHandler(m, engine, comfort)
	return &testServer{store: m, handler: h, router: NewRouter(h, DefaultRouterOptions())}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) loadScenario(t *testing.T, id string) LoadScenarioDTO {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[LoadScenarioDTO](t, rec)
}

// =============================================================================
// RECORDS
// =============================================================================

func TestSaveDay_DerivesScores(t *testing.T) {
	// GIVEN
	s := newTestServer(t)
	req := DayRequest{
		Date: "2026-02-09",
		Shifts: []ShiftRequest{
			{
				Shift: "Mediodía", Revenue: 900, HoursWorked: 16, StaffSala: 2, StaffCocina: 2,
				FeedbackAnswers: forecast.FeedbackAnswers{Difficulty: "Difícil", Kitchen: "Normal"},
			},
			{Shift: "Noche", Revenue: 600, HoursWorked: 8, StaffSala: 1, StaffCocina: 1},
		},
	}

	// WHEN
	rec := s.do(t, http.MethodPost, "/api/days", req)

	// THEN
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	day := decode[DayDTO](t, rec)
	assert.Equal(t, "Monday", day.DayName)
	assert.Equal(t, 1500.0, day.Revenue, "revenue defaults to the shift sum")
	assert.Equal(t, 24.0, day.HoursWorked)
	assert.Equal(t, 6, day.TotalStaff)
	require.Len(t, day.Shifts, 2)

	midday := day.Shifts[0]
	assert.Equal(t, "Midday", midday.Shift)
	require.NotNil(t, midday.Difficulty)
	assert.Equal(t, 4.0, *midday.Difficulty)
	assert.Equal(t, "hard", midday.ComfortLevel)
	require.NotNil(t, midday.KitchenDifficulty)
	assert.Equal(t, 3.0, *midday.KitchenDifficulty)
	require.NotNil(t, midday.RevenuePerSala)
	assert.Equal(t, 450.0, *midday.RevenuePerSala)
	assert.NotEmpty(t, midday.ID)

	night := day.Shifts[1]
	assert.Nil(t, night.Difficulty, "no answers, no difficulty")
	assert.Empty(t, night.ComfortLevel)

	// AND: the day is listed
	list := decode[[]DayDTO](t, s.do(t, http.MethodGet, "/api/days?from=2026-02-01&to=2026-02-28", nil))
	require.Len(t, list, 1)
	assert.Equal(t, "2026-02-09", list[0].Date)
}

func TestSaveDay_Rejections(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		body any
	}{
		{"bad date", DayRequest{Date: "09/02/2026"}},
		{"unknown shift", DayRequest{Date: "2026-02-09", Shifts: []ShiftRequest{{Shift: "brunch", Revenue: 10}}}},
		{"duplicate shift", DayRequest{Date: "2026-02-09", Shifts: []ShiftRequest{{Shift: "Midday"}, {Shift: "comida"}}}},
		{"negative revenue", DayRequest{Date: "2026-02-09", Shifts: []ShiftRequest{{Shift: "Night", Revenue: -5}}}},
		{"not json", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/days", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestEvents_CreateAndList(t *testing.T) {
	// GIVEN
	s := newTestServer(t)

	// WHEN
	rec := s.do(t, http.MethodPost, "/api/events", EventRequest{Date: "2026-02-20", Name: "Concierto"})

	// THEN
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ev := decode[forecast.DemandEvent](t, rec)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, forecast.ImpactMedium, ev.Impact)

	list := decode[[]forecast.DemandEvent](t, s.do(t, http.MethodGet, "/api/events?from=2026-02-16&to=2026-02-22", nil))
	require.Len(t, list, 1)
	assert.Equal(t, "Concierto", list[0].Name)

	empty := decode[[]forecast.DemandEvent](t, s.do(t, http.MethodGet, "/api/events?from=2026-03-01", nil))
	assert.Empty(t, empty)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/events", EventRequest{Date: "2026-02-20", Name: "x", Impact: "Enorme"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/events", EventRequest{Date: "2026-02-20"}).Code)
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestSettings(t *testing.T) {
	s := newTestServer(t)

	// Missing key
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/settings/shift_hours", nil).Code)

	// Valid write with a comma decimal
	rec := s.do(t, http.MethodPut, "/api/settings/conservative_factor", SetSettingRequest{Value: "0,95"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[SettingDTO](t, s.do(t, http.MethodGet, "/api/settings/conservative_factor", nil))
	assert.Equal(t, "0,95", got.Value)

	// Out of range
	rec = s.do(t, http.MethodPut, "/api/settings/conservative_factor", SetSettingRequest{Value: "3"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Learned state is not writable
	rec = s.do(t, http.MethodPut, "/api/settings/prediction_bias", SetSettingRequest{Value: "{}"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	all := decode[map[string]string](t, s.do(t, http.MethodGet, "/api/settings", nil))
	assert.Equal(t, map[string]string{"conservative_factor": "0,95"}, all)
}

// =============================================================================
// PREDICTIONS
// =============================================================================

func TestNextWeek_InsufficientHistory(t *testing.T) {
	// GIVEN: an empty store
	s := newTestServer(t)

	// WHEN
	rec := s.do(t, http.MethodGet, "/api/predictions/next-week", nil)

	// THEN
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decode[WeeklyForecastDTO](t, rec)
	assert.Equal(t, "2026-02-16", dto.WeekStart)
	assert.Nil(t, dto.TotalRevenue)
	assert.Empty(t, dto.Days)
	assert.NotEmpty(t, dto.Message)

	// AND: saving writes nothing
	saved := decode[SaveForecastDTO](t, s.do(t, http.MethodPost, "/api/predictions/next-week/save", nil))
	assert.False(t, saved.Saved)
}

func TestNextWeek_InvalidLocation(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/predictions/next-week?lat=abc&lon=1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/predictions/next-week?lat=40", nil).Code)
}

func TestPredictions_FullFlow(t *testing.T) {
	// GIVEN: eight steady weeks ending on 2026-02-08
	s := newTestServer(t)
	loaded := s.loadScenario(t, "steady-weeks")
	assert.Equal(t, 56, loaded.DaysLoaded)
	assert.Equal(t, "2026-02-08", loaded.To)

	// WHEN: forecasting live
	rec := s.do(t, http.MethodGet, "/api/predictions/next-week", nil)

	// THEN
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	live := decode[WeeklyForecastDTO](t, rec)
	assert.Equal(t, "2026-02-16", live.WeekStart)
	assert.False(t, live.IsSaved)
	require.Len(t, live.Days, 7)
	require.NotNil(t, live.TotalRevenue)
	assert.Greater(t, *live.TotalRevenue, 0.0)
	for _, d := range live.Days {
		require.NotNil(t, d.Staff, "every day gets a staffing plan")
	}

	// WHEN: saving
	saved := decode[SaveForecastDTO](t, s.do(t, http.MethodPost, "/api/predictions/next-week/save", nil))
	require.True(t, saved.Saved)
	assert.Equal(t, "2026-02-16", saved.WeekStart)

	// THEN: next-week now serves the saved row and by-week normalises to Monday
	again := decode[WeeklyForecastDTO](t, s.do(t, http.MethodGet, "/api/predictions/next-week", nil))
	assert.True(t, again.IsSaved)
	assert.Equal(t, *saved.TotalRevenue, *again.TotalRevenue)

	rec = s.do(t, http.MethodGet, "/api/predictions/by-week?week_start=2026-02-19", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	byWeek := decode[WeeklyForecastDTO](t, rec)
	assert.Equal(t, "2026-02-16", byWeek.WeekStart)
	assert.Len(t, byWeek.Days, 7)

	// AND: unknown and invalid weeks
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/predictions/by-week?week_start=2025-01-06", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/predictions/by-week", nil).Code)

	// AND: the day JSON carries the compact staffing form
	var raw struct {
		Days []map[string]any `json:"days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.NotEmpty(t, raw.Days)
	assert.Contains(t, raw.Days[0], "staff_sala")
	assert.Contains(t, raw.Days[0], "shift_midday")
}

func TestEvaluate_NothingPending(t *testing.T) {
	// GIVEN: history but no saved forecast for last week
	s := newTestServer(t)
	s.loadScenario(t, "steady-weeks")

	// WHEN
	rec := s.do(t, http.MethodPost, "/api/predictions/evaluate", nil)

	// THEN: patterns are still mined
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decode[EvaluationDTO](t, rec)
	assert.False(t, dto.Evaluated)
	assert.Greater(t, dto.PatternsSaved, 0)

	history := decode[map[string][]AccuracyWeekDTO](t, s.do(t, http.MethodGet, "/api/predictions/accuracy-history?limit=5", nil))
	assert.Empty(t, history["weeks"])
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/predictions/accuracy-history?limit=x", nil).Code)
}

// =============================================================================
// PATTERNS, ANALYTICS, HEALTH
// =============================================================================

func TestPatterns_ComputeAndList(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "steady-weeks")

	patterns := decode[[]PatternDTO](t, s.do(t, http.MethodGet, "/api/patterns", nil))
	require.NotEmpty(t, patterns, "loading a scenario mines patterns")

	var weekday int
	for _, p := range patterns {
		if p.Type == string(forecast.PatternWeekdaySeasonal) {
			weekday++
			assert.NotEqual(t, "null", string(p.Payload))
		}
	}
	assert.Equal(t, 7, weekday)

	computed := decode[map[string]int](t, s.do(t, http.MethodPost, "/api/patterns/compute", nil))
	assert.Equal(t, len(patterns), computed["saved"])
}

func TestComfortReport(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "steady-weeks")

	rec := s.do(t, http.MethodGet, "/api/analytics/comfort", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rep := decode[analytics.Report](t, rec)
	assert.Len(t, rep.Schemas, len(analytics.SalaSchemas))
	assert.Len(t, rep.Bands, 7)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/analytics/comfort?min_shifts=0", nil).Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthDTO](t, rec).Status)
}
