/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the forecasting model from the external API contract. All fields are
  snake_case and dates are YYYY-MM-DD.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Records:     DayRequest, ShiftRequest, DayDTO, ShiftDTO
  Forecasts:   WeeklyForecastDTO, SaveForecastDTO, AccuracyWeekDTO
  Evaluation:  EvaluationDTO
  Patterns:    PatternDTO
  Settings:    SettingDTO, SetSettingRequest
  Events:      EventRequest
  Scenarios:   ScenarioDTO, LoadScenarioRequest

  Per-day forecasts are rendered by forecast.DayForecast itself, in the
  same shape that is persisted.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - forecast/codec.go: Day wire format
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/warp/shift-forecast/forecast"
)

// =============================================================================
// RECORDS
// =============================================================================

// ShiftRequest is one shift of a recorded day.
type ShiftRequest struct {
	Shift       string            `json:"shift"`
	Revenue     float64           `json:"revenue"`
	HoursWorked float64           `json:"hours_worked"`
	StaffSala   int               `json:"staff_sala"`
	StaffCocina int               `json:"staff_cocina"`
	Weather     *forecast.Weather `json:"weather,omitempty"`
	forecast.FeedbackAnswers
}

// DayRequest records a day. Revenue and hours default to the shift sums.
type DayRequest struct {
	Date         string            `json:"date"`
	Revenue      *float64          `json:"revenue,omitempty"`
	HoursWorked  *float64          `json:"hours_worked,omitempty"`
	IsHoliday    bool              `json:"is_holiday"`
	FeedbackOnly bool              `json:"feedback_only"`
	Notes        string            `json:"notes,omitempty"`
	Weather      *forecast.Weather `json:"weather,omitempty"`
	Shifts       []ShiftRequest    `json:"shifts"`
}

// ShiftDTO is a stored shift with its derived scores.
type ShiftDTO struct {
	ID                string            `json:"id,omitempty"`
	Shift             string            `json:"shift"`
	Revenue           float64           `json:"revenue"`
	HoursWorked       float64           `json:"hours_worked"`
	StaffSala         int               `json:"staff_sala"`
	StaffCocina       int               `json:"staff_cocina"`
	Difficulty        *float64          `json:"difficulty,omitempty"`
	KitchenDifficulty *float64          `json:"kitchen_difficulty,omitempty"`
	ComfortLevel      string            `json:"comfort_level,omitempty"`
	RevenuePerSala    *float64          `json:"revenue_per_sala,omitempty"`
	RevenuePerCocina  *float64          `json:"revenue_per_cocina,omitempty"`
	Weather           *forecast.Weather `json:"weather,omitempty"`
	forecast.FeedbackAnswers
}

// DayDTO is a stored day.
type DayDTO struct {
	Date         string            `json:"date"`
	DayName      string            `json:"day_name"`
	Revenue      float64           `json:"revenue"`
	HoursWorked  float64           `json:"hours_worked"`
	TotalStaff   int               `json:"total_staff"`
	IsHoliday    bool              `json:"is_holiday"`
	FeedbackOnly bool              `json:"feedback_only"`
	Notes        string            `json:"notes,omitempty"`
	Weather      *forecast.Weather `json:"weather,omitempty"`
	Shifts       []ShiftDTO        `json:"shifts"`
}

// =============================================================================
// FORECASTS
// =============================================================================

// WeeklyForecastDTO is a weekly forecast. Days is empty when history is
// insufficient; Message then says why.
type WeeklyForecastDTO struct {
	WeekStart     string                        `json:"week_start_monday"`
	TotalRevenue  *float64                      `json:"total_revenue"`
	IsSaved       bool                          `json:"is_saved_prediction"`
	WeeksUsed     int                           `json:"weeks_used,omitempty"`
	Days          []forecast.DayForecast        `json:"days"`
	ActualRevenue *float64                      `json:"actual_revenue,omitempty"`
	CompletedAt   string                        `json:"completed_at,omitempty"`
	Accuracy      *forecast.AccuracyMetrics     `json:"accuracy,omitempty"`
	StaffAccuracy *forecast.StaffAccuracyReport `json:"staff_accuracy,omitempty"`
	Message       string                        `json:"message,omitempty"`
}

// SaveForecastDTO is the result of saving next week's forecast.
type SaveForecastDTO struct {
	Saved        bool     `json:"saved"`
	WeekStart    string   `json:"week_start_monday,omitempty"`
	TotalRevenue *float64 `json:"total_revenue,omitempty"`
	Message      string   `json:"message,omitempty"`
}

// AccuracyWeekDTO is one evaluated week.
type AccuracyWeekDTO struct {
	WeekStart          string   `json:"week_start_monday"`
	PredictedRevenue   float64  `json:"predicted_revenue"`
	ActualRevenue      *float64 `json:"actual_revenue"`
	ErrorPercent       *float64 `json:"error_percent"`
	AccuracyPercent    *float64 `json:"accuracy_percent"`
	StaffSalaMAE       *float64 `json:"staff_sala_mae"`
	StaffExactMatchPct *float64 `json:"staff_exact_match_pct"`
}

// EvaluationDTO is the result of one evaluation cycle.
type EvaluationDTO struct {
	Evaluated     bool                          `json:"evaluated"`
	WeekStart     string                        `json:"week_start_monday,omitempty"`
	Accuracy      *forecast.AccuracyMetrics     `json:"accuracy,omitempty"`
	StaffAccuracy *forecast.StaffAccuracyReport `json:"staff_accuracy,omitempty"`
	BiasUpdated   bool                          `json:"bias_updated"`
	DaysLearned   int                           `json:"days_learned"`
	PatternsSaved int                           `json:"patterns_saved"`
}

// =============================================================================
// PATTERNS, SETTINGS, EVENTS
// =============================================================================

// PatternDTO is a mined pattern.
type PatternDTO struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	Confidence float64         `json:"confidence"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

type SettingDTO struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type SetSettingRequest struct {
	Value string `json:"value"`
}

// EventRequest creates a demand event.
type EventRequest struct {
	Date        string `json:"date"`
	Name        string `json:"name"`
	Impact      string `json:"impact"`
	Description string `json:"description"`
}

// =============================================================================
// SCENARIOS & MISC
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Weeks       int    `json:"weeks"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// LoadScenarioDTO reports what a scenario wrote.
type LoadScenarioDTO struct {
	Scenario      string `json:"scenario"`
	DaysLoaded    int    `json:"days_loaded"`
	PatternsSaved int    `json:"patterns_saved"`
	From          string `json:"from"`
	To            string `json:"to"`
}

type HealthDTO struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Time     string `json:"time"`
}

// ErrorResponse is the error envelope of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toWeeklyDTO(f forecast.WeeklyForecast) WeeklyForecastDTO {
	dto := WeeklyForecastDTO{
		WeekStart:     forecast.FormatDate(f.WeekStart),
		IsSaved:       f.Saved,
		WeeksUsed:     f.WeeksUsed,
		Days:          f.Days,
		ActualRevenue: f.ActualRevenue,
		Accuracy:      f.Accuracy,
		StaffAccuracy: f.StaffAccuracy,
	}
	if dto.Days == nil {
		dto.Days = []forecast.DayForecast{}
	}
	if !f.IsEmpty() {
		total := f.Total
		dto.TotalRevenue = &total
	}
	if f.CompletedAt != nil {
		dto.CompletedAt = forecast.FormatDate(*f.CompletedAt)
	}
	return dto
}

func toAccuracyWeekDTO(f forecast.WeeklyForecast) AccuracyWeekDTO {
	dto := AccuracyWeekDTO{
		WeekStart:        forecast.FormatDate(f.WeekStart),
		PredictedRevenue: f.Total,
		ActualRevenue:    f.ActualRevenue,
	}
	if a := f.Accuracy; a != nil {
		dto.ErrorPercent = &a.OverallErrorPct
		dto.AccuracyPercent = &a.AccuracyPct
	}
	if s := f.StaffAccuracy; s != nil {
		dto.StaffSalaMAE = &s.MAE
		dto.StaffExactMatchPct = &s.ExactMatchPct
	}
	return dto
}

func toDayDTO(d forecast.DailyRecord) DayDTO {
	dto := DayDTO{
		Date:         forecast.FormatDate(d.Date),
		DayName:      forecast.DayName(forecast.WeekdayIndex(d.Date)),
		Revenue:      d.Revenue,
		HoursWorked:  d.HoursWorked,
		TotalStaff:   d.TotalStaff,
		IsHoliday:    d.IsHoliday,
		FeedbackOnly: d.FeedbackOnly,
		Notes:        d.Notes,
		Weather:      d.Weather,
		Shifts:       make([]ShiftDTO, 0, len(d.Shifts)),
	}
	for _, s := range d.Shifts {
		dto.Shifts = append(dto.Shifts, ShiftDTO{
			ID:                s.ID,
			Shift:             string(s.Shift),
			Revenue:           s.Revenue,
			HoursWorked:       s.HoursWorked,
			StaffSala:         s.StaffSala,
			StaffCocina:       s.StaffCocina,
			Difficulty:        s.Difficulty,
			KitchenDifficulty: s.KitchenDifficulty,
			ComfortLevel:      s.ComfortLevel,
			RevenuePerSala:    s.RevenuePerSala,
			RevenuePerCocina:  s.RevenuePerCocina,
			Weather:           s.Weather,
			FeedbackAnswers:   s.Feedback,
		})
	}
	return dto
}

func toPatternDTO(p forecast.DetectedPattern) PatternDTO {
	payload := json.RawMessage(p.Payload)
	if !json.Valid(payload) {
		payload = json.RawMessage("null")
	}
	return PatternDTO{
		ID:         p.ID,
		Type:       string(p.Type),
		Key:        p.Key,
		Payload:    payload,
		Confidence: p.Confidence,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  p.UpdatedAt.Format(time.RFC3339),
	}
}
