package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/warp/shift-forecast/forecast"
)

// Open-Meteo endpoints. Past ranges go to the archive API, anything
// reaching today or later to the forecast API.
const (
	OpenMeteoForecastURL = "https://api.open-meteo.com/v1"
	OpenMeteoArchiveURL  = "https://archive-api.open-meteo.com/v1"
	DefaultTimezone      = "Europe/Madrid"

	openMeteoDaily = "weather_code,temperature_2m_max,temperature_2m_min,precipitation_sum,wind_speed_10m_max"
)

// OpenMeteo is a forecast.WeatherProvider backed by the Open-Meteo APIs.
// No API key is needed.
type OpenMeteo struct {
	Forecast *HTTPClient
	Archive  *HTTPClient
	Timezone string
	Now      func() time.Time
}

// NewOpenMeteo returns a provider for the public Open-Meteo endpoints.
func NewOpenMeteo(timeout time.Duration) *OpenMeteo {
	return &OpenMeteo{
		Forecast: NewHTTPClient(OpenMeteoForecastURL, timeout),
		Archive:  NewHTTPClient(OpenMeteoArchiveURL, timeout),
		Timezone: DefaultTimezone,
	}
}

type openMeteoResponse struct {
	Daily struct {
		Time      []string   `json:"time"`
		Code      []*int     `json:"weather_code"`
		TempMax   []*float64 `json:"temperature_2m_max"`
		TempMin   []*float64 `json:"temperature_2m_min"`
		Precip    []*float64 `json:"precipitation_sum"`
		WindSpeed []*float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

// DailyWeather returns one entry per date in [from, to] reported by the API.
func (o *OpenMeteo) DailyWeather(ctx context.Context, from, to time.Time, loc forecast.Location) ([]forecast.WeatherDay, error) {
	if !loc.Valid() {
		return nil, nil
	}
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	client, endpoint := o.Forecast, "/forecast"
	if !forecast.DateOf(to).After(forecast.DateOf(now()).AddDate(0, 0, -1)) {
		client, endpoint = o.Archive, "/archive"
	}
	tz := o.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(*loc.Lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(*loc.Lon, 'f', -1, 64))
	q.Set("daily", openMeteoDaily)
	q.Set("timezone", tz)
	q.Set("start_date", forecast.FormatDate(from))
	q.Set("end_date", forecast.FormatDate(to))

	var res openMeteoResponse
	if err := client.GetJSON(ctx, endpoint, q, &res); err != nil {
		return nil, fmt.Errorf("open-meteo: %w", err)
	}

	d := res.Daily
	out := make([]forecast.WeatherDay, 0, len(d.Time))
	for i, raw := range d.Time {
		date, err := forecast.ParseDate(raw)
		if err != nil {
			continue
		}
		w := forecast.Weather{
			Code:       at(d.Code, i),
			TempMax:    at(d.TempMax, i),
			TempMin:    at(d.TempMin, i),
			PrecipMm:   at(d.Precip, i),
			WindMaxKmh: at(d.WindSpeed, i),
		}
		if w.Code != nil {
			w.Description = DescribeWeatherCode(*w.Code)
		}
		out = append(out, forecast.WeatherDay{Date: date, Weather: w})
	}
	return out, nil
}

func at[T any](xs []*T, i int) *T {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

var wmoDescriptions = map[int]string{
	0:  "Despejado",
	1:  "Mayormente despejado",
	2:  "Parcialmente nublado",
	3:  "Nublado",
	45: "Niebla",
	48: "Niebla escarchada",
	51: "Llovizna ligera",
	53: "Llovizna",
	55: "Llovizna densa",
	56: "Llovizna helada ligera",
	57: "Llovizna helada densa",
	61: "Lluvia ligera",
	63: "Lluvia moderada",
	65: "Lluvia fuerte",
	66: "Lluvia helada ligera",
	67: "Lluvia helada fuerte",
	71: "Nieve ligera",
	73: "Nieve moderada",
	75: "Nieve fuerte",
	77: "Granizo",
	80: "Chubascos ligeros",
	81: "Chubascos moderados",
	82: "Chubascos fuertes",
	85: "Chubascos de nieve ligeros",
	86: "Chubascos de nieve fuertes",
	95: "Tormenta",
	96: "Tormenta con granizo",
	99: "Tormenta fuerte con granizo",
}

// DescribeWeatherCode returns the Spanish label of a WMO weather code.
func DescribeWeatherCode(code int) string {
	if s, ok := wmoDescriptions[code]; ok {
		return s
	}
	return "Código " + strconv.Itoa(code)
}
