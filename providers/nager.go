package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warp/shift-forecast/forecast"
)

// NagerURL is the public Nager.Date API.
const NagerURL = "https://date.nager.at/api/v3"

// Nager is a forecast.HolidayProvider backed by Nager.Date. No API key is
// needed.
type Nager struct {
	Client *HTTPClient
}

// NewNager returns a provider for the public Nager.Date endpoint.
func NewNager(timeout time.Duration) *Nager {
	return &Nager{Client: NewHTTPClient(NagerURL, timeout)}
}

type nagerHoliday struct {
	Date      string `json:"date"`
	LocalName string `json:"localName"`
	Name      string `json:"name"`
}

// Holidays returns the public holidays of countryCode dated in [from, to].
// Only the first two letters of the code are used.
func (n *Nager) Holidays(ctx context.Context, from, to time.Time, countryCode string) ([]forecast.Holiday, error) {
	cc := strings.ToUpper(strings.TrimSpace(countryCode))
	if len(cc) < 2 {
		return nil, nil
	}
	cc = cc[:2]
	from, to = forecast.DateOf(from), forecast.DateOf(to)

	var out []forecast.Holiday
	for year := from.Year(); year <= to.Year(); year++ {
		var list []nagerHoliday
		if err := n.Client.GetJSON(ctx, fmt.Sprintf("/PublicHolidays/%d/%s", year, cc), nil, &list); err != nil {
			return nil, fmt.Errorf("nager: %w", err)
		}
		for _, h := range list {
			d, err := forecast.ParseDate(h.Date)
			if err != nil || d.Before(from) || d.After(to) {
				continue
			}
			name := h.LocalName
			if name == "" {
				name = h.Name
			}
			out = append(out, forecast.Holiday{Date: d, Name: name})
		}
	}
	return out, nil
}
