package sources

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/agrichain/cropadvisor/internal/agro"
)

const (
	// climateWindowDays is the length of the trailing window averaged.
	climateWindowDays = 30
	daysPerYear       = 365
)

// Climate is the recent climate at a location.
type Climate struct {
	AvgTempC          float64 `json:"avg_temp_c"`
	AvgRainfallMmYear float64 `json:"avg_rainfall_mm_year"`
}

// FallbackClimate returns the climate used when the provider cannot answer.
func FallbackClimate() Climate {
	return Climate{AvgTempC: agro.FallbackAvgTemp, AvgRainfallMmYear: agro.FallbackAvgRainfall}
}

// ClimateProvider averages the trailing 30 days of the Open-Meteo archive:
// mean daily temperature, and daily precipitation annualized to mm per year.
type ClimateProvider struct {
	fetcher

	// now is a function that returns the current time (injectable for testing).
	now func() time.Time
}

// NewClimateProvider returns a provider for the archive API at baseURL.
func NewClimateProvider(baseURL string, client *http.Client, timeout time.Duration) *ClimateProvider {
	return &ClimateProvider{fetcher: newFetcher(baseURL, client, timeout), now: time.Now}
}

type openMeteoDaily struct {
	Daily struct {
		Time          []string   `json:"time"`
		TemperatureC  []*float64 `json:"temperature_2m_mean"`
		Precipitation []*float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

// Window returns the first and last day of the trailing window ending yesterday.
func (p *ClimateProvider) Window() (time.Time, time.Time) {
	end := p.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(climateWindowDays - 1))
	return start, end
}

// Fetch returns the trailing climate. Series with no usable day keep their
// fallback values and are reported through ErrMissingFields.
func (p *ClimateProvider) Fetch(ctx context.Context, lat, lon float64) (Climate, error) {
	start, end := p.Window()
	params := coordParams("latitude", "longitude", lat, lon)
	params.Set("start_date", start.Format(time.DateOnly))
	params.Set("end_date", end.Format(time.DateOnly))
	params.Set("daily", "temperature_2m_mean,precipitation_sum")
	params.Set("timezone", "UTC")

	var body openMeteoDaily
	if err := p.getJSON(ctx, params, &body); err != nil {
		return FallbackClimate(), err
	}

	c := FallbackClimate()
	var missing []string

	if mean, err := stats.Mean(present(body.Daily.TemperatureC)); err == nil && !math.IsNaN(mean) {
		c.AvgTempC = mean
	} else {
		missing = append(missing, "temperature_2m_mean")
	}

	if daily, err := stats.Mean(present(body.Daily.Precipitation)); err == nil && daily >= 0 {
		c.AvgRainfallMmYear = daily * daysPerYear
	} else {
		missing = append(missing, "precipitation_sum")
	}

	if len(missing) > 0 {
		return c, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	return c, nil
}

// present drops null and non-finite readings.
func present(values []*float64) stats.Float64Data {
	out := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			continue
		}
		out = append(out, *v)
	}
	return out
}
