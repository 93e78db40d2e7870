package sources

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/agrichain/cropadvisor/internal/agro"
)

// Weather is the current weather at a location.
type Weather struct {
	TemperatureC float64 `json:"temperature_c"`
	HumidityPct  float64 `json:"humidity_pct"`
	RainfallMm   float64 `json:"rainfall_mm"`
	WindSpeed    float64 `json:"wind_speed"`
}

// FallbackWeather returns the weather used when the provider cannot answer.
func FallbackWeather() Weather {
	return Weather{
		TemperatureC: agro.FallbackTemperature,
		HumidityPct:  agro.FallbackHumidity,
		RainfallMm:   agro.FallbackRainfall,
		WindSpeed:    agro.FallbackWindSpeed,
	}
}

// WeatherProvider reads current conditions from the Open-Meteo forecast API.
type WeatherProvider struct {
	fetcher
}

// NewWeatherProvider returns a provider for the API at baseURL.
func NewWeatherProvider(baseURL string, client *http.Client, timeout time.Duration) *WeatherProvider {
	return &WeatherProvider{fetcher: newFetcher(baseURL, client, timeout)}
}

type openMeteoCurrent struct {
	Current struct {
		Temperature   *float64 `json:"temperature_2m"`
		Humidity      *float64 `json:"relative_humidity_2m"`
		Precipitation *float64 `json:"precipitation"`
		WindSpeed     *float64 `json:"wind_speed_10m"`
	} `json:"current"`
}

// Fetch returns the current weather. Fields missing from the response keep
// their fallback values and are reported through ErrMissingFields alongside
// the partial result.
func (p *WeatherProvider) Fetch(ctx context.Context, lat, lon float64) (Weather, error) {
	params := coordParams("latitude", "longitude", lat, lon)
	params.Set("current", "temperature_2m,relative_humidity_2m,precipitation,wind_speed_10m")
	params.Set("wind_speed_unit", "ms")

	var body openMeteoCurrent
	if err := p.getJSON(ctx, params, &body); err != nil {
		return FallbackWeather(), err
	}

	w := FallbackWeather()
	var missing []string
	take := func(name string, v *float64, dst *float64) {
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			missing = append(missing, name)
			return
		}
		*dst = *v
	}
	take("temperature_2m", body.Current.Temperature, &w.TemperatureC)
	take("relative_humidity_2m", body.Current.Humidity, &w.HumidityPct)
	take("precipitation", body.Current.Precipitation, &w.RainfallMm)
	take("wind_speed_10m", body.Current.WindSpeed, &w.WindSpeed)

	if len(missing) > 0 {
		return w, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	return w, nil
}
