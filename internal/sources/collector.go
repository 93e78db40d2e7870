package sources

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agrichain/cropadvisor/internal/agro"
	"github.com/agrichain/cropadvisor/internal/logging"
	"github.com/agrichain/cropadvisor/internal/sources/cache"
)

// Options configures a Collector.
type Options struct {
	WeatherURL   string
	SoilURL      string
	ClimateURL   string
	ElevationURL string

	// Timeout bounds each upstream call. Zero selects DefaultTimeout.
	Timeout time.Duration
	Client  *http.Client

	// SoilCache keeps soil profiles on disk. Nil disables it.
	SoilCache          *cache.FileStore
	ElevationCacheSize int

	// Offline skips every upstream call and returns fallbacks.
	Offline bool

	// Now overrides the clock used for the climate window.
	Now func() time.Time
}

// Collector assembles an EnvironmentalSnapshot from the four providers,
// querying them concurrently.
type Collector struct {
	weather   *WeatherProvider
	soil      *SoilProvider
	climate   *ClimateProvider
	elevation *ElevationProvider
	offline   bool
}

// NewCollector builds the providers described by opts.
func NewCollector(opts Options) (*Collector, error) {
	elevation, err := NewElevationProvider(opts.ElevationURL, opts.Client, opts.Timeout, opts.ElevationCacheSize)
	if err != nil {
		return nil, err
	}
	climate := NewClimateProvider(opts.ClimateURL, opts.Client, opts.Timeout)
	if opts.Now != nil {
		climate.now = opts.Now
	}
	return &Collector{
		weather:   NewWeatherProvider(opts.WeatherURL, opts.Client, opts.Timeout),
		soil:      NewSoilProvider(opts.SoilURL, opts.Client, opts.Timeout, opts.SoilCache),
		climate:   climate,
		elevation: elevation,
		offline:   opts.Offline,
	}, nil
}

// Collect returns the snapshot for a location and one warning per degraded
// provider. Every field is populated: failed providers contribute fallbacks.
func (c *Collector) Collect(ctx context.Context, lat, lon float64) (agro.EnvironmentalSnapshot, []string) {
	logger := logging.FromContext(ctx).With().
		Str("component", "sources").
		Str("operation", "collect").
		Float64("latitude", lat).
		Float64("longitude", lon).
		Logger()

	if c.offline {
		logger.Info().Msg("offline mode, using fallback environmental values")
		return agro.FallbackSnapshot(), []string{"offline mode: using fallback environmental values"}
	}

	var (
		weather   Weather
		soil      Soil
		climate   Climate
		elevation float64

		mu       sync.Mutex
		warnings = make(map[string]string, 4)
	)
	degrade := func(provider string, err error) {
		if err == nil {
			return
		}
		logger.Warn().Err(err).Str("provider", provider).Msg("provider degraded, using fallback values")
		mu.Lock()
		warnings[provider] = fmt.Sprintf("%s: %v", provider, err)
		mu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		var err error
		weather, err = c.weather.Fetch(ctx, lat, lon)
		degrade("weather", err)
		return nil
	})
	g.Go(func() error {
		var err error
		soil, err = c.soil.Fetch(ctx, lat, lon)
		degrade("soil", err)
		return nil
	})
	g.Go(func() error {
		var err error
		climate, err = c.climate.Fetch(ctx, lat, lon)
		degrade("climate", err)
		return nil
	})
	g.Go(func() error {
		var err error
		elevation, err = c.elevation.Fetch(ctx, lat, lon)
		degrade("elevation", err)
		return nil
	})
	// Providers never fail; errors become warnings.
	_ = g.Wait()

	snap := agro.EnvironmentalSnapshot{
		Nitrogen:          soil.Nitrogen,
		Phosphorus:        soil.Phosphorus,
		Potassium:         soil.Potassium,
		PH:                soil.PH,
		SoilType:          soil.SoilType,
		ElevationMeters:   elevation,
		TemperatureC:      weather.TemperatureC,
		HumidityPct:       weather.HumidityPct,
		RainfallMmInstant: weather.RainfallMm,
		WindSpeed:         weather.WindSpeed,
		AvgTempC:          climate.AvgTempC,
		AvgRainfallMmYear: climate.AvgRainfallMmYear,
	}.Sanitize()

	// Stable order for callers and tests.
	var out []string
	for _, provider := range []string{"weather", "soil", "climate", "elevation"} {
		if w, ok := warnings[provider]; ok {
			out = append(out, w)
		}
	}

	logger.Debug().
		Str("soil_type", string(snap.SoilType)).
		Int("warnings", len(out)).
		Int("elevation_cached", c.elevation.Cached()).
		Msg("environmental snapshot collected")
	return snap, out
}
