package sources

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agrichain/cropadvisor/internal/agro"
)

// DefaultElevationCacheSize is the number of locations kept in memory.
const DefaultElevationCacheSize = 1024

// elevationKeyPrecision rounds coordinates for the in-memory cache (about 110 m).
const elevationKeyPrecision = 3

// ElevationProvider reads terrain elevation from the Open-Meteo elevation
// API. Answers are kept in an in-process LRU cache.
type ElevationProvider struct {
	fetcher
	cache *lru.Cache[string, float64]
}

// NewElevationProvider returns a provider for the API at baseURL, caching up
// to cacheSize locations.
func NewElevationProvider(baseURL string, client *http.Client, timeout time.Duration, cacheSize int) (*ElevationProvider, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultElevationCacheSize
	}
	c, err := lru.New[string, float64](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating elevation cache: %w", err)
	}
	return &ElevationProvider{fetcher: newFetcher(baseURL, client, timeout), cache: c}, nil
}

type openMeteoElevation struct {
	Elevation []float64 `json:"elevation"`
}

// Fetch returns the elevation in metres, or the fallback with an error.
func (p *ElevationProvider) Fetch(ctx context.Context, lat, lon float64) (float64, error) {
	key := fmt.Sprintf("%.*f,%.*f", elevationKeyPrecision, lat, elevationKeyPrecision, lon)
	if v, ok := p.cache.Get(key); ok {
		return v, nil
	}

	var body openMeteoElevation
	if err := p.getJSON(ctx, coordParams("latitude", "longitude", lat, lon), &body); err != nil {
		return agro.FallbackElevation, err
	}
	if len(body.Elevation) == 0 || math.IsNaN(body.Elevation[0]) || math.IsInf(body.Elevation[0], 0) {
		return agro.FallbackElevation, fmt.Errorf("%w: elevation", ErrMissingFields)
	}

	v := body.Elevation[0]
	p.cache.Add(key, v)
	return v, nil
}

// Cached returns the number of locations in the cache.
func (p *ElevationProvider) Cached() int {
	return p.cache.Len()
}
