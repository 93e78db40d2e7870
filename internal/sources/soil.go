package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/agrichain/cropadvisor/internal/agro"
	"github.com/agrichain/cropadvisor/internal/logging"
	"github.com/agrichain/cropadvisor/internal/sources/cache"
)

// topsoilDepth is the SoilGrids depth interval read for every property.
const topsoilDepth = "0-5cm"

// soilCacheNamespace prefixes soil cache keys.
const soilCacheNamespace = "soilgrids"

// SoilGrids property names.
const (
	propNitrogen = "nitrogen"
	propPH       = "phh2o"
	propClay     = "clay"
	propSand     = "sand"
	propSilt     = "silt"
	propCEC      = "cec"
)

// Soil is the topsoil profile at a location. Phosphorus and potassium are not
// published by SoilGrids and always hold their fallbacks.
type Soil struct {
	Nitrogen   float64       `json:"nitrogen"`
	Phosphorus float64       `json:"phosphorus"`
	Potassium  float64       `json:"potassium"`
	PH         float64       `json:"ph"`
	SoilType   agro.SoilType `json:"soil_type"`
	ClayPct    float64       `json:"clay_pct,omitempty"`
	SandPct    float64       `json:"sand_pct,omitempty"`
	SiltPct    float64       `json:"silt_pct,omitempty"`
	CEC        float64       `json:"cec,omitempty"`
}

// FallbackSoil returns the profile used when the provider cannot answer.
func FallbackSoil() Soil {
	return Soil{
		Nitrogen:   agro.FallbackNitrogen,
		Phosphorus: agro.FallbackPhosphorus,
		Potassium:  agro.FallbackPotassium,
		PH:         agro.FallbackPH,
		SoilType:   agro.FallbackSoilType,
	}
}

// SoilProvider reads topsoil properties from the SoilGrids v2 query API.
// Complete profiles are kept in an optional disk cache.
type SoilProvider struct {
	fetcher
	cache *cache.FileStore
}

// NewSoilProvider returns a provider for the API at baseURL. store may be nil.
func NewSoilProvider(baseURL string, client *http.Client, timeout time.Duration, store *cache.FileStore) *SoilProvider {
	return &SoilProvider{fetcher: newFetcher(baseURL, client, timeout), cache: store}
}

type soilGridsResponse struct {
	Properties struct {
		Layers []soilGridsLayer `json:"layers"`
	} `json:"properties"`
}

type soilGridsLayer struct {
	Name        string `json:"name"`
	UnitMeasure struct {
		DFactor float64 `json:"d_factor"`
	} `json:"unit_measure"`
	Depths []struct {
		Label  string `json:"label"`
		Values struct {
			Mean *float64 `json:"mean"`
		} `json:"values"`
	} `json:"depths"`
}

// value returns the topsoil mean converted to target units.
func (l soilGridsLayer) value() (float64, bool) {
	for _, d := range l.Depths {
		if d.Label != topsoilDepth || d.Values.Mean == nil {
			continue
		}
		factor := l.UnitMeasure.DFactor
		if factor <= 0 {
			factor = 1
		}
		return *d.Values.Mean / factor, true
	}
	return 0, false
}

// Fetch returns the topsoil profile. Missing properties keep their fallbacks
// and are reported through ErrMissingFields alongside the partial result.
func (p *SoilProvider) Fetch(ctx context.Context, lat, lon float64) (Soil, error) {
	logger := logging.FromContext(ctx).With().
		Str("component", "sources").
		Str("provider", "soil").
		Logger()

	key := cache.Key(soilCacheNamespace, lat, lon)
	if p.cache.Enabled() {
		var cached Soil
		err := p.cache.GetJSON(key, &cached)
		switch {
		case err == nil:
			logger.Debug().Msg("soil profile cache hit")
			return cached, nil
		case errors.Is(err, cache.ErrCacheNotFound), errors.Is(err, cache.ErrCacheExpired):
		default:
			logger.Debug().Err(err).Msg("soil cache entry unreadable, dropping it")
			if delErr := p.cache.Delete(key); delErr != nil {
				logger.Debug().Err(delErr).Msg("soil cache delete failed")
			}
		}
	}

	params := coordParams("lat", "lon", lat, lon)
	for _, prop := range []string{propNitrogen, propPH, propClay, propSand, propSilt, propCEC} {
		params.Add("property", prop)
	}
	params.Set("depth", topsoilDepth)
	params.Set("value", "mean")

	var body soilGridsResponse
	if err := p.getJSON(ctx, params, &body); err != nil {
		return FallbackSoil(), err
	}

	values := make(map[string]float64, len(body.Properties.Layers))
	for _, layer := range body.Properties.Layers {
		if v, ok := layer.value(); ok {
			values[layer.Name] = v
		}
	}

	soil, missing := soilFromValues(values)
	if len(missing) > 0 {
		return soil, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	if p.cache.Enabled() {
		if err := p.cache.SetJSON(key, soil); err != nil {
			logger.Debug().Err(err).Msg("soil cache write failed")
		}
	}
	return soil, nil
}

// soilFromValues builds a profile from converted SoilGrids values and lists
// the required properties that were absent.
func soilFromValues(values map[string]float64) (Soil, []string) {
	soil := FallbackSoil()
	var missing []string

	if v, ok := values[propNitrogen]; ok && v >= 0 {
		soil.Nitrogen = v
	} else {
		missing = append(missing, propNitrogen)
	}
	if v, ok := values[propPH]; ok && v > 0 {
		soil.PH = v
	} else {
		missing = append(missing, propPH)
	}
	if v, ok := values[propCEC]; ok {
		soil.CEC = v
	}

	clay, okClay := values[propClay]
	sand, okSand := values[propSand]
	silt, okSilt := values[propSilt]
	if okClay && okSand && okSilt {
		soil.ClayPct, soil.SandPct, soil.SiltPct = clay, sand, silt
		soil.SoilType = agro.ClassifySoil(clay, sand, silt)
	} else {
		for name, ok := range map[string]bool{propClay: okClay, propSand: okSand, propSilt: okSilt} {
			if !ok {
				missing = append(missing, name)
			}
		}
	}

	sort.Strings(missing)
	return soil, missing
}
