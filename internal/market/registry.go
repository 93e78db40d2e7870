// Package market holds the static registry of wholesale markets: their
// locations for nearest-market lookup and their regional price multipliers.
package market

import (
	"math"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NeutralMultiplier applies to unknown markets and non-positive multipliers.
const NeutralMultiplier = 1.0

// Market is one wholesale market.
type Market struct {
	Name       string
	Latitude   float64
	Longitude  float64
	Multiplier float64
}

// Point returns the market location as an orb point (lon, lat).
func (m Market) Point() orb.Point {
	return orb.Point{m.Longitude, m.Latitude}
}

// Registry is an immutable set of markets keyed by normalized name.
type Registry struct {
	markets []Market
	byKey   map[string]int
}

// DefaultMarkets returns the built-in market table.
func DefaultMarkets() []Market {
	return []Market{
		{Name: "Bangalore", Latitude: 12.9716, Longitude: 77.5946, Multiplier: 1.0},
		{Name: "Chennai", Latitude: 13.0827, Longitude: 80.2707, Multiplier: 1.0},
		{Name: "Delhi", Latitude: 28.6139, Longitude: 77.2090, Multiplier: 1.1},
		{Name: "Kochi", Latitude: 9.9312, Longitude: 76.2673, Multiplier: 0.95},
		{Name: "Ludhiana", Latitude: 30.9010, Longitude: 75.8573, Multiplier: 1.05},
		{Name: "Mumbai", Latitude: 19.0760, Longitude: 72.8777, Multiplier: 1.15},
	}
}

// DefaultRegistry returns a registry over DefaultMarkets.
func DefaultRegistry() *Registry {
	return NewRegistry(DefaultMarkets())
}

// NewRegistry builds a registry. Names are normalized; later duplicates win.
func NewRegistry(markets []Market) *Registry {
	r := &Registry{byKey: make(map[string]int, len(markets))}
	for _, m := range markets {
		m.Name = Normalize(m.Name)
		key := strings.ToLower(m.Name)
		if i, ok := r.byKey[key]; ok {
			r.markets[i] = m
			continue
		}
		r.byKey[key] = len(r.markets)
		r.markets = append(r.markets, m)
	}
	return r
}

// Normalize trims and title-cases a market name ("  new delhi" -> "New Delhi").
func Normalize(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	// Casers keep state and are not safe to share between goroutines.
	return cases.Title(language.English).String(strings.Join(fields, " "))
}

// Lookup finds a market by name, case-insensitively.
func (r *Registry) Lookup(name string) (Market, bool) {
	i, ok := r.byKey[strings.ToLower(Normalize(name))]
	if !ok {
		return Market{}, false
	}
	return r.markets[i], true
}

// Multiplier returns the price multiplier for name, or NeutralMultiplier when
// the market is unknown or its multiplier is not a positive number.
func (r *Registry) Multiplier(name string) float64 {
	m, ok := r.Lookup(name)
	if !ok || !(m.Multiplier > 0) || math.IsInf(m.Multiplier, 0) {
		return NeutralMultiplier
	}
	return m.Multiplier
}

// Nearest returns the market closest to (lat, lon) by great-circle distance,
// along with the distance in kilometres. ok is false for an empty registry.
func (r *Registry) Nearest(lat, lon float64) (m Market, km float64, ok bool) {
	if len(r.markets) == 0 {
		return Market{}, 0, false
	}

	from := orb.Point{lon, lat}
	best, bestDist := 0, math.Inf(1)
	for i, candidate := range r.markets {
		if d := geo.DistanceHaversine(from, candidate.Point()); d < bestDist {
			best, bestDist = i, d
		}
	}
	return r.markets[best], bestDist / 1000, true
}

// Names returns the market names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, len(r.markets))
	for i, m := range r.markets {
		out[i] = m.Name
	}
	sort.Strings(out)
	return out
}
