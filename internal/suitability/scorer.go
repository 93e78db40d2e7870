// Package suitability scores how well an environmental snapshot fits a crop's
// agronomic rules, and blends that score with the crop's relative price.
package suitability

import (
	"math"

	"github.com/agrichain/cropadvisor/internal/agro"
	"github.com/agrichain/cropadvisor/internal/rules"
)

// Scoring constants.
const (
	// NeutralScore is the environmental score, in percent, of a crop without rules.
	NeutralScore = 60.0

	// PartialCredit is the normalized sub-score for absent readings and
	// soil type mismatches.
	PartialCredit = 0.6

	// DegenerateSpan is the sub-score for a range whose max does not exceed its min.
	DegenerateSpan = 0.6

	EnvironmentWeight = 0.7
	PriceWeight       = 0.3
)

// Scorer evaluates rule sets against snapshots. The zero value is ready to use.
type Scorer struct{}

// Environmental returns the weighted environmental score in percent [0,100].
// An empty rule set, or one whose weights sum to zero, scores NeutralScore.
func (Scorer) Environmental(rs []rules.Rule, s agro.EnvironmentalSnapshot) float64 {
	var weighted, total float64
	for _, r := range rs {
		weighted += r.Weight * SubScore(r, s)
		total += r.Weight
	}
	if total <= 0 || math.IsNaN(weighted) || math.IsInf(weighted, 0) {
		return NeutralScore
	}
	return clamp(100*weighted/total, 0, 100)
}

// Final blends an environmental score (percent) with the crop's price relative
// to the most expensive candidate, rounding to one decimal.
func (Scorer) Final(environmental, price, maxPrice float64) float64 {
	priceScore := 0.0
	if maxPrice > 0 && price > 0 {
		priceScore = math.Min(price/maxPrice, 1)
	}
	env := clamp(environmental, 0, 100) / 100
	return RoundTo(100*(EnvironmentWeight*env+PriceWeight*priceScore), 1)
}

// Score is Environmental followed by Final.
func (sc Scorer) Score(rs []rules.Rule, s agro.EnvironmentalSnapshot, price, maxPrice float64) float64 {
	return sc.Final(sc.Environmental(rs, s), price, maxPrice)
}

// SubScore returns the normalized [0,1] score of one rule.
func SubScore(r rules.Rule, s agro.EnvironmentalSnapshot) float64 {
	if r.Categorical() {
		target, _ := agro.ParseSoilType(r.Target)
		if s.SoilType == target {
			return 1
		}
		return PartialCredit
	}

	value, ok := s.Value(r.Parameter)
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return PartialCredit
	}
	return Normalize(value, r.Min, r.Max)
}

// Normalize maps value onto [0,1] against the range [lo,hi]. Inside the range
// the score peaks at the midpoint and falls linearly toward either bound.
// Outside it falls linearly by one span width.
func Normalize(value, lo, hi float64) float64 {
	span := hi - lo
	if span <= 0 {
		return DegenerateSpan
	}

	switch {
	case value < lo:
		return math.Max(0, 1-(lo-value)/span)
	case value > hi:
		return math.Max(0, 1-(value-hi)/span)
	default:
		mid := (lo + hi) / 2
		return 1 - math.Abs(value-mid)/(span/2)
	}
}

// RoundTo rounds v half away from zero to the given number of decimals.
func RoundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		return lo
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
