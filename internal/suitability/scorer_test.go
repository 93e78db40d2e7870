package suitability_test

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrichain/cropadvisor/internal/agro"
	"github.com/agrichain/cropadvisor/internal/rules"
	"github.com/agrichain/cropadvisor/internal/suitability"
)

func TestEnvironmental_EmptyRuleSet(t *testing.T) {
	var sc suitability.Scorer
	snap := agro.FallbackSnapshot()

	assert.InDelta(t, 60.0, sc.Environmental(nil, snap), 0)
	assert.InDelta(t, 60.0, sc.Environmental([]rules.Rule{}, snap), 0)
	assert.InDelta(t, 60.0, sc.Environmental([]rules.Rule{{Parameter: "ph", Min: 5, Max: 7, Weight: 0}}, snap), 0)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name          string
		value, lo, hi float64
		want          float64
	}{
		{name: "midpoint", value: 6.75, lo: 6.0, hi: 7.5, want: 1},
		{name: "midpoint integer", value: 45, lo: 30, hi: 60, want: 1},
		{name: "quarter inside", value: 37.5, lo: 30, hi: 60, want: 0.5},
		{name: "lower bound", value: 30, lo: 30, hi: 60, want: 0},
		{name: "below min", value: 24, lo: 30, hi: 60, want: 0.8},
		{name: "above max", value: 66, lo: 30, hi: 60, want: 0.8},
		{name: "far below clamps to zero", value: -100, lo: 30, hi: 60, want: 0},
		{name: "far above clamps to zero", value: 1000, lo: 30, hi: 60, want: 0},
		{name: "degenerate span", value: 5, lo: 5, hi: 5, want: 0.6},
		{name: "inverted span", value: 5, lo: 7, hi: 5, want: 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, suitability.Normalize(tt.value, tt.lo, tt.hi), 1e-9)
		})
	}
}

func TestNormalize_MidpointIsExactlyOne(t *testing.T) {
	ranges := [][2]float64{{0, 1}, {6, 7.5}, {0.5, 1.5}, {10, 25}, {500, 1000}, {-10, 30}}
	for _, r := range ranges {
		mid := (r[0] + r[1]) / 2
		assert.Equal(t, 1.0, suitability.Normalize(mid, r[0], r[1]), "range %v", r)
	}
}

func TestSubScore(t *testing.T) {
	snap := agro.FallbackSnapshot()

	soilMatch := rules.Rule{Parameter: agro.ParamSoilType, Target: "loamy", Weight: 0.1}
	soilMiss := rules.Rule{Parameter: agro.ParamSoilType, Target: "clay", Weight: 0.1}
	unknown := rules.Rule{Parameter: "organic_carbon", Min: 1, Max: 2, Weight: 0.1}

	assert.InDelta(t, 1.0, suitability.SubScore(soilMatch, snap), 0)
	assert.InDelta(t, 0.6, suitability.SubScore(soilMiss, snap), 0)
	assert.InDelta(t, 0.6, suitability.SubScore(unknown, snap), 0)

	snap.PH = math.NaN()
	assert.InDelta(t, 0.6, suitability.SubScore(rules.Rule{Parameter: agro.ParamPH, Min: 6, Max: 7, Weight: 1}, snap), 0)
}

func TestEnvironmental_Weighted(t *testing.T) {
	var sc suitability.Scorer
	snap := agro.EnvironmentalSnapshot{PH: 6.5, Nitrogen: 0.5, SoilType: agro.SoilClay}

	rs := []rules.Rule{
		{Parameter: agro.ParamPH, Min: 6, Max: 7, Weight: 2},           // 1.0
		{Parameter: agro.ParamNitrogen, Min: 0.5, Max: 1.5, Weight: 1}, // 0.0 at bound
		{Parameter: agro.ParamSoilType, Target: "loamy", Weight: 1},    // 0.6
	}
	// (2*1 + 1*0 + 1*0.6) / 4 = 0.65
	assert.InDelta(t, 65.0, sc.Environmental(rs, snap), 1e-9)
}

func TestFinal(t *testing.T) {
	var sc suitability.Scorer

	tests := []struct {
		name                 string
		env, price, maxPrice float64
		want                 float64
	}{
		{name: "top price", env: 100, price: 30000, maxPrice: 30000, want: 100},
		{name: "no price data", env: 100, price: 0, maxPrice: 0, want: 70},
		{name: "neutral env half price", env: 60, price: 1500, maxPrice: 3000, want: 57},
		{name: "rounds to one decimal", env: 82.667, price: 3500, maxPrice: 30000, want: 61.4},
		{name: "negative env clamps", env: -5, price: 0, maxPrice: 100, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, sc.Final(tt.env, tt.price, tt.maxPrice), 1e-9)
		})
	}
}

func TestEnvironmental_WheatScenarioRanksFirst(t *testing.T) {
	table, err := rules.Default()
	require.NoError(t, err)

	snap := agro.FallbackSnapshot()
	snap.PH = 6.5
	snap.Nitrogen = 1.0
	snap.AvgTempC = 18
	snap.AvgRainfallMmYear = 700
	snap.HumidityPct = 55

	var sc suitability.Scorer
	type scored struct {
		crop  string
		score float64
	}
	var all []scored
	for _, crop := range table.Crops() {
		all = append(all, scored{crop, sc.Environmental(table.Rules(crop), snap)})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	assert.Equal(t, agro.CropWheat, all[0].crop)
	assert.InDelta(t, 82.7, suitability.RoundTo(all[0].score, 1), 1e-9)
}

func TestRoundTo(t *testing.T) {
	assert.InDelta(t, 2818.2, suitability.RoundTo(2818.2000000000003, 2), 1e-9)
	assert.InDelta(t, 61.4, suitability.RoundTo(61.36, 1), 1e-9)
	assert.InDelta(t, 3.0, suitability.RoundTo(2.5, 0), 1e-9)
}
