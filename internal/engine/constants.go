package engine

import "github.com/agrichain/cropadvisor/internal/agro"

// Ranking defaults.
const (
	DefaultTopN           = 5
	DefaultMinSuitability = 35.0
	DefaultFallbackCrop   = agro.CropWheat
	DefaultFallbackScore  = 60.0

	mlWeight   = 0.6
	ruleWeight = 0.4
)

// Price blend constants.
const (
	// DefaultHorizonYears is how many years past the current one a forecast
	// is trusted with NearForecastWeight.
	DefaultHorizonYears = 1

	NearForecastWeight = 0.7
	FarForecastWeight  = 0.5

	MinSeasonalFactor = 0.8
	MaxSeasonalFactor = 1.2

	DefaultVolatility = 0.1
	MaxVolatility     = 0.3

	// DefaultStaticPrice is the base price per ton of a crop missing from the static table.
	DefaultStaticPrice = 4000.0
)

// Market status thresholds.
const (
	statusWindowDays        = 365
	oversupplyRatio         = 1.2
	lowDemandRatio          = 0.8
	depressedPriceRatio     = 0.8
	lowVolatilityRatio      = 0.5
	hoursPerDay             = 24
	priceDecimalPlaces      = 2
	suitabilityDecimalPlace = 1
)

// Price blend sources reported in PriceForecastResult.Source.
const (
	SourceBlended    = "forecast+historical"
	SourceForecast   = "forecast"
	SourceHistorical = "historical"
	SourceStatic     = "static"
)

// staticPrices is the base price per ton used when no data exists.
//
//nolint:gochecknoglobals // Read-only lookup table.
var staticPrices = map[string]float64{
	agro.CropBanana:    5000,
	agro.CropCardamom:  20000,
	agro.CropCoconut:   3000,
	agro.CropCotton:    6000,
	agro.CropGram:      4500,
	agro.CropGroundnut: 5500,
	agro.CropMaize:     2000,
	agro.CropMustard:   5000,
	agro.CropPepper:    30000,
	agro.CropRice:      4000,
	agro.CropRubber:    15000,
	agro.CropSoybean:   4500,
	agro.CropTapioca:   2500,
	agro.CropTurmeric:  10000,
	agro.CropWheat:     3500,
}

// volatility is the historical-only markup per crop. Crops not listed use DefaultVolatility.
//
//nolint:gochecknoglobals // Read-only lookup table.
var volatility = map[string]float64{
	agro.CropPepper:   0.3,
	agro.CropCardamom: 0.3,
	agro.CropRubber:   0.2,
	agro.CropTurmeric: 0.2,
	agro.CropBanana:   0.15,
}

// StaticPrice returns the static base price for crop and whether the crop is listed.
func StaticPrice(crop string) (float64, bool) {
	p, ok := staticPrices[agro.NormalizeCrop(crop)]
	if !ok {
		return DefaultStaticPrice, false
	}
	return p, true
}

// Volatility returns the volatility coefficient for crop, capped at MaxVolatility.
func Volatility(crop string) float64 {
	v, ok := volatility[agro.NormalizeCrop(crop)]
	if !ok {
		return DefaultVolatility
	}
	return min(v, MaxVolatility)
}
