// Package agro holds the environmental data model shared by the data
// providers, the suitability scorer and the recommendation engine.
package agro

import "math"

// Rule parameter names understood by EnvironmentalSnapshot.Value.
const (
	ParamNitrogen    = "nitrogen"
	ParamPhosphorus  = "phosphorus"
	ParamPotassium   = "potassium"
	ParamPH          = "ph"
	ParamTemperature = "temperature"
	ParamHumidity    = "humidity"
	ParamRainfall    = "rainfall"
	ParamAvgTemp     = "avg_temp"
	ParamAvgRainfall = "avg_rainfall"
	ParamElevation   = "elevation"
	ParamWindSpeed   = "wind_speed"
	ParamSoilType    = "soil_type"
)

// Fallback values used when a provider cannot supply a reading.
const (
	FallbackNitrogen    = 0.8
	FallbackPhosphorus  = 40.0
	FallbackPotassium   = 50.0
	FallbackPH          = 6.5
	FallbackSoilType    = SoilLoamy
	FallbackElevation   = 10.0
	FallbackTemperature = 25.0
	FallbackHumidity    = 70.0
	FallbackRainfall    = 0.0
	FallbackWindSpeed   = 2.5
	FallbackAvgTemp     = 24.0
	FallbackAvgRainfall = 1200.0
)

// EnvironmentalSnapshot is the environmental reading for one location at one
// point in time. Every field is always populated, with fallbacks where needed.
type EnvironmentalSnapshot struct {
	Nitrogen          float64  `json:"nitrogen"`
	Phosphorus        float64  `json:"phosphorus"`
	Potassium         float64  `json:"potassium"`
	PH                float64  `json:"ph"`
	SoilType          SoilType `json:"soil_type"`
	ElevationMeters   float64  `json:"elevation_m"`
	TemperatureC      float64  `json:"temperature_c"`
	HumidityPct       float64  `json:"humidity_pct"`
	RainfallMmInstant float64  `json:"rainfall_mm"`
	WindSpeed         float64  `json:"wind_speed"`
	AvgTempC          float64  `json:"avg_temp_c"`
	AvgRainfallMmYear float64  `json:"avg_rainfall_mm_year"`
}

// FallbackSnapshot returns a snapshot built entirely from fallback values.
func FallbackSnapshot() EnvironmentalSnapshot {
	return EnvironmentalSnapshot{
		Nitrogen:          FallbackNitrogen,
		Phosphorus:        FallbackPhosphorus,
		Potassium:         FallbackPotassium,
		PH:                FallbackPH,
		SoilType:          FallbackSoilType,
		ElevationMeters:   FallbackElevation,
		TemperatureC:      FallbackTemperature,
		HumidityPct:       FallbackHumidity,
		RainfallMmInstant: FallbackRainfall,
		WindSpeed:         FallbackWindSpeed,
		AvgTempC:          FallbackAvgTemp,
		AvgRainfallMmYear: FallbackAvgRainfall,
	}
}

// Value resolves a numeric rule parameter. It reports false for unknown
// parameters and for soil_type, which is categorical.
func (s EnvironmentalSnapshot) Value(parameter string) (float64, bool) {
	switch parameter {
	case ParamNitrogen:
		return s.Nitrogen, true
	case ParamPhosphorus:
		return s.Phosphorus, true
	case ParamPotassium:
		return s.Potassium, true
	case ParamPH:
		return s.PH, true
	case ParamTemperature:
		return s.TemperatureC, true
	case ParamHumidity:
		return s.HumidityPct, true
	case ParamRainfall:
		return s.RainfallMmInstant, true
	case ParamAvgTemp:
		return s.AvgTempC, true
	case ParamAvgRainfall:
		return s.AvgRainfallMmYear, true
	case ParamElevation:
		return s.ElevationMeters, true
	case ParamWindSpeed:
		return s.WindSpeed, true
	default:
		return 0, false
	}
}

// Features returns the classifier input vector
// [N, P, K, temperature, humidity, ph, rainfall].
func (s EnvironmentalSnapshot) Features() []float64 {
	return []float64{
		s.Nitrogen,
		s.Phosphorus,
		s.Potassium,
		s.TemperatureC,
		s.HumidityPct,
		s.PH,
		s.RainfallMmInstant,
	}
}

// Sanitize replaces non-finite or negative readings with their fallbacks.
// Temperatures may legitimately be negative and are only checked for finiteness.
func (s EnvironmentalSnapshot) Sanitize() EnvironmentalSnapshot {
	s.Nitrogen = nonNegative(s.Nitrogen, FallbackNitrogen)
	s.Phosphorus = nonNegative(s.Phosphorus, FallbackPhosphorus)
	s.Potassium = nonNegative(s.Potassium, FallbackPotassium)
	s.PH = nonNegative(s.PH, FallbackPH)
	s.ElevationMeters = finite(s.ElevationMeters, FallbackElevation)
	s.TemperatureC = finite(s.TemperatureC, FallbackTemperature)
	s.HumidityPct = nonNegative(s.HumidityPct, FallbackHumidity)
	s.RainfallMmInstant = nonNegative(s.RainfallMmInstant, FallbackRainfall)
	s.WindSpeed = nonNegative(s.WindSpeed, FallbackWindSpeed)
	s.AvgTempC = finite(s.AvgTempC, FallbackAvgTemp)
	s.AvgRainfallMmYear = nonNegative(s.AvgRainfallMmYear, FallbackAvgRainfall)
	if !s.SoilType.Valid() {
		s.SoilType = FallbackSoilType
	}
	return s
}

func finite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func nonNegative(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fallback
	}
	return v
}
