package engine

import (
	"context"
	"time"

	"github.com/agrichain/cropadvisor/internal/pricedata"
)

// Location is a farm location in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SuitabilityResult is one entry of a recommendation list.
type SuitabilityResult struct {
	Crop        string  `json:"crop"`
	Suitability float64 `json:"suitability"`
}

// PriceQuery asks for the price of a crop at harvest. When Market is empty
// the market nearest to (Latitude, Longitude) is used.
type PriceQuery struct {
	Crop        string
	HarvestDate time.Time
	Market      string
	Latitude    float64
	Longitude   float64
	FarmID      string
}

// PriceForecastResult is the outcome of PredictPrice.
type PriceForecastResult struct {
	Crop             string   `json:"crop"`
	Date             string   `json:"date"`
	PredictedPrice   float64  `json:"predicted_price"`
	Market           string   `json:"market"`
	OversupplyStatus bool     `json:"oversupply_status"`
	LowDemandStatus  bool     `json:"low_demand_status"`
	Source           string   `json:"source"`
	Warnings         []string `json:"warnings,omitempty"`
}

// MarketStatus flags market conditions for a crop.
type MarketStatus struct {
	OversupplyStatus bool `json:"oversupply_status"`
	LowDemandStatus  bool `json:"low_demand_status"`
}

// PriceSource serves historical series and forecasts per crop and market.
// Both methods fail with pricedata.ErrNoSeries when there is no data.
type PriceSource interface {
	History(ctx context.Context, crop, market string) (pricedata.Series, error)
	Forecast(ctx context.Context, crop, market string) ([]pricedata.ForecastPoint, error)
}
