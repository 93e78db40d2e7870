package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/agrichain/cropadvisor/internal/agro"
	"github.com/agrichain/cropadvisor/internal/logging"
	"github.com/agrichain/cropadvisor/internal/pricedata"
)

// priceInputs are the independently optional stages of a price blend.
type priceInputs struct {
	forecast      float64
	hasForecast   bool
	historical    float64
	hasHistorical bool
	seasonal      float64
	volatility    float64
	static        float64
	weight        float64
}

// priceAttempt is one branch of the fallback chain. It reports false when
// its inputs are missing.
type priceAttempt struct {
	source string
	try    func(in priceInputs) (float64, bool)
}

// priceAttempts is the blend chain in priority order. The first attempt that
// yields a finite non-negative price wins.
func priceAttempts() []priceAttempt {
	return []priceAttempt{
		{source: SourceBlended, try: func(in priceInputs) (float64, bool) {
			if !in.hasForecast || !in.hasHistorical {
				return 0, false
			}
			return (in.weight*in.forecast + (1-in.weight)*in.historical) * in.seasonal, true
		}},
		{source: SourceForecast, try: func(in priceInputs) (float64, bool) {
			if !in.hasForecast {
				return 0, false
			}
			return in.forecast * in.seasonal, true
		}},
		{source: SourceHistorical, try: func(in priceInputs) (float64, bool) {
			if !in.hasHistorical {
				return 0, false
			}
			return in.historical * in.seasonal * (1 + in.volatility), true
		}},
		{source: SourceStatic, try: func(in priceInputs) (float64, bool) {
			return in.static * in.seasonal, true
		}},
	}
}

// PredictPrice predicts the price of a crop at harvest and evaluates the
// market status at the harvest date. It never fails; degraded inputs are
// listed in the result's warnings.
func (e *Engine) PredictPrice(ctx context.Context, q PriceQuery) PriceForecastResult {
	crop := agro.NormalizeCrop(q.Crop)
	marketName := e.resolveMarket(q.Market, q.Latitude, q.Longitude)
	harvest := q.HarvestDate
	if harvest.IsZero() {
		harvest = e.now()
	}

	logger := logging.FromContext(ctx).With().
		Str("component", "engine").
		Str("operation", "predict_price").
		Str("crop", crop).
		Str("market", marketName).
		Str("harvest_date", harvest.Format(time.DateOnly)).
		Logger()
	if q.FarmID != "" {
		logger = logger.With().Str("farm_id", q.FarmID).Logger()
	}

	price, source, warnings := e.blendPrice(ctx, &logger, zerolog.WarnLevel, crop, marketName, harvest)
	status := e.EvaluateMarket(ctx, crop, marketName, harvest)

	logger.Debug().
		Float64("predicted_price", price).
		Str("source", source).
		Int("warnings", len(warnings)).
		Msg("price predicted")

	return PriceForecastResult{
		Crop:             crop,
		Date:             harvest.Format(time.DateOnly),
		PredictedPrice:   price,
		Market:           marketName,
		OversupplyStatus: status.OversupplyStatus,
		LowDemandStatus:  status.LowDemandStatus,
		Source:           source,
		Warnings:         warnings,
	}
}

// resolveMarket returns the registry spelling of market, or the market
// nearest to the coordinates when market is empty.
func (e *Engine) resolveMarket(name string, lat, lon float64) string {
	if name != "" {
		if m, ok := e.markets.Lookup(name); ok {
			return m.Name
		}
		return name
	}
	if m, _, ok := e.markets.Nearest(lat, lon); ok {
		return m.Name
	}
	return ""
}

// blendPrice runs the attempt chain and applies the market multiplier.
// Falling back to the static table is logged at fallbackLevel.
func (e *Engine) blendPrice(
	ctx context.Context,
	logger *zerolog.Logger,
	fallbackLevel zerolog.Level,
	crop, marketName string,
	harvest time.Time,
) (float64, string, []string) {
	var warnings []string
	warn := func(msg string, err error) {
		logger.Warn().Err(err).Msg(msg)
		warnings = append(warnings, fmt.Sprintf("%s: %v", msg, err))
	}

	in := priceInputs{
		seasonal:   1,
		volatility: Volatility(crop),
		weight:     ForecastWeight(harvest, e.now(), e.opts.HorizonYears),
	}

	if e.prices != nil {
		if v, err := e.forecastAt(ctx, crop, marketName, harvest); err == nil {
			in.forecast, in.hasForecast = v, true
		} else if !errors.Is(err, pricedata.ErrNoSeries) {
			warn("forecast unavailable", err)
		} else {
			logger.Debug().Err(err).Msg("no forecast")
		}

		if series, err := e.prices.History(ctx, crop, marketName); err == nil {
			if mean, ok := historicalMean(series); ok {
				in.historical, in.hasHistorical = mean, true
				in.seasonal = SeasonalFactor(series, harvest.Month())
			}
		} else if !errors.Is(err, pricedata.ErrNoSeries) {
			warn("historical prices unavailable", err)
		} else {
			logger.Debug().Err(err).Msg("no historical prices")
		}
	}

	static, known := StaticPrice(crop)
	in.static = static

	var (
		price  float64
		source string
	)
	for _, attempt := range priceAttempts() {
		v, ok := attempt.try(in)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			continue
		}
		price, source = v, attempt.source
		break
	}

	if source == SourceStatic {
		msg := fmt.Sprintf("no forecast or historical data for %s at %s, using static fallback price", crop, marketName)
		if !known {
			msg = fmt.Sprintf("no price data or static price for %s, using default base price %.0f", crop, DefaultStaticPrice)
		}
		logger.WithLevel(fallbackLevel).Str("source", source).Msg(msg)
		warnings = append(warnings, msg)
	}

	price *= e.markets.Multiplier(marketName)
	return RoundPrice(price), source, warnings
}

// forecastAt returns the latest forecast value dated on or before harvest.
func (e *Engine) forecastAt(ctx context.Context, crop, marketName string, harvest time.Time) (float64, error) {
	points, err := e.prices.Forecast(ctx, crop, marketName)
	if err != nil {
		return 0, err
	}

	found := false
	var latest pricedata.ForecastPoint
	for _, p := range points {
		if p.Date.After(harvest) {
			continue
		}
		if !found || !p.Date.Before(latest.Date) {
			latest, found = p, true
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: no forecast on or before %s", pricedata.ErrNoSeries, harvest.Format(time.DateOnly))
	}
	if !(latest.Value > 0) || math.IsInf(latest.Value, 0) {
		return 0, fmt.Errorf("unusable forecast value %v on %s", latest.Value, latest.Date.Format(time.DateOnly))
	}
	return latest.Value, nil
}

// ForecastWeight returns the forecast weight for a harvest date: near-term
// harvests (up to horizonYears after the current year) trust the forecast more.
func ForecastWeight(harvest, now time.Time, horizonYears int) float64 {
	if harvest.Year() <= now.Year()+horizonYears {
		return NearForecastWeight
	}
	return FarForecastWeight
}

// SeasonalFactor is the mean price in month divided by the all-time mean,
// clamped to [MinSeasonalFactor, MaxSeasonalFactor]. It is 1 when it cannot
// be computed.
func SeasonalFactor(series pricedata.Series, month time.Month) float64 {
	all := make([]float64, 0, len(series.Points))
	var inMonth []float64
	for _, p := range series.Points {
		all = append(all, p.Price)
		if p.Date.Month() == month {
			inMonth = append(inMonth, p.Price)
		}
	}

	allMean, err := stats.Mean(all)
	if err != nil || allMean <= 0 {
		return 1
	}
	monthMean, err := stats.Mean(inMonth)
	if err != nil {
		return 1
	}

	f := monthMean / allMean
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 1
	}
	return math.Min(MaxSeasonalFactor, math.Max(MinSeasonalFactor, f))
}

func historicalMean(series pricedata.Series) (float64, bool) {
	prices := make([]float64, 0, len(series.Points))
	for _, p := range series.Points {
		prices = append(prices, p.Price)
	}
	mean, err := stats.Mean(prices)
	if err != nil || math.IsNaN(mean) || mean < 0 {
		return 0, false
	}
	return mean, true
}

// RoundPrice rounds a price to two decimal places.
func RoundPrice(v float64) float64 {
	return decimal.NewFromFloat(v).Round(priceDecimalPlaces).InexactFloat64()
}
