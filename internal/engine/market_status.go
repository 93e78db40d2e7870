package engine

import (
	"context"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/agrichain/cropadvisor/internal/agro"
	"github.com/agrichain/cropadvisor/internal/logging"
)

// EvaluateMarket flags oversupply and low demand for crop at market over the
// 365 days ending at asOf. With supply and demand readings it compares them
// directly; with prices only it uses depressed prices as an oversupply proxy
// and low price variance as a low-demand proxy. Without usable data both
// flags are false.
func (e *Engine) EvaluateMarket(ctx context.Context, crop, marketName string, asOf time.Time) MarketStatus {
	logger := logging.FromContext(ctx).With().
		Str("component", "engine").
		Str("operation", "evaluate_market").
		Str("crop", crop).
		Str("market", marketName).
		Logger()

	if e.prices == nil {
		return MarketStatus{}
	}

	series, err := e.prices.History(ctx, agro.NormalizeCrop(crop), marketName)
	if err != nil {
		logger.Debug().Err(err).Msg("no market data, assuming normal conditions")
		return MarketStatus{}
	}

	windowStart := asOf.Add(-statusWindowDays * hoursPerDay * time.Hour)
	inWindow := func(t time.Time) bool {
		return t.After(windowStart) && !t.After(asOf)
	}

	if series.HasSupplyDemand() {
		var recentSupply, recentDemand, allDemand []float64
		for _, p := range series.Points {
			if !p.HasSupplyDemand {
				continue
			}
			allDemand = append(allDemand, p.Demand)
			if inWindow(p.Date) {
				recentSupply = append(recentSupply, p.Supply)
				recentDemand = append(recentDemand, p.Demand)
			}
		}
		status, ok := supplyDemandStatus(recentSupply, recentDemand, allDemand)
		if ok {
			logger.Debug().
				Bool("oversupply", status.OversupplyStatus).
				Bool("low_demand", status.LowDemandStatus).
				Msg("market status from supply and demand")
			return status
		}
		logger.Debug().Msg("no supply and demand readings in window, falling back to prices")
	}

	var recent, all []float64
	for _, p := range series.Points {
		all = append(all, p.Price)
		if inWindow(p.Date) {
			recent = append(recent, p.Price)
		}
	}
	status, ok := priceProxyStatus(recent, all)
	if !ok {
		logger.Debug().Msg("empty price window, assuming normal conditions")
		return MarketStatus{}
	}

	logger.Debug().
		Bool("oversupply", status.OversupplyStatus).
		Bool("low_demand", status.LowDemandStatus).
		Msg("market status from price series")
	return status
}

func supplyDemandStatus(recentSupply, recentDemand, allDemand []float64) (MarketStatus, bool) {
	avgSupply, err := stats.Mean(recentSupply)
	if err != nil {
		return MarketStatus{}, false
	}
	avgDemand, err := stats.Mean(recentDemand)
	if err != nil {
		return MarketStatus{}, false
	}
	allTimeDemand, err := stats.Mean(allDemand)
	if err != nil {
		return MarketStatus{}, false
	}

	return MarketStatus{
		OversupplyStatus: avgSupply > avgDemand*oversupplyRatio,
		LowDemandStatus:  avgDemand < allTimeDemand*lowDemandRatio,
	}, true
}

func priceProxyStatus(recent, all []float64) (MarketStatus, bool) {
	recentAvg, err := stats.Mean(recent)
	if err != nil {
		return MarketStatus{}, false
	}
	allAvg, err := stats.Mean(all)
	if err != nil {
		return MarketStatus{}, false
	}
	recentVar, err := stats.PopulationVariance(recent)
	if err != nil {
		return MarketStatus{}, false
	}
	allVar, err := stats.PopulationVariance(all)
	if err != nil {
		return MarketStatus{}, false
	}

	return MarketStatus{
		OversupplyStatus: recentAvg < allAvg*depressedPriceRatio,
		LowDemandStatus:  recentVar < allVar*lowVolatilityRatio,
	}, true
}
