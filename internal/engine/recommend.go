package engine

import (
	"context"
	"math"
	"runtime"
	"slices"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agrichain/cropadvisor/internal/agro"
	"github.com/agrichain/cropadvisor/internal/logging"
	"github.com/agrichain/cropadvisor/internal/suitability"
)

// cropScore is the per-crop working state of a recommendation.
type cropScore struct {
	crop          string
	environmental float64
	price         float64
}

// Recommend ranks the whitelisted crops for a snapshot taken at loc.
//
// Each crop gets a rule score (environmental fit blended with its price
// relative to the most expensive crop at the nearest market). Crops the
// classifier also scored get 0.6*ml + 0.4*rule; the others keep the rule
// score. Crops under the minimum suitability are dropped, the rest sorted
// descending (stable in whitelist order) and cut to the top N. The result is
// never empty: without survivors it holds the fallback crop alone.
func (e *Engine) Recommend(ctx context.Context, snap agro.EnvironmentalSnapshot, loc Location) []SuitabilityResult {
	logger := logging.FromContext(ctx).With().
		Str("component", "engine").
		Str("operation", "recommend").
		Float64("latitude", loc.Latitude).
		Float64("longitude", loc.Longitude).
		Logger()

	snap = snap.Sanitize()
	ml := e.mlScores(ctx, snap)

	marketName := e.resolveMarket("", loc.Latitude, loc.Longitude)
	today := e.now()

	scores := make([]cropScore, len(e.crops))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, crop := range e.crops {
		i, crop := i, crop
		g.Go(func() error {
			priceLogger := logger.With().Str("crop", crop).Str("market", marketName).Logger()
			price, _, _ := e.blendPrice(gctx, &priceLogger, zerolog.DebugLevel, crop, marketName, today)
			scores[i] = cropScore{
				crop:          crop,
				environmental: e.scorer.Environmental(e.rules.Rules(crop), snap),
				price:         price,
			}
			return nil
		})
	}
	// Workers never fail.
	_ = g.Wait()

	maxPrice := 0.0
	for _, s := range scores {
		maxPrice = math.Max(maxPrice, s.price)
	}

	results := make([]SuitabilityResult, 0, len(scores))
	for _, s := range scores {
		final := e.scorer.Final(s.environmental, s.price, maxPrice)
		if p, ok := ml[s.crop]; ok {
			final = mlWeight*p + ruleWeight*final
		}
		if math.IsNaN(final) || math.IsInf(final, 0) || final < e.opts.MinSuitability {
			continue
		}
		results = append(results, SuitabilityResult{Crop: s.crop, Suitability: final})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Suitability > results[j].Suitability
	})
	if len(results) > e.opts.TopN {
		results = results[:e.opts.TopN]
	}
	for i := range results {
		results[i].Suitability = suitability.RoundTo(results[i].Suitability, suitabilityDecimalPlace)
	}

	if len(results) == 0 {
		logger.Info().
			Str("fallback_crop", e.opts.FallbackCrop).
			Msg("no crop cleared the suitability threshold, using fallback")
		return []SuitabilityResult{{Crop: e.opts.FallbackCrop, Suitability: e.opts.FallbackScore}}
	}

	logger.Debug().
		Str("market", marketName).
		Int("ml_scores", len(ml)).
		Int("results", len(results)).
		Str("top_crop", results[0].Crop).
		Msg("recommendation ranked")
	return results
}

// mlScores returns classifier probabilities as percentages for whitelisted
// crops. Classifier failures are logged and yield no scores.
func (e *Engine) mlScores(ctx context.Context, snap agro.EnvironmentalSnapshot) map[string]float64 {
	if e.classifier == nil {
		return nil
	}
	logger := logging.FromContext(ctx).With().
		Str("component", "engine").
		Str("operation", "classify").
		Logger()

	probs, err := e.classifier.PredictProba(ctx, snap.Features())
	if err != nil {
		logger.Warn().Err(err).Msg("classifier failed, ranking on rules only")
		return nil
	}

	out := make(map[string]float64, len(probs))
	for label, p := range probs {
		crop := agro.NormalizeCrop(label)
		if !slices.Contains(e.crops, crop) || math.IsNaN(p) || math.IsInf(p, 0) {
			continue
		}
		out[crop] = math.Min(1, math.Max(0, p)) * 100
	}
	return out
}
