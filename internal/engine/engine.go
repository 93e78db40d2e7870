// Package engine ranks crops for a location and predicts crop prices.
//
// An Engine is built once from read-only reference data (rule table,
// classifier, price dataset, market registry) and is safe for concurrent use.
// Its public operations never return errors: missing or failing inputs
// degrade to documented defaults and are reported through logs and warnings.
package engine

import (
	"time"

	"github.com/agrichain/cropadvisor/internal/agro"
	"github.com/agrichain/cropadvisor/internal/classifier"
	"github.com/agrichain/cropadvisor/internal/market"
	"github.com/agrichain/cropadvisor/internal/rules"
	"github.com/agrichain/cropadvisor/internal/suitability"
)

// Options tunes ranking and pricing. Zero values select the defaults.
type Options struct {
	TopN           int
	MinSuitability float64
	HorizonYears   int
	FallbackCrop   string
	FallbackScore  float64
}

// Engine implements recommendation, price prediction and market status.
type Engine struct {
	rules      *rules.Table
	classifier classifier.Classifier
	prices     PriceSource
	markets    *market.Registry
	scorer     suitability.Scorer
	crops      []string
	opts       Options

	// now is a function that returns the current time (injectable for testing).
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules sets the rule table. Without it every crop scores the neutral 60.
func WithRules(t *rules.Table) Option {
	return func(e *Engine) { e.rules = t }
}

// WithClassifier sets the ML classifier. Without it ranking is rule-only.
func WithClassifier(c classifier.Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithPrices sets the historical and forecast price source.
func WithPrices(p PriceSource) Option {
	return func(e *Engine) { e.prices = p }
}

// WithMarkets replaces the default market registry.
func WithMarkets(r *market.Registry) Option {
	return func(e *Engine) { e.markets = r }
}

// WithCrops replaces the crop whitelist.
func WithCrops(crops []string) Option {
	return func(e *Engine) { e.crops = crops }
}

// WithOptions sets ranking and pricing options.
func WithOptions(o Options) Option {
	return func(e *Engine) { e.opts = o }
}

// WithClock sets the function used to read the current time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		markets: market.DefaultRegistry(),
		crops:   agro.Crops(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.opts.TopN <= 0 {
		e.opts.TopN = DefaultTopN
	}
	if e.opts.MinSuitability <= 0 {
		e.opts.MinSuitability = DefaultMinSuitability
	}
	if e.opts.HorizonYears <= 0 {
		e.opts.HorizonYears = DefaultHorizonYears
	}
	if e.opts.FallbackCrop == "" {
		e.opts.FallbackCrop = DefaultFallbackCrop
	}
	if e.opts.FallbackScore <= 0 {
		e.opts.FallbackScore = DefaultFallbackScore
	}
	if e.markets == nil {
		e.markets = market.DefaultRegistry()
	}
	return e
}

// Markets returns the engine's market registry.
func (e *Engine) Markets() *market.Registry {
	return e.markets
}

// Crops returns a copy of the crop whitelist.
func (e *Engine) Crops() []string {
	return append([]string(nil), e.crops...)
}
