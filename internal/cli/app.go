package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/agrichain/cropadvisor/internal/classifier"
	"github.com/agrichain/cropadvisor/internal/config"
	"github.com/agrichain/cropadvisor/internal/engine"
	"github.com/agrichain/cropadvisor/internal/logging"
	"github.com/agrichain/cropadvisor/internal/pricedata"
	"github.com/agrichain/cropadvisor/internal/rules"
	"github.com/agrichain/cropadvisor/internal/sources"
	"github.com/agrichain/cropadvisor/internal/sources/cache"
	"github.com/agrichain/cropadvisor/internal/store"
)

// app holds the collaborators built for one command invocation. The engine
// and its reference data are read-only once built.
type app struct {
	cfg       *config.Config
	engine    *engine.Engine
	collector *sources.Collector
	recorder  store.Recorder
	closers   []func()

	// dataWarnings describes price data that could not be loaded.
	dataWarnings []string
}

// appOptions selects the optional parts newApp builds.
type appOptions struct {
	collector bool
	recorder  bool
}

// newApp builds the engine from the global configuration and, on request,
// the environmental collector and the prediction recorder.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg := config.GetGlobalConfig()
	a := &app{cfg: cfg, recorder: store.Nop{}}

	eng, dataWarnings, err := buildEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.engine = eng
	a.dataWarnings = dataWarnings

	if opts.collector {
		if a.collector, err = buildCollector(ctx, cfg); err != nil {
			return nil, err
		}
	}

	if opts.recorder {
		if err = a.openRecorder(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// withDataWarnings returns the price data warnings followed by warnings.
func (a *app) withDataWarnings(warnings []string) []string {
	if len(a.dataWarnings) == 0 {
		return warnings
	}
	out := make([]string, 0, len(a.dataWarnings)+len(warnings))
	out = append(out, a.dataWarnings...)
	return append(out, warnings...)
}

// Close releases database connections.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// buildEngine loads the rule table, classifier and price data named by cfg.
// Price sources that fail to load are left out and reported as warnings.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, []string, error) {
	log := logging.FromContext(ctx).With().Str("component", "cli").Str("operation", "build_engine").Logger()

	table, err := loadRules(cfg.Data.RulesFile)
	if err != nil {
		return nil, nil, err
	}

	clf, err := buildClassifier(cfg.Classifier)
	if err != nil {
		return nil, nil, err
	}

	prices, failed := pricedata.Load(ctx, pricedata.Sources{
		PricesCSV:    cfg.Data.PricesCSV,
		ForecastsCSV: cfg.Data.ForecastsCSV,
		SQLitePath:   cfg.Data.SQLitePath,
	})
	var warnings []string
	for _, loadErr := range failed {
		log.Warn().Err(loadErr).Msg("price source skipped")
		warnings = append(warnings, fmt.Sprintf("price data unavailable: %v", loadErr))
	}

	stats := prices.Stats()
	log.Debug().
		Str("rules_version", table.Version().String()).
		Bool("classifier", clf != nil).
		Int("price_series", stats.Series).
		Int("forecast_series", stats.ForecastSeries).
		Int("skipped_rows", stats.SkippedRows).
		Msg("engine reference data loaded")
	if stats.SkippedRows > 0 {
		log.Warn().Int("skipped_rows", stats.SkippedRows).Msg("malformed price rows skipped")
		warnings = append(warnings, fmt.Sprintf("price data: skipped %d malformed rows", stats.SkippedRows))
	}

	opts := []engine.Option{
		engine.WithRules(table),
		engine.WithPrices(prices),
		engine.WithOptions(engine.Options{
			TopN:           cfg.Engine.TopN,
			MinSuitability: cfg.Engine.MinSuitability,
			HorizonYears:   cfg.Engine.HorizonYears,
			FallbackCrop:   cfg.Engine.FallbackCrop,
			FallbackScore:  cfg.Engine.FallbackScore,
		}),
	}
	if clf != nil {
		opts = append(opts, engine.WithClassifier(clf))
	}
	return engine.New(opts...), warnings, nil
}

func loadRules(path string) (*rules.Table, error) {
	if path == "" {
		return rules.Default()
	}
	table, err := rules.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading rule table: %w", err)
	}
	return table, nil
}

// buildClassifier returns the configured classifier, or nil for rule-only ranking.
// A local model file wins over a remote URL.
func buildClassifier(cfg config.ClassifierConfig) (classifier.Classifier, error) {
	switch {
	case cfg.ModelPath != "":
		m, err := classifier.LoadCentroidModel(cfg.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("loading classifier model: %w", err)
		}
		return m, nil
	case cfg.URL != "":
		return classifier.NewHTTPClient(cfg.URL), nil
	default:
		return nil, nil //nolint:nilnil // No classifier configured is a valid state.
	}
}

// openSoilCache opens the soil profile cache named by the sources section.
func openSoilCache(cfg config.SourcesConfig) (*cache.FileStore, error) {
	if cfg.CacheDir == "" {
		return nil, errSoilCacheDisabled
	}
	ttl, err := cache.TTLFromHours(cfg.CacheTTLHours)
	if err != nil {
		return nil, err
	}
	return cache.NewFileStore(cfg.CacheDir, ttl)
}

// buildCollector builds the provider collector. A soil cache that cannot be
// opened is logged and skipped.
func buildCollector(ctx context.Context, cfg *config.Config) (*sources.Collector, error) {
	log := logging.FromContext(ctx).With().Str("component", "cli").Str("operation", "build_collector").Logger()

	soilCache, err := openSoilCache(cfg.Sources)
	if err != nil {
		if !errors.Is(err, errSoilCacheDisabled) {
			log.Warn().Err(err).Str("cache_dir", cfg.Sources.CacheDir).Msg("soil cache disabled")
		}
		soilCache = nil
	}

	timeout := time.Duration(cfg.Sources.TimeoutSeconds) * time.Second
	return sources.NewCollector(sources.Options{
		WeatherURL:         cfg.Sources.WeatherURL,
		SoilURL:            cfg.Sources.SoilURL,
		ClimateURL:         cfg.Sources.ClimateURL,
		ElevationURL:       cfg.Sources.ElevationURL,
		Timeout:            timeout,
		Client:             &http.Client{},
		SoilCache:          soilCache,
		ElevationCacheSize: cfg.Sources.ElevationCacheSize,
		Offline:            cfg.Sources.Offline,
	})
}

// openRecorder connects to PostgreSQL when a database URL is configured.
func (a *app) openRecorder(ctx context.Context) error {
	url := a.cfg.Store.DatabaseURL
	if url == "" {
		logging.FromContext(ctx).Warn().
			Str("component", "cli").
			Msg("--record given but store.database_url is not set, predictions are not recorded")
		return nil
	}

	pool, err := store.Open(ctx, url)
	if err != nil {
		return fmt.Errorf("opening prediction store: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	if err = store.RunMigrations(ctx, pool); err != nil {
		return fmt.Errorf("migrating prediction store: %w", err)
	}
	a.recorder = store.NewRepository(pool)
	return nil
}
