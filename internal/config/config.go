// Package config loads, validates and persists cropadvisor configuration.
//
// Configuration lives in $CROPADVISOR_HOME/config.yaml (default ~/.cropadvisor).
// Values are resolved in this order, later sources winning:
//
//  1. built-in defaults (New)
//  2. the config file
//  3. an overlay file passed with --config (ShallowMergeYAML)
//  4. CROPADVISOR_* environment variables, including those loaded from .env
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvHome          = "CROPADVISOR_HOME"
	EnvLogLevel      = "CROPADVISOR_LOG_LEVEL"
	EnvLogFormat     = "CROPADVISOR_LOG_FORMAT"
	EnvLogFile       = "CROPADVISOR_LOG_FILE"
	EnvPricesCSV     = "CROPADVISOR_PRICES_CSV"
	EnvForecastsCSV  = "CROPADVISOR_FORECASTS_CSV"
	EnvSQLitePath    = "CROPADVISOR_SQLITE_PATH"
	EnvRulesFile     = "CROPADVISOR_RULES_FILE"
	EnvModelPath     = "CROPADVISOR_MODEL_PATH"
	EnvModelURL      = "CROPADVISOR_MODEL_URL"
	EnvOffline       = "CROPADVISOR_OFFLINE"
	EnvTimeout       = "CROPADVISOR_TIMEOUT_SECONDS"
	EnvDatabaseURL   = "CROPADVISOR_DATABASE_URL"
	defaultDirName   = ".cropadvisor"
	configFileName   = "config.yaml"
	outputTypeFile   = "file"
	outputTypeStderr = "stderr"
)

// Defaults.
const (
	DefaultTimeoutSeconds     = 5
	DefaultCacheTTLHours      = 7 * 24
	DefaultElevationCacheSize = 1024
	DefaultTopN               = 5
	DefaultMinSuitability     = 35.0
	DefaultHorizonYears       = 1
	DefaultFallbackCrop       = "wheat"
	DefaultFallbackScore      = 60.0

	DefaultWeatherURL   = "https://api.open-meteo.com/v1/forecast"
	DefaultClimateURL   = "https://archive-api.open-meteo.com/v1/archive"
	DefaultElevationURL = "https://api.open-meteo.com/v1/elevation"
	DefaultSoilURL      = "https://rest.isric.org/soilgrids/v2.0/properties/query"
)

// Config is the full cropadvisor configuration.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Data       DataConfig       `yaml:"data"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Sources    SourcesConfig    `yaml:"sources"`
	Engine     EngineConfig     `yaml:"engine"`
	Store      StoreConfig      `yaml:"store"`

	configPath string
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// DataConfig points at the reference datasets.
type DataConfig struct {
	PricesCSV    string `yaml:"prices_csv,omitempty"`
	ForecastsCSV string `yaml:"forecasts_csv,omitempty"`
	SQLitePath   string `yaml:"sqlite_path,omitempty"`
	RulesFile    string `yaml:"rules_file,omitempty"`
}

// ClassifierConfig selects the crop classifier binding. ModelPath wins over URL.
type ClassifierConfig struct {
	ModelPath string `yaml:"model_path,omitempty"`
	URL       string `yaml:"url,omitempty"`
}

// SourcesConfig configures the environmental data providers.
type SourcesConfig struct {
	WeatherURL         string `yaml:"weather_url"`
	SoilURL            string `yaml:"soil_url"`
	ClimateURL         string `yaml:"climate_url"`
	ElevationURL       string `yaml:"elevation_url"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	CacheDir           string `yaml:"cache_dir,omitempty"`
	CacheTTLHours      int    `yaml:"cache_ttl_hours"`
	ElevationCacheSize int    `yaml:"elevation_cache_size"`
	Offline            bool   `yaml:"offline"`
}

// EngineConfig tunes ranking and pricing.
type EngineConfig struct {
	TopN           int     `yaml:"top_n"`
	MinSuitability float64 `yaml:"min_suitability"`
	HorizonYears   int     `yaml:"horizon_years"`
	FallbackCrop   string  `yaml:"fallback_crop"`
	FallbackScore  float64 `yaml:"fallback_score"`
}

// StoreConfig enables the prediction recorder when DatabaseURL is set.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url,omitempty"`
}

//nolint:gochecknoglobals // Process-wide config, set once at startup.
var (
	globalConfig   *Config
	globalConfigMu sync.RWMutex
)

// HomeDir returns the cropadvisor home directory.
func HomeDir() string {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), defaultDirName)
	}
	return filepath.Join(home, defaultDirName)
}

// New returns a Config populated with defaults, pointing at the default config path.
func New() *Config {
	home := HomeDir()
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Sources: SourcesConfig{
			WeatherURL:         DefaultWeatherURL,
			SoilURL:            DefaultSoilURL,
			ClimateURL:         DefaultClimateURL,
			ElevationURL:       DefaultElevationURL,
			TimeoutSeconds:     DefaultTimeoutSeconds,
			CacheDir:           filepath.Join(home, "cache"),
			CacheTTLHours:      DefaultCacheTTLHours,
			ElevationCacheSize: DefaultElevationCacheSize,
		},
		Engine: EngineConfig{
			TopN:           DefaultTopN,
			MinSuitability: DefaultMinSuitability,
			HorizonYears:   DefaultHorizonYears,
			FallbackCrop:   DefaultFallbackCrop,
			FallbackScore:  DefaultFallbackScore,
		},
		configPath: filepath.Join(home, configFileName),
	}
}

// Load builds a Config from defaults, the file at path (the default path when
// empty) and the environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	cfg := New()
	if path != "" {
		cfg.configPath = path
	}

	data, err := os.ReadFile(cfg.configPath)
	switch {
	case err == nil:
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", cfg.configPath, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config %s: %w", cfg.configPath, err)
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// ConfigPath returns the file this config is read from and saved to.
func (c *Config) ConfigPath() string {
	return c.configPath
}

// SetConfigPath changes the file Save writes to.
func (c *Config) SetConfigPath(path string) {
	c.configPath = path
}

// Save writes the config as YAML, creating the parent directory.
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err = os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", c.configPath, err)
	}
	return nil
}

// ApplyEnvOverrides applies CROPADVISOR_* variables onto c.
// Unparseable numeric or boolean values are ignored.
func (c *Config) ApplyEnvOverrides() {
	setString := func(env string, dst *string) {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*dst = v
		}
	}

	setString(EnvLogLevel, &c.Logging.Level)
	setString(EnvLogFormat, &c.Logging.Format)
	setString(EnvLogFile, &c.Logging.File)
	setString(EnvPricesCSV, &c.Data.PricesCSV)
	setString(EnvForecastsCSV, &c.Data.ForecastsCSV)
	setString(EnvSQLitePath, &c.Data.SQLitePath)
	setString(EnvRulesFile, &c.Data.RulesFile)
	setString(EnvModelPath, &c.Classifier.ModelPath)
	setString(EnvModelURL, &c.Classifier.URL)
	setString(EnvDatabaseURL, &c.Store.DatabaseURL)

	if v := os.Getenv(EnvOffline); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Sources.Offline = b
		}
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sources.TimeoutSeconds = n
		}
	}
}

// Validate checks that every value is usable. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: logging.format %q (want console or json)", ErrInvalidConfig, c.Logging.Format))
	}

	if c.Sources.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("%w: sources.timeout_seconds must be positive", ErrInvalidConfig))
	}
	if c.Sources.CacheTTLHours < 0 {
		errs = append(errs, fmt.Errorf("%w: sources.cache_ttl_hours must not be negative", ErrInvalidConfig))
	}
	if c.Sources.ElevationCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: sources.elevation_cache_size must be positive", ErrInvalidConfig))
	}

	if c.Engine.TopN <= 0 {
		errs = append(errs, fmt.Errorf("%w: engine.top_n must be positive", ErrInvalidConfig))
	}
	if c.Engine.MinSuitability < 0 || c.Engine.MinSuitability > 100 {
		errs = append(errs, fmt.Errorf("%w: engine.min_suitability must be in [0,100]", ErrInvalidConfig))
	}
	if c.Engine.HorizonYears <= 0 {
		errs = append(errs, fmt.Errorf("%w: engine.horizon_years must be positive", ErrInvalidConfig))
	}
	if c.Engine.FallbackCrop == "" {
		errs = append(errs, fmt.Errorf("%w: engine.fallback_crop is required", ErrInvalidConfig))
	}
	if c.Engine.FallbackScore < 0 || c.Engine.FallbackScore > 100 {
		errs = append(errs, fmt.Errorf("%w: engine.fallback_score must be in [0,100]", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// InitGlobalConfig loads the config at the default path, applies the overlay
// when given, and stores the result for GetGlobalConfig.
func InitGlobalConfig(overlayPath string) (*Config, error) {
	cfg, err := Load("")
	if err != nil {
		return nil, err
	}
	if overlayPath != "" {
		if err = ShallowMergeYAML(cfg, overlayPath); err != nil {
			return nil, err
		}
		// Environment still wins over the overlay.
		cfg.ApplyEnvOverrides()
	}

	globalConfigMu.Lock()
	globalConfig = cfg
	globalConfigMu.Unlock()
	return cfg, nil
}

// GetGlobalConfig returns the process config, or defaults plus environment
// when InitGlobalConfig has not run.
func GetGlobalConfig() *Config {
	globalConfigMu.RLock()
	cfg := globalConfig
	globalConfigMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	cfg = New()
	cfg.ApplyEnvOverrides()
	return cfg
}

// ResetGlobalConfigForTest clears the process config.
func ResetGlobalConfigForTest() {
	globalConfigMu.Lock()
	globalConfig = nil
	globalConfigMu.Unlock()
}
