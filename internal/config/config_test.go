package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrichain/cropadvisor/internal/config"
)

func TestNew_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)

	cfg := config.New()

	assert.Equal(t, filepath.Join(home, "config.yaml"), cfg.ConfigPath())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, config.DefaultTimeoutSeconds, cfg.Sources.TimeoutSeconds)
	assert.Equal(t, filepath.Join(home, "cache"), cfg.Sources.CacheDir)
	assert.Equal(t, 5, cfg.Engine.TopN)
	assert.InDelta(t, 35.0, cfg.Engine.MinSuitability, 1e-9)
	assert.Equal(t, "wheat", cfg.Engine.FallbackCrop)
	assert.InDelta(t, 60.0, cfg.Engine.FallbackScore, 1e-9)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(config.EnvHome, t.TempDir())

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTopN, cfg.Engine.TopN)
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	t.Setenv(config.EnvHome, t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := config.New()
	cfg.SetConfigPath(path)
	cfg.Data.PricesCSV = "/data/prices.csv"
	cfg.Engine.HorizonYears = 2
	require.NoError(t, cfg.Save())

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/prices.csv", loaded.Data.PricesCSV)
	assert.Equal(t, 2, loaded.Engine.HorizonYears)
	assert.Equal(t, path, loaded.ConfigPath())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [broken\n"), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(config.EnvHome, t.TempDir())
	t.Setenv(config.EnvLogLevel, "debug")
	t.Setenv(config.EnvPricesCSV, "/tmp/p.csv")
	t.Setenv(config.EnvModelURL, "http://model:8080")
	t.Setenv(config.EnvOffline, "true")
	t.Setenv(config.EnvTimeout, "9")
	t.Setenv(config.EnvDatabaseURL, "postgres://db/crops")

	cfg := config.New()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/p.csv", cfg.Data.PricesCSV)
	assert.Equal(t, "http://model:8080", cfg.Classifier.URL)
	assert.True(t, cfg.Sources.Offline)
	assert.Equal(t, 9, cfg.Sources.TimeoutSeconds)
	assert.Equal(t, "postgres://db/crops", cfg.Store.DatabaseURL)
}

func TestApplyEnvOverrides_IgnoresGarbage(t *testing.T) {
	t.Setenv(config.EnvHome, t.TempDir())
	t.Setenv(config.EnvOffline, "maybe")
	t.Setenv(config.EnvTimeout, "soon")

	cfg := config.New()
	cfg.ApplyEnvOverrides()

	assert.False(t, cfg.Sources.Offline)
	assert.Equal(t, config.DefaultTimeoutSeconds, cfg.Sources.TimeoutSeconds)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*config.Config) {}},
		{
			name:    "bad log format",
			mutate:  func(c *config.Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *config.Config) { c.Sources.TimeoutSeconds = 0 },
			wantErr: "timeout_seconds",
		},
		{
			name:    "top n",
			mutate:  func(c *config.Config) { c.Engine.TopN = 0 },
			wantErr: "top_n",
		},
		{
			name:    "min suitability out of range",
			mutate:  func(c *config.Config) { c.Engine.MinSuitability = 120 },
			wantErr: "min_suitability",
		},
		{
			name:    "missing fallback crop",
			mutate:  func(c *config.Config) { c.Engine.FallbackCrop = "" },
			wantErr: "fallback_crop",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(config.EnvHome, t.TempDir())
			cfg := config.New()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoggingConfig_ToLoggingConfig(t *testing.T) {
	lc := config.LoggingConfig{Level: "warn", Format: "json"}
	out := lc.ToLoggingConfig()
	assert.Equal(t, "stderr", out.Output)
	assert.Equal(t, "warn", out.Level)

	lc.File = "/var/log/cropadvisor.log"
	out = lc.ToLoggingConfig()
	assert.Equal(t, "file", out.Output)
	assert.Equal(t, "/var/log/cropadvisor.log", out.File)
}

func TestGlobalConfig(t *testing.T) {
	t.Setenv(config.EnvHome, t.TempDir())
	t.Cleanup(config.ResetGlobalConfigForTest)

	overlay := writeOverlay(t, "engine:\n  top_n: 3\n  min_suitability: 40\n  fallback_crop: rice\n  fallback_score: 60\n")
	cfg, err := config.InitGlobalConfig(overlay)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Engine.TopN)
	assert.Same(t, cfg, config.GetGlobalConfig())

	config.ResetGlobalConfigForTest()
	assert.Equal(t, config.DefaultTopN, config.GetGlobalConfig().Engine.TopN)
}
