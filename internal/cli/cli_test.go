package cli_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrichain/cropadvisor/internal/cli"
	"github.com/agrichain/cropadvisor/internal/config"
)

// setupCLITest isolates the home directory, disables network providers and
// registers cleanup for global state.
func setupCLITest(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvOffline, "true")
	t.Setenv(config.EnvLogLevel, "error")
	t.Cleanup(config.ResetGlobalConfigForTest)
	return home
}

// execute runs the root command with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := cli.NewRootCmd("test")
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCmd_Version(t *testing.T) {
	setupCLITest(t)

	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "cropadvisor version test")
}

func TestRootCmd_RejectsUnknownOutput(t *testing.T) {
	setupCLITest(t)

	_, err := execute(t, "market", "list", "--output", "yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, cli.ErrInvalidInput)
}

type recommendJSON struct {
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Recommendations []struct {
		Crop        string  `json:"crop"`
		Suitability float64 `json:"suitability"`
	} `json:"recommendations"`
	Warnings []string `json:"warnings"`
}

func TestRecommend_OfflineJSON(t *testing.T) {
	setupCLITest(t)

	out, err := execute(t, "recommend", "--lat", "30.901", "--lon", "75.8573", "-o", "json")
	require.NoError(t, err)

	var got recommendJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	assert.InDelta(t, 30.901, got.Latitude, 1e-9)
	require.NotEmpty(t, got.Recommendations)
	assert.LessOrEqual(t, len(got.Recommendations), 5)
	for i := 1; i < len(got.Recommendations); i++ {
		assert.GreaterOrEqual(t, got.Recommendations[i-1].Suitability, got.Recommendations[i].Suitability)
	}
	for _, r := range got.Recommendations {
		assert.GreaterOrEqual(t, r.Suitability, 35.0, r.Crop)
		assert.LessOrEqual(t, r.Suitability, 100.0, r.Crop)
	}
	require.NotEmpty(t, got.Warnings)
	assert.Contains(t, got.Warnings[0], "offline mode")
}

func TestRecommend_TableOutput(t *testing.T) {
	setupCLITest(t)

	out, err := execute(t, "recommend", "--lat", "11.0168", "--lon", "76.9558")
	require.NoError(t, err)
	assert.Contains(t, out, "Crop recommendation")
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "SUITABILITY")
	assert.Contains(t, out, "Warning: offline mode")
}

func TestRecommend_InvalidCoordinates(t *testing.T) {
	setupCLITest(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "latitude too high", args: []string{"--lat=91", "--lon=75"}},
		{name: "latitude too low", args: []string{"--lat=-90.5", "--lon=75"}},
		{name: "longitude out of range", args: []string{"--lat=30", "--lon=-200"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"recommend"}, tt.args...)...)
			require.Error(t, err)
			assert.ErrorIs(t, err, cli.ErrInvalidInput)
		})
	}
}

func TestRecommend_RequiresCoordinates(t *testing.T) {
	setupCLITest(t)

	_, err := execute(t, "recommend", "--lat", "30")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lon")
}

type priceJSON struct {
	Crop             string   `json:"crop"`
	Date             string   `json:"date"`
	PredictedPrice   float64  `json:"predicted_price"`
	Market           string   `json:"market"`
	OversupplyStatus bool     `json:"oversupply_status"`
	LowDemandStatus  bool     `json:"low_demand_status"`
	Source           string   `json:"source"`
	Warnings         []string `json:"warnings"`
}

func TestPrice_StaticFallback(t *testing.T) {
	setupCLITest(t)

	out, err := execute(t, "price", "--crop", "Wheat", "--date", "2025-06-15", "--market", "mumbai", "-o", "json")
	require.NoError(t, err)

	var got priceJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "wheat", got.Crop)
	assert.Equal(t, "Mumbai", got.Market)
	assert.Equal(t, "2025-06-15", got.Date)
	assert.InDelta(t, 4025, got.PredictedPrice, 1e-9)
	assert.Equal(t, "static", got.Source)
	require.NotEmpty(t, got.Warnings)
	assert.Contains(t, got.Warnings[0], "static fallback")
	assert.False(t, got.OversupplyStatus)
	assert.False(t, got.LowDemandStatus)
}

func TestPrice_BlendsForecastAndHistory(t *testing.T) {
	setupCLITest(t)
	dir := t.TempDir()

	prices := writeFile(t, dir, "prices.csv", "date,crop,market,price\n"+
		"2024-01-01,wheat,Ludhiana,2070\n"+
		"2024-06-01,wheat,Ludhiana,2530\n")
	forecasts := writeFile(t, dir, "forecasts.csv", "ds,crop,market,yhat\n"+
		"2025-05-01,wheat,Ludhiana,2500\n"+
		"2025-07-01,wheat,Ludhiana,9999\n")
	t.Setenv(config.EnvPricesCSV, prices)
	t.Setenv(config.EnvForecastsCSV, forecasts)

	out, err := execute(t, "price", "--crop", "wheat", "--date", "2025-06-15", "--market", "Ludhiana", "-o", "json")
	require.NoError(t, err)

	var got priceJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	// (0.7*2500 + 0.3*2300) * 1.1 seasonal * 1.05 market
	assert.InDelta(t, 2818.2, got.PredictedPrice, 1e-9)
	assert.Equal(t, "forecast+historical", got.Source)
	assert.Empty(t, got.Warnings)
}

func TestPrice_MissingPriceFileFallsBack(t *testing.T) {
	setupCLITest(t)
	t.Setenv(config.EnvPricesCSV, filepath.Join(t.TempDir(), "absent.csv"))

	out, err := execute(t, "price", "--crop", "wheat", "--date", "2025-04-15", "--market", "Ludhiana", "-o", "json")
	require.NoError(t, err, "a missing price file must not fail the command")

	var got priceJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "static", got.Source)
	assert.InDelta(t, 3675, got.PredictedPrice, 1e-9)
	require.NotEmpty(t, got.Warnings)
	assert.Contains(t, got.Warnings[0], "price data unavailable")
	assert.Contains(t, got.Warnings[0], "absent.csv")
	assert.False(t, got.OversupplyStatus)
	assert.False(t, got.LowDemandStatus)
}

func TestPrice_SkipsMalformedPriceRows(t *testing.T) {
	setupCLITest(t)
	dir := t.TempDir()

	prices := writeFile(t, dir, "prices.csv", "date,crop,market,price\n"+
		"2024-01-01,wheat,Ludhiana,2070\n"+
		"2024-03-01,wheat,Ludhiana,n/a\n"+
		"2024-06-01,wheat,Ludhiana,2530\n")
	forecasts := writeFile(t, dir, "forecasts.csv", "ds,crop,market,yhat\n2025-05-01,wheat,Ludhiana,2500\n")
	t.Setenv(config.EnvPricesCSV, prices)
	t.Setenv(config.EnvForecastsCSV, forecasts)

	out, err := execute(t, "price", "--crop", "wheat", "--date", "2025-06-15", "--market", "Ludhiana", "-o", "json")
	require.NoError(t, err)

	var got priceJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.InDelta(t, 2818.2, got.PredictedPrice, 1e-9)
	assert.Equal(t, "forecast+historical", got.Source)
	assert.Equal(t, []string{"price data: skipped 1 malformed rows"}, got.Warnings)
}

func TestRecommend_SkipsMalformedPriceRows(t *testing.T) {
	setupCLITest(t)
	prices := writeFile(t, t.TempDir(), "prices.csv", "date,crop,market,price\n"+
		"2024-01-01,wheat,Ludhiana,2070\n"+
		"2024-03-01,wheat,Ludhiana,n/a\n")
	t.Setenv(config.EnvPricesCSV, prices)

	out, err := execute(t, "recommend", "--lat", "30.901", "--lon", "75.8573", "-o", "json")
	require.NoError(t, err)

	var got struct {
		Recommendations []map[string]any `json:"recommendations"`
		Warnings        []string         `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.NotEmpty(t, got.Recommendations)
	assert.Contains(t, got.Warnings, "price data: skipped 1 malformed rows")
}

func TestPrice_TableOutput(t *testing.T) {
	setupCLITest(t)

	out, err := execute(t, "price", "--crop", "pepper", "--date", "2025-03-01", "--lat", "10.5276", "--lon", "76.2144")
	require.NoError(t, err)
	assert.Contains(t, out, "Price forecast")
	assert.Contains(t, out, "Kochi")
	assert.Contains(t, out, "28,500.00 per ton")
}

func TestPrice_InvalidInput(t *testing.T) {
	setupCLITest(t)

	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{name: "unknown crop", args: []string{"--crop", "quinoa"}, msg: "unknown crop"},
		{name: "bad date", args: []string{"--crop", "rice", "--date", "15/06/2025"}, msg: "YYYY-MM-DD"},
		{name: "unknown market", args: []string{"--crop", "rice", "--market", "Atlantis"}, msg: "unknown market"},
		{name: "bad latitude", args: []string{"--crop", "rice", "--lat=120"}, msg: "latitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"price"}, tt.args...)...)
			require.Error(t, err)
			assert.ErrorIs(t, err, cli.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestMarketStatus_NoData(t *testing.T) {
	setupCLITest(t)

	out, err := execute(t, "market", "status", "--crop", "rice", "--market", "Chennai", "--as-of", "2025-01-01", "-o", "json")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "rice", got["crop"])
	assert.Equal(t, "Chennai", got["market"])
	assert.Equal(t, "2025-01-01", got["as_of"])
	assert.Equal(t, false, got["oversupply_status"])
	assert.Equal(t, false, got["low_demand_status"])
}

func TestMarketStatus_FromPrices(t *testing.T) {
	setupCLITest(t)

	prices := writeFile(t, t.TempDir(), "prices.csv", "date,crop,market,price\n"+
		"2023-01-01,cotton,Delhi,1000\n"+
		"2023-06-01,cotton,Delhi,1200\n"+
		"2024-09-01,cotton,Delhi,500\n"+
		"2024-12-01,cotton,Delhi,500\n")
	t.Setenv(config.EnvPricesCSV, prices)

	out, err := execute(t, "market", "status", "--crop", "cotton", "--market", "Delhi", "--as-of", "2025-01-01", "-o", "json")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	// Recent mean 500 against an all-time mean of 800, with no recent variance.
	assert.Equal(t, true, got["oversupply_status"])
	assert.Equal(t, true, got["low_demand_status"])
}

func TestMarketList(t *testing.T) {
	setupCLITest(t)

	out, err := execute(t, "market", "list", "-o", "json")
	require.NoError(t, err)

	var got []struct {
		Name       string  `json:"name"`
		Multiplier float64 `json:"price_multiplier"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 6)
	names := make([]string, len(got))
	for i, m := range got {
		names[i] = m.Name
	}
	assert.Equal(t, []string{"Bangalore", "Chennai", "Delhi", "Kochi", "Ludhiana", "Mumbai"}, names)
	assert.InDelta(t, 1.15, got[5].Multiplier, 1e-9)
}

func TestMarketNearest(t *testing.T) {
	setupCLITest(t)

	out, err := execute(t, "market", "nearest", "--lat", "10.5276", "--lon", "76.2144")
	require.NoError(t, err)
	assert.Contains(t, out, "Kochi")
	assert.Contains(t, out, "DISTANCE KM")
}

type batchJSON struct {
	FarmID          string `json:"farm_id"`
	Recommendations []struct {
		Crop string `json:"crop"`
	} `json:"recommendations"`
	Price *struct {
		Crop   string `json:"crop"`
		Market string `json:"market"`
		Date   string `json:"date"`
	} `json:"price"`
	Error string `json:"error"`
}

func TestBatch_ReportsPerFarmFailures(t *testing.T) {
	setupCLITest(t)

	farms := writeFile(t, t.TempDir(), "farms.csv", "id,latitude,longitude,market\n"+
		"f1,30.901,75.8573,Ludhiana\n"+
		"f2,10.5276,76.2144,\n"+
		"f3,13.0827,80.2707,Atlantis\n")

	out, err := execute(t, "batch", "--farms", farms, "--batch-size", "2", "--concurrency", "2",
		"--with-price", "--date", "2025-10-01", "-o", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 farms failed")

	var rows []batchJSON
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)

	assert.Equal(t, "f1", rows[0].FarmID)
	require.NotEmpty(t, rows[0].Recommendations)
	require.NotNil(t, rows[0].Price)
	assert.Equal(t, rows[0].Recommendations[0].Crop, rows[0].Price.Crop)
	assert.Equal(t, "Ludhiana", rows[0].Price.Market)
	assert.Equal(t, "2025-10-01", rows[0].Price.Date)

	require.NotNil(t, rows[1].Price)
	assert.Equal(t, "Kochi", rows[1].Price.Market)

	assert.Equal(t, "f3", rows[2].FarmID)
	assert.Contains(t, rows[2].Error, "unknown market")
}

func TestBatch_InvalidInput(t *testing.T) {
	setupCLITest(t)
	dir := t.TempDir()
	good := writeFile(t, dir, "good.csv", "id,lat,lon\nf1,30,75\n")
	bad := writeFile(t, dir, "bad.csv", "id,lat,lon\nf1,95,75\n")

	_, err := execute(t, "batch", "--farms", bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, cli.ErrInvalidInput)

	_, err = execute(t, "batch", "--farms", good, "--batch-size", "0")
	require.Error(t, err)
	assert.ErrorIs(t, err, cli.ErrInvalidInput)

	_, err = execute(t, "batch", "--farms", filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
}

func TestBatch_TableOutput(t *testing.T) {
	setupCLITest(t)
	farms := writeFile(t, t.TempDir(), "farms.csv", "farm_id,lat,lng\nnorth,30.901,75.8573\n")

	out, err := execute(t, "batch", "--farms", farms)
	require.NoError(t, err)
	assert.Contains(t, out, "Batch recommendations")
	assert.Contains(t, out, "north")
	assert.Contains(t, out, "degraded")
}

func TestRulesList(t *testing.T) {
	setupCLITest(t)

	out, err := execute(t, "rules", "list", "wheat", "-o", "json")
	require.NoError(t, err)

	var got struct {
		Version string                      `json:"version"`
		Crops   map[string][]map[string]any `json:"crops"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Regexp(t, `^1\.`, got.Version)
	require.Contains(t, got.Crops, "wheat")
	assert.NotEmpty(t, got.Crops["wheat"])
	assert.Len(t, got.Crops, 1)

	_, err = execute(t, "rules", "list", "quinoa")
	require.ErrorIs(t, err, cli.ErrInvalidInput)
}

func TestRulesValidate(t *testing.T) {
	setupCLITest(t)
	dir := t.TempDir()

	out, err := execute(t, "rules", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Rule table is valid: embedded table")

	valid := writeFile(t, dir, "rules.yaml", `version: "1.4.0"
crops:
  wheat:
    - parameter: ph
      min: 6
      max: 7.5
      weight: 1
`)
	out, err = execute(t, "rules", "validate", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "version 1.4.0, 1 crops")
	assert.Contains(t, out, "rice has no rules")

	future := writeFile(t, dir, "future.yaml", "version: \"2.0.0\"\ncrops: {}\n")
	_, err = execute(t, "rules", "validate", future)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule table validation failed")
}
