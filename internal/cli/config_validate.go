package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agrichain/cropadvisor/internal/config"
)

// NewConfigValidateCmd creates the config validate command for validating configuration.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validates the effective configuration: the config file, the --config overlay
and CROPADVISOR_* environment variables.

This includes:
- Value ranges (timeouts, cache sizes, ranking thresholds)
- Logging format
- The rule table named by data.rules_file, if any
- The classifier model named by classifier.model_path, if any`,
		Example: `  # Validate current configuration
  cropadvisor config validate

  # Validate and show detailed information
  cropadvisor config validate --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, verbose bool) error {
	cfg := config.GetGlobalConfig()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if _, err := loadRules(cfg.Data.RulesFile); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if _, err := buildClassifier(cfg.Classifier); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cmd.Printf("✅ Configuration is valid\n")

	if verbose {
		printVerboseDetails(cmd, cfg)
	}

	return nil
}

// printVerboseDetails prints detailed configuration information.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config) {
	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Config file: %s\n", cfg.ConfigPath())
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
	cmd.Printf("  Log file: %s\n", valueOrNone(cfg.Logging.File))
	cmd.Printf("  Rules file: %s\n", valueOr(cfg.Data.RulesFile, "embedded"))
	cmd.Printf("  Prices CSV: %s\n", valueOrNone(cfg.Data.PricesCSV))
	cmd.Printf("  Forecasts CSV: %s\n", valueOrNone(cfg.Data.ForecastsCSV))
	cmd.Printf("  SQLite: %s\n", valueOrNone(cfg.Data.SQLitePath))

	printClassifierDetails(cmd, cfg.Classifier)

	cmd.Printf("  Provider timeout: %ds\n", cfg.Sources.TimeoutSeconds)
	cmd.Printf("  Soil cache: %s (TTL %dh)\n", valueOrNone(cfg.Sources.CacheDir), cfg.Sources.CacheTTLHours)
	cmd.Printf("  Offline: %t\n", cfg.Sources.Offline)
	cmd.Printf("  Top N: %d, minimum suitability: %.1f\n", cfg.Engine.TopN, cfg.Engine.MinSuitability)
	cmd.Printf("  Prediction store: %s\n", storeState(cfg.Store))
}

// printClassifierDetails prints which classifier binding is active.
func printClassifierDetails(cmd *cobra.Command, c config.ClassifierConfig) {
	switch {
	case c.ModelPath != "":
		cmd.Printf("  Classifier: model file %s\n", c.ModelPath)
	case c.URL != "":
		cmd.Printf("  Classifier: remote %s\n", c.URL)
	default:
		cmd.Println("  Classifier: none (rule-based ranking)")
	}
}

func storeState(s config.StoreConfig) string {
	if s.DatabaseURL == "" {
		return "disabled"
	}
	return "enabled"
}

func valueOrNone(v string) string {
	return valueOr(v, "(none)")
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
