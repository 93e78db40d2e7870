package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agrichain/cropadvisor/internal/config"
	"github.com/agrichain/cropadvisor/internal/logging"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// isWriterTerminal reports whether w is a terminal. Buffers used in tests
// never are.
func isWriterTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isTerminal(f)
	}
	return false
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the cropadvisor CLI.
// It loads configuration, wires logging and tracing, and registers the
// recommend, price, market, batch, rules and config subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var logResult *logging.LogPathResult

	cmd := &cobra.Command{
		Use:   "cropadvisor",
		Short: "Crop recommendation and crop price forecasting",
		Long: `cropadvisor ranks crops for a farm location from soil, weather and climate
data, and predicts crop prices at harvest for the nearest wholesale market.`,
		Version:      ver,
		Example:      rootCmdExample,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			overlay, _ := cmd.Flags().GetString("config")
			if _, err := config.InitGlobalConfig(overlay); err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			output, _ := cmd.Flags().GetString("output")
			if err := validateOutput(output); err != nil {
				return err
			}

			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return cleanupLogging(logResult)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("config", "", "YAML file whose top-level sections override the config file")
	cmd.PersistentFlags().StringP("output", "o", outputTable, "output format: table or json")

	cmd.AddCommand(
		NewRecommendCmd(), NewPriceCmd(), newMarketCmd(),
		NewBatchCmd(), newRulesCmd(), newCacheCmd(), newConfigCmd(),
	)

	return cmd
}

const rootCmdExample = `  # Rank crops for a farm near Coimbatore
  cropadvisor recommend --lat 11.0168 --lon 76.9558

  # Predict the wheat price at harvest in Ludhiana
  cropadvisor price --crop wheat --date 2025-04-15 --market Ludhiana

  # Check market conditions for rice in Chennai
  cropadvisor market status --crop rice --market Chennai

  # Recommend crops for every farm in a CSV file, as JSON
  cropadvisor batch --farms farms.csv --output json

  # Show the agronomic rule table
  cropadvisor rules list

  # Initialize configuration
  cropadvisor config init`

// newConfigCmd creates the config command group with configuration subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigValidateCmd())
	return cmd
}

// outputFormat returns the --output flag value.
func outputFormat(cmd *cobra.Command) string {
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		return outputTable
	}
	return output
}
