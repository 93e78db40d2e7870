package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/agrichain/cropadvisor/internal/engine"
)

// priceOutput is the rendered result of the price command.
type priceOutput struct {
	engine.PriceForecastResult

	RecordID string `json:"record_id,omitempty"`
}

type priceFlags struct {
	crop   string
	date   string
	market string
	lat    float64
	lon    float64
	farmID string
	record bool
}

// NewPriceCmd creates the price command, which predicts a crop price at harvest.
func NewPriceCmd() *cobra.Command {
	var flags priceFlags

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Predict the price of a crop at harvest",
		Long: `Predicts the price per ton of a crop on the harvest date at a market.

The prediction blends the price forecast with the historical mean, adjusts it
for the harvest month and applies the market's price factor. Without forecast
or history a static reference price is used. Oversupply and low demand flags
describe the market in the year before harvest.

Without --market the market nearest to --lat/--lon is used.`,
		Example: `  # Wheat at Ludhiana for a spring harvest
  cropadvisor price --crop wheat --date 2025-04-15 --market Ludhiana

  # Use the market nearest to a farm
  cropadvisor price --crop pepper --date 2025-12-01 --lat 10.5276 --lon 76.2144

  # Record the prediction for a farm
  cropadvisor price --crop rice --date 2025-10-01 --market Chennai --farm-id farm-17 --record`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrice(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.crop, "crop", "", "crop identifier, e.g. wheat")
	cmd.Flags().StringVar(&flags.date, "date", "", "harvest date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&flags.market, "market", "", "market name (default nearest to --lat/--lon)")
	cmd.Flags().Float64Var(&flags.lat, "lat", 0, "farm latitude, used to pick the nearest market")
	cmd.Flags().Float64Var(&flags.lon, "lon", 0, "farm longitude, used to pick the nearest market")
	cmd.Flags().StringVar(&flags.farmID, "farm-id", "", "farm identifier stored with a recorded prediction")
	cmd.Flags().BoolVar(&flags.record, "record", false, "record the prediction in the prediction store")
	_ = cmd.MarkFlagRequired("crop")

	return cmd
}

func runPrice(cmd *cobra.Command, flags priceFlags) error {
	crop, err := validateCrop(flags.crop)
	if err != nil {
		return err
	}
	harvest, err := parseDate("date", flags.date)
	if err != nil {
		return err
	}
	if err = validateCoordinates(flags.lat, flags.lon); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{recorder: flags.record})
	if err != nil {
		return err
	}
	defer a.Close()

	marketName, err := validateMarket(a.engine.Markets(), flags.market)
	if err != nil {
		return err
	}

	result := a.engine.PredictPrice(ctx, engine.PriceQuery{
		Crop:        crop,
		HarvestDate: harvest,
		Market:      marketName,
		Latitude:    flags.lat,
		Longitude:   flags.lon,
		FarmID:      flags.farmID,
	})

	out := priceOutput{PriceForecastResult: result}
	out.Warnings = a.withDataWarnings(result.Warnings)
	if flags.record {
		id, recErr := a.recorder.RecordPrice(ctx, flags.farmID, result)
		if recErr != nil {
			logger.Warn().Ctx(ctx).Err(recErr).Msg("recording price prediction failed")
			out.Warnings = append(out.Warnings, fmt.Sprintf("recording failed: %v", recErr))
		}
		out.RecordID = id
	}

	logger.Info().Ctx(ctx).
		Str("crop", result.Crop).
		Str("market", result.Market).
		Str("source", result.Source).
		Msg("price prediction complete")

	return renderPrice(cmd.OutOrStdout(), outputFormat(cmd), out)
}

func renderPrice(w io.Writer, format string, out priceOutput) error {
	if format == outputJSON {
		return writeJSON(w, out)
	}

	p := newPrinter()
	r := report{
		title: "Price forecast",
		facts: [][2]string{
			{"Crop", out.Crop},
			{"Market", out.Market},
			{"Harvest date", out.Date},
			{"Predicted price", formatPrice(p, out.PredictedPrice) + " per ton"},
			{"Source", out.Source},
			{"Oversupply", yesNo(out.OversupplyStatus)},
			{"Low demand", yesNo(out.LowDemandStatus)},
		},
		warnings: out.Warnings,
	}
	if out.RecordID != "" {
		r.facts = append(r.facts, [2]string{"Record", out.RecordID})
	}
	return r.render(w)
}
