package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agrichain/cropadvisor/internal/agro"
	"github.com/agrichain/cropadvisor/internal/engine"
)

// recommendOutput is the rendered result of the recommend command.
type recommendOutput struct {
	Latitude        float64                    `json:"latitude"`
	Longitude       float64                    `json:"longitude"`
	Snapshot        agro.EnvironmentalSnapshot `json:"snapshot"`
	Recommendations []engine.SuitabilityResult `json:"recommendations"`
	Warnings        []string                   `json:"warnings,omitempty"`
	RecordID        string                     `json:"record_id,omitempty"`
}

type recommendFlags struct {
	lat    float64
	lon    float64
	farmID string
	record bool
}

// NewRecommendCmd creates the recommend command, which ranks crops for a location.
func NewRecommendCmd() *cobra.Command {
	var flags recommendFlags

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank crops for a farm location",
		Long: `Collects weather, soil, climate and elevation data for the location and
ranks the known crops by suitability (0-100). Up to five crops are listed, best
first. Unavailable data sources fall back to typical values and are reported as
warnings.`,
		Example: `  # Rank crops for a location
  cropadvisor recommend --lat 30.901 --lon 75.8573

  # Record the recommendation for a farm in the prediction store
  cropadvisor recommend --lat 30.901 --lon 75.8573 --farm-id farm-17 --record

  # JSON output without calling external services
  CROPADVISOR_OFFLINE=1 cropadvisor recommend --lat 30.901 --lon 75.8573 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecommend(cmd, flags)
		},
	}

	cmd.Flags().Float64Var(&flags.lat, "lat", 0, "farm latitude in decimal degrees")
	cmd.Flags().Float64Var(&flags.lon, "lon", 0, "farm longitude in decimal degrees")
	cmd.Flags().StringVar(&flags.farmID, "farm-id", "", "farm identifier stored with a recorded recommendation")
	cmd.Flags().BoolVar(&flags.record, "record", false, "record the recommendation in the prediction store")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")

	return cmd
}

func runRecommend(cmd *cobra.Command, flags recommendFlags) error {
	if err := validateCoordinates(flags.lat, flags.lon); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{collector: true, recorder: flags.record})
	if err != nil {
		return err
	}
	defer a.Close()

	loc := engine.Location{Latitude: flags.lat, Longitude: flags.lon}
	snap, warnings := a.collector.Collect(ctx, loc.Latitude, loc.Longitude)
	results := a.engine.Recommend(ctx, snap, loc)

	out := recommendOutput{
		Latitude:        loc.Latitude,
		Longitude:       loc.Longitude,
		Snapshot:        snap,
		Recommendations: results,
		Warnings:        a.withDataWarnings(warnings),
	}

	if flags.record {
		id, recErr := a.recorder.RecordRecommendation(ctx, flags.farmID, loc, results)
		if recErr != nil {
			logger.Warn().Ctx(ctx).Err(recErr).Msg("recording recommendation failed")
			out.Warnings = append(out.Warnings, fmt.Sprintf("recording failed: %v", recErr))
		}
		out.RecordID = id
	}

	logger.Info().Ctx(ctx).
		Int("results", len(results)).
		Int("warnings", len(out.Warnings)).
		Msg("recommendation complete")

	return renderRecommendation(cmd.OutOrStdout(), outputFormat(cmd), out)
}

func renderRecommendation(w io.Writer, format string, out recommendOutput) error {
	if format == outputJSON {
		return writeJSON(w, out)
	}

	r := report{
		title: "Crop recommendation",
		facts: [][2]string{
			{"Location", fmt.Sprintf("%.4f, %.4f", out.Latitude, out.Longitude)},
			{"Soil", fmt.Sprintf("%s, pH %.1f", out.Snapshot.SoilType, out.Snapshot.PH)},
			{"Climate", fmt.Sprintf("%.1f °C avg, %.0f mm/year", out.Snapshot.AvgTempC, out.Snapshot.AvgRainfallMmYear)},
		},
		header:   []string{"RANK", "CROP", "SUITABILITY"},
		warnings: out.Warnings,
	}
	if out.RecordID != "" {
		r.facts = append(r.facts, [2]string{"Record", out.RecordID})
	}
	for i, res := range out.Recommendations {
		r.rows = append(r.rows, []string{
			strconv.Itoa(i + 1),
			res.Crop,
			strconv.FormatFloat(res.Suitability, 'f', 1, 64),
		})
	}
	return r.render(w)
}
