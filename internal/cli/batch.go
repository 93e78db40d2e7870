package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agrichain/cropadvisor/internal/batch"
	"github.com/agrichain/cropadvisor/internal/engine"
)

// batchRow is the rendered result for one farm.
type batchRow struct {
	batch.FarmResult

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Error     string  `json:"error,omitempty"`
}

type batchFlags struct {
	farms       string
	batchSize   int
	concurrency int
	record      bool
	withPrice   bool
	date        string
}

// NewBatchCmd creates the batch command, which advises every farm in a CSV file.
func NewBatchCmd() *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Recommend crops for every farm in a CSV file",
		Long: `Reads farms from a CSV file with the columns id, latitude, longitude and an
optional market, and ranks crops for each farm. Farms are processed in batches,
several batches at a time. A farm that fails is reported without stopping the
others; the command exits non-zero when any farm failed.`,
		Example: `  # Advise every farm, four batches at a time
  cropadvisor batch --farms farms.csv --concurrency 4

  # Also price each farm's top crop at harvest
  cropadvisor batch --farms farms.csv --with-price --date 2025-10-01 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.farms, "farms", "", "path to the farms CSV file")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", batch.DefaultBatchSize, "farms per batch")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 1, "batches processed at the same time")
	cmd.Flags().BoolVar(&flags.record, "record", false, "record each recommendation in the prediction store")
	cmd.Flags().BoolVar(&flags.withPrice, "with-price", false, "predict the price of each farm's top crop")
	cmd.Flags().StringVar(&flags.date, "date", "", "harvest date for --with-price as YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("farms")

	return cmd
}

func runBatch(cmd *cobra.Command, flags batchFlags) error {
	if flags.batchSize <= 0 {
		return fmt.Errorf("%w: --batch-size must be positive", ErrInvalidInput)
	}
	if flags.concurrency <= 0 {
		return fmt.Errorf("%w: --concurrency must be positive", ErrInvalidInput)
	}
	harvest, err := parseDate("date", flags.date)
	if err != nil {
		return err
	}

	farms, err := batch.LoadFarmsCSV(flags.farms)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{collector: true, recorder: flags.record})
	if err != nil {
		return err
	}
	defer a.Close()

	advise := func(ctx context.Context, farm batch.Farm) batch.FarmResult {
		return a.adviseFarm(ctx, farm, flags, harvest)
	}

	start := time.Now()
	results, err := batch.Run(ctx, farms, advise, batch.RunOptions{
		BatchSize:   flags.batchSize,
		Concurrency: flags.concurrency,
		OnProgress: func(s batch.ProgressSnapshot) {
			logger.Debug().Ctx(ctx).
				Int("processed", s.ProcessedItems).
				Int("total", s.TotalItems).
				Float64("percent", s.PercentComplete).
				Msg("batch progress")
		},
	})
	if err != nil {
		return fmt.Errorf("batch run: %w", err)
	}

	rows := make([]batchRow, len(results))
	failed := 0
	for i, r := range results {
		rows[i] = batchRow{FarmResult: r, Latitude: r.Farm.Latitude, Longitude: r.Farm.Longitude}
		if r.Err != nil {
			rows[i].Error = r.Err.Error()
			failed++
		}
	}

	logger.Info().Ctx(ctx).
		Int("farms", len(rows)).
		Int("failed", failed).
		Dur("elapsed", time.Since(start)).
		Msg("batch complete")

	if err = renderBatch(cmd.OutOrStdout(), outputFormat(cmd), rows, a.dataWarnings); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d farms failed", failed, len(rows))
	}
	return nil
}

// adviseFarm ranks crops for one farm and, on request, prices the top crop
// and records the recommendation.
func (a *app) adviseFarm(ctx context.Context, farm batch.Farm, flags batchFlags, harvest time.Time) batch.FarmResult {
	marketName, err := validateMarket(a.engine.Markets(), farm.Market)
	if err != nil {
		return batch.FarmResult{Err: err}
	}

	loc := farm.Location()
	snap, warnings := a.collector.Collect(ctx, loc.Latitude, loc.Longitude)
	recs := a.engine.Recommend(ctx, snap, loc)
	res := batch.FarmResult{Recommendations: recs, Warnings: warnings}

	if flags.withPrice && len(recs) > 0 {
		price := a.engine.PredictPrice(ctx, engine.PriceQuery{
			Crop:        recs[0].Crop,
			HarvestDate: harvest,
			Market:      marketName,
			Latitude:    loc.Latitude,
			Longitude:   loc.Longitude,
			FarmID:      farm.ID,
		})
		res.Price = &price
	}

	if flags.record {
		id, recErr := a.recorder.RecordRecommendation(ctx, farm.ID, loc, recs)
		if recErr != nil {
			res.Err = fmt.Errorf("recording recommendation: %w", recErr)
			return res
		}
		res.RecordID = id
	}
	return res
}

// renderBatch writes one row per farm. Warnings about shared price data are
// listed once under the table; JSON output carries only the rows.
func renderBatch(w io.Writer, format string, rows []batchRow, warnings []string) error {
	if format == outputJSON {
		return writeJSON(w, rows)
	}

	p := newPrinter()
	r := report{
		title:    "Batch recommendations",
		facts:    [][2]string{{"Farms", strconv.Itoa(len(rows))}},
		header:   []string{"FARM", "TOP CROP", "SUITABILITY", "OTHERS", "PRICE", "STATUS"},
		warnings: warnings,
	}
	for _, row := range rows {
		top, score, others := "-", "-", "-"
		if len(row.Recommendations) > 0 {
			top = row.Recommendations[0].Crop
			score = strconv.FormatFloat(row.Recommendations[0].Suitability, 'f', 1, 64)
			names := make([]string, 0, len(row.Recommendations)-1)
			for _, rec := range row.Recommendations[1:] {
				names = append(names, rec.Crop)
			}
			if len(names) > 0 {
				others = strings.Join(names, ",")
			}
		}
		price := "-"
		if row.Price != nil {
			price = formatPrice(p, row.Price.PredictedPrice) + " @ " + row.Price.Market
		}
		status := "ok"
		switch {
		case row.Error != "":
			status = "error: " + row.Error
		case len(row.Warnings) > 0:
			status = fmt.Sprintf("degraded (%d warnings)", len(row.Warnings))
		}
		r.rows = append(r.rows, []string{row.FarmID, top, score, others, price, status})
	}
	return r.render(w)
}
