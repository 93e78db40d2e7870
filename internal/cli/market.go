package cli

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/agrichain/cropadvisor/internal/engine"
	"github.com/agrichain/cropadvisor/internal/market"
)

// marketView is the JSON shape of a market.
type marketView struct {
	Name       string   `json:"name"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Multiplier float64  `json:"price_multiplier"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

func newMarketView(m market.Market) marketView {
	return marketView{Name: m.Name, Latitude: m.Latitude, Longitude: m.Longitude, Multiplier: m.Multiplier}
}

// marketStatusOutput is the rendered result of market status.
type marketStatusOutput struct {
	Crop   string `json:"crop"`
	Market string `json:"market"`
	AsOf   string `json:"as_of"`
	engine.MarketStatus
	Warnings []string `json:"warnings,omitempty"`
}

// newMarketCmd creates the market command group.
func newMarketCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "market", Short: "Market lookup and market condition commands"}
	cmd.AddCommand(NewMarketStatusCmd(), NewMarketListCmd(), NewMarketNearestCmd())
	return cmd
}

// NewMarketStatusCmd creates the market status command.
func NewMarketStatusCmd() *cobra.Command {
	var crop, marketName, asOf string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show oversupply and low demand flags for a crop at a market",
		Long: `Evaluates market conditions for a crop over the 365 days ending on --as-of.

With supply and demand readings the flags compare them directly. With prices
only, depressed prices signal oversupply and unusually stable prices signal low
demand. Without data both flags are false.`,
		Example: `  # Current conditions for rice in Chennai
  cropadvisor market status --crop rice --market Chennai

  # Conditions as of a past date
  cropadvisor market status --crop wheat --market Ludhiana --as-of 2024-06-30`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMarketStatus(cmd, crop, marketName, asOf)
		},
	}

	cmd.Flags().StringVar(&crop, "crop", "", "crop identifier")
	cmd.Flags().StringVar(&marketName, "market", "", "market name")
	cmd.Flags().StringVar(&asOf, "as-of", "", "end of the evaluation window as YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("crop")
	_ = cmd.MarkFlagRequired("market")

	return cmd
}

func runMarketStatus(cmd *cobra.Command, cropFlag, marketFlag, asOfFlag string) error {
	crop, err := validateCrop(cropFlag)
	if err != nil {
		return err
	}
	asOf, err := parseDate("as-of", asOfFlag)
	if err != nil {
		return err
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	marketName, err := validateMarket(a.engine.Markets(), marketFlag)
	if err != nil {
		return err
	}

	status := a.engine.EvaluateMarket(ctx, crop, marketName, asOf)
	out := marketStatusOutput{
		Crop:         crop,
		Market:       marketName,
		AsOf:         asOf.Format(time.DateOnly),
		MarketStatus: status,
		Warnings:     a.withDataWarnings(nil),
	}

	if outputFormat(cmd) == outputJSON {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	return report{
		title: "Market status",
		facts: [][2]string{
			{"Crop", out.Crop},
			{"Market", out.Market},
			{"As of", out.AsOf},
			{"Oversupply", yesNo(out.OversupplyStatus)},
			{"Low demand", yesNo(out.LowDemandStatus)},
		},
		warnings: out.Warnings,
	}.render(cmd.OutOrStdout())
}

// NewMarketListCmd creates the market list command.
func NewMarketListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List known markets and their price factors",
		Example: `  cropadvisor market list -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := market.DefaultRegistry()
			views := make([]marketView, 0, len(reg.Names()))
			for _, name := range reg.Names() {
				m, _ := reg.Lookup(name)
				views = append(views, newMarketView(m))
			}
			return renderMarkets(cmd.OutOrStdout(), outputFormat(cmd), views)
		},
	}
}

// NewMarketNearestCmd creates the market nearest command.
func NewMarketNearestCmd() *cobra.Command {
	var lat, lon float64

	cmd := &cobra.Command{
		Use:     "nearest",
		Short:   "Find the market nearest to a location",
		Example: `  cropadvisor market nearest --lat 10.5276 --lon 76.2144`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateCoordinates(lat, lon); err != nil {
				return err
			}
			m, km, ok := market.DefaultRegistry().Nearest(lat, lon)
			if !ok {
				return errors.New("no markets configured")
			}
			view := newMarketView(m)
			view.DistanceKm = &km
			return renderMarkets(cmd.OutOrStdout(), outputFormat(cmd), []marketView{view})
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in decimal degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude in decimal degrees")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")

	return cmd
}

func renderMarkets(w io.Writer, format string, views []marketView) error {
	if format == outputJSON {
		return writeJSON(w, views)
	}

	r := report{title: "Markets", header: []string{"MARKET", "LATITUDE", "LONGITUDE", "PRICE FACTOR"}}
	withDistance := len(views) > 0 && views[0].DistanceKm != nil
	if withDistance {
		r.header = append(r.header, "DISTANCE KM")
	}
	for _, v := range views {
		row := []string{
			v.Name,
			strconv.FormatFloat(v.Latitude, 'f', 4, 64),
			strconv.FormatFloat(v.Longitude, 'f', 4, 64),
			strconv.FormatFloat(v.Multiplier, 'f', 2, 64),
		}
		if withDistance && v.DistanceKm != nil {
			row = append(row, strconv.FormatFloat(*v.DistanceKm, 'f', 1, 64))
		}
		r.rows = append(r.rows, row)
	}
	return r.render(w)
}
