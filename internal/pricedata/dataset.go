// Package pricedata loads historical crop prices and pre-computed price
// forecasts, and serves them per crop and market.
//
// Data is read once at startup from CSV files and/or a SQLite database into
// an in-memory Dataset, which is read-only afterwards.
package pricedata

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// PricePoint is one observation in a historical series. Supply and Demand are
// meaningful only when HasSupplyDemand is set.
type PricePoint struct {
	Date            time.Time
	Price           float64
	Supply          float64
	Demand          float64
	HasSupplyDemand bool
}

// ForecastPoint is one row of a time-series model export (ds, yhat).
type ForecastPoint struct {
	Date  time.Time
	Value float64
}

// Series is the historical series of one crop at one market, sorted by date.
type Series struct {
	Crop   string
	Market string
	Points []PricePoint
}

// HasSupplyDemand reports whether any point carries supply and demand.
func (s Series) HasSupplyDemand() bool {
	for _, p := range s.Points {
		if p.HasSupplyDemand {
			return true
		}
	}
	return false
}

// Key identifies a crop-market pair. Both parts are lower-cased.
type Key struct {
	Crop   string
	Market string
}

// NewKey normalizes crop and market into a Key.
func NewKey(crop, market string) Key {
	return Key{
		Crop:   strings.ToLower(strings.TrimSpace(crop)),
		Market: strings.ToLower(strings.Join(strings.Fields(market), " ")),
	}
}

// Dataset is an in-memory store of price series and forecasts.
// Build it with the Add methods, then call Finalize before sharing it.
type Dataset struct {
	history   map[Key][]PricePoint
	forecasts map[Key][]ForecastPoint
	skipped   int
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{
		history:   make(map[Key][]PricePoint),
		forecasts: make(map[Key][]ForecastPoint),
	}
}

// AddPrice appends one historical observation.
func (d *Dataset) AddPrice(crop, market string, p PricePoint) {
	k := NewKey(crop, market)
	d.history[k] = append(d.history[k], p)
}

// AddForecast appends one forecast row.
func (d *Dataset) AddForecast(crop, market string, f ForecastPoint) {
	k := NewKey(crop, market)
	d.forecasts[k] = append(d.forecasts[k], f)
}

// Merge appends every row of other into d.
func (d *Dataset) Merge(other *Dataset) {
	if other == nil {
		return
	}
	for k, pts := range other.history {
		d.history[k] = append(d.history[k], pts...)
	}
	for k, pts := range other.forecasts {
		d.forecasts[k] = append(d.forecasts[k], pts...)
	}
	d.skipped += other.skipped
}

// Finalize sorts every series by date.
func (d *Dataset) Finalize() {
	for _, pts := range d.history {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
	}
	for _, pts := range d.forecasts {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
	}
}

// Stats summarizes what a dataset holds.
type Stats struct {
	Series         int
	PricePoints    int
	ForecastSeries int
	ForecastPoints int
	SkippedRows    int
}

// Stats counts the dataset's contents.
func (d *Dataset) Stats() Stats {
	var s Stats
	s.Series = len(d.history)
	for _, pts := range d.history {
		s.PricePoints += len(pts)
	}
	s.ForecastSeries = len(d.forecasts)
	for _, pts := range d.forecasts {
		s.ForecastPoints += len(pts)
	}
	s.SkippedRows = d.skipped
	return s
}

// History returns the historical series for crop at market.
// It fails with ErrNoSeries when there is none.
func (d *Dataset) History(_ context.Context, crop, market string) (Series, error) {
	k := NewKey(crop, market)
	pts := d.history[k]
	if len(pts) == 0 {
		return Series{}, fmt.Errorf("%w: history for %s at %s", ErrNoSeries, k.Crop, k.Market)
	}
	return Series{Crop: k.Crop, Market: k.Market, Points: pts}, nil
}

// Forecast returns the forecast rows for crop at market, sorted by date.
// It fails with ErrNoSeries when there are none.
func (d *Dataset) Forecast(_ context.Context, crop, market string) ([]ForecastPoint, error) {
	k := NewKey(crop, market)
	pts := d.forecasts[k]
	if len(pts) == 0 {
		return nil, fmt.Errorf("%w: forecast for %s at %s", ErrNoSeries, k.Crop, k.Market)
	}
	return pts, nil
}

// Sources names the files a Dataset is loaded from. Empty entries are skipped.
type Sources struct {
	PricesCSV    string
	ForecastsCSV string
	SQLitePath   string
}

// Load reads every configured source into one finalized Dataset. Sources are
// loaded independently: a source that fails is left out and its error is
// returned in failed, while the rows of the other sources are kept. The
// returned Dataset is never nil.
func Load(ctx context.Context, src Sources) (ds *Dataset, failed []error) {
	ds = NewDataset()

	if src.SQLitePath != "" {
		fromDB, err := LoadSQLite(ctx, src.SQLitePath)
		if err != nil {
			failed = append(failed, err)
		} else {
			ds.Merge(fromDB)
		}
	}
	if src.PricesCSV != "" {
		fromCSV := NewDataset()
		if err := fromCSV.LoadPricesCSV(src.PricesCSV); err != nil {
			failed = append(failed, err)
		} else {
			ds.Merge(fromCSV)
		}
	}
	if src.ForecastsCSV != "" {
		fromCSV := NewDataset()
		if err := fromCSV.LoadForecastsCSV(src.ForecastsCSV); err != nil {
			failed = append(failed, err)
		} else {
			ds.Merge(fromCSV)
		}
	}

	ds.Finalize()
	return ds, failed
}
