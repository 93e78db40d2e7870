package pricedata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Accepted column names, first match wins.
var (
	dateColumns     = []string{"date", "ds"}
	cropColumns     = []string{"crop", "commodity"}
	marketColumns   = []string{"market", "mandi"}
	priceColumns    = []string{"price", "price_per_ton", "modal_price"}
	supplyColumns   = []string{"supply", "production_tons"}
	demandColumns   = []string{"demand", "demand_tons"}
	forecastColumns = []string{"yhat", "forecast", "price"}
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01",
}

// ParseDate accepts the date layouts found in exported price tables.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	cols, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	h := make(header, len(cols))
	for i, c := range cols {
		h[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c, "\ufeff")))] = i
	}
	return h, nil
}

// find returns the index of the first present alias, or -1.
func (h header) find(aliases []string) int {
	for _, a := range aliases {
		if i, ok := h[a]; ok {
			return i
		}
	}
	return -1
}

func (h header) require(aliases []string) (int, error) {
	if i := h.find(aliases); i >= 0 {
		return i, nil
	}
	return -1, fmt.Errorf("%w: one of %v", ErrMissingColumn, aliases)
}

// LoadPricesCSV reads a historical price table into d.
// Columns: date, crop, market, price, and optionally supply and demand.
// Rows with an unparseable date or price are skipped and counted in Stats.
func (d *Dataset) LoadPricesCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening prices %s: %w", path, err)
	}
	defer f.Close()

	if err = d.ReadPricesCSV(f); err != nil {
		return fmt.Errorf("prices %s: %w", path, err)
	}
	return nil
}

// ReadPricesCSV is LoadPricesCSV over a reader.
func (d *Dataset) ReadPricesCSV(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr)
	if err != nil {
		return err
	}

	var idx struct{ date, crop, market, price, supply, demand int }
	if idx.date, err = h.require(dateColumns); err != nil {
		return err
	}
	if idx.crop, err = h.require(cropColumns); err != nil {
		return err
	}
	if idx.market, err = h.require(marketColumns); err != nil {
		return err
	}
	if idx.price, err = h.require(priceColumns); err != nil {
		return err
	}
	idx.supply = h.find(supplyColumns)
	idx.demand = h.find(demandColumns)

	for line := 2; ; line++ {
		rec, readErr := cr.Read()
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("%w: line %d: %w", ErrBadRow, line, readErr)
		}

		date, dateErr := ParseDate(field(rec, idx.date))
		price, priceErr := parseFloat(field(rec, idx.price))
		if dateErr != nil || priceErr != nil || !validPrice(price) {
			d.skipped++
			continue
		}

		p := PricePoint{Date: date, Price: price}
		supply, supplyErr := parseFloat(field(rec, idx.supply))
		demand, demandErr := parseFloat(field(rec, idx.demand))
		if idx.supply >= 0 && idx.demand >= 0 && supplyErr == nil && demandErr == nil {
			p.Supply, p.Demand, p.HasSupplyDemand = supply, demand, true
		}

		d.AddPrice(field(rec, idx.crop), field(rec, idx.market), p)
	}
}

// LoadForecastsCSV reads a forecast export (ds, crop, market, yhat) into d.
func (d *Dataset) LoadForecastsCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening forecasts %s: %w", path, err)
	}
	defer f.Close()

	if err = d.ReadForecastsCSV(f); err != nil {
		return fmt.Errorf("forecasts %s: %w", path, err)
	}
	return nil
}

// ReadForecastsCSV is LoadForecastsCSV over a reader.
func (d *Dataset) ReadForecastsCSV(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr)
	if err != nil {
		return err
	}

	var dateIdx, cropIdx, marketIdx, valueIdx int
	if dateIdx, err = h.require(dateColumns); err != nil {
		return err
	}
	if cropIdx, err = h.require(cropColumns); err != nil {
		return err
	}
	if marketIdx, err = h.require(marketColumns); err != nil {
		return err
	}
	if valueIdx, err = h.require(forecastColumns); err != nil {
		return err
	}

	for line := 2; ; line++ {
		rec, readErr := cr.Read()
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("%w: line %d: %w", ErrBadRow, line, readErr)
		}

		date, dateErr := ParseDate(field(rec, dateIdx))
		value, valueErr := parseFloat(field(rec, valueIdx))
		if dateErr != nil || valueErr != nil || !validPrice(value) {
			d.skipped++
			continue
		}

		d.AddForecast(field(rec, cropIdx), field(rec, marketIdx), ForecastPoint{Date: date, Value: value})
	}
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// validPrice rejects NaN, infinities and negative values.
func validPrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}
	return strconv.ParseFloat(s, 64)
}
