package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/agrichain/cropadvisor/internal/engine"
	"github.com/agrichain/cropadvisor/internal/logging"
)

// ErrInvalidFarm is returned for farm rows that cannot be used.
var ErrInvalidFarm = errors.New("invalid farm row")

// Farm is one row of a farms CSV.
type Farm struct {
	ID        string
	Latitude  float64
	Longitude float64
	// Market is optional; the nearest market is used when empty.
	Market string
}

// Location returns the farm location.
func (f Farm) Location() engine.Location {
	return engine.Location{Latitude: f.Latitude, Longitude: f.Longitude}
}

// FarmResult is the outcome of advising one farm. Price is set when the top
// crop was also priced at harvest.
type FarmResult struct {
	Farm            Farm                        `json:"-"`
	FarmID          string                      `json:"farm_id"`
	Recommendations []engine.SuitabilityResult  `json:"recommendations"`
	Price           *engine.PriceForecastResult `json:"price,omitempty"`
	Warnings        []string                    `json:"warnings,omitempty"`
	RecordID        string                      `json:"record_id,omitempty"`
	Err             error                       `json:"-"`
}

// AdviseFunc produces the result for one farm. Failures go in FarmResult.Err.
type AdviseFunc func(ctx context.Context, farm Farm) FarmResult

// RunOptions tunes Run.
type RunOptions struct {
	BatchSize   int
	Concurrency int
	OnProgress  ProgressCallback
}

// Run advises every farm and returns one result per farm, in input order.
// Batches run one after another unless Concurrency is above one. Per-farm
// failures are reported in the results; the error is only set when the run
// itself could not start or was cancelled.
func Run(ctx context.Context, farms []Farm, advise AdviseFunc, opts RunOptions) ([]FarmResult, error) {
	if advise == nil {
		return nil, ErrNilCallback
	}
	p := NewProcessorWithDefaults[Farm]()
	if opts.BatchSize != 0 {
		var err error
		if p, err = NewProcessor[Farm](opts.BatchSize); err != nil {
			return nil, err
		}
	}
	if opts.OnProgress != nil {
		p.WithProgressCallback(opts.OnProgress)
	}

	logger := logging.FromContext(ctx).With().
		Str("component", "batch").
		Int("farms", len(farms)).
		Int("batch_size", p.BatchSize()).
		Int("concurrency", opts.Concurrency).
		Logger()
	logger.Info().Msg("batch run started")

	results := make([]FarmResult, len(farms))
	work := func(ctx context.Context, batch []Farm, offset int) error {
		for i, farm := range batch {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r := advise(ctx, farm)
			r.Farm, r.FarmID = farm, farm.ID
			results[offset+i] = r
		}
		return nil
	}

	var err error
	if opts.Concurrency <= 1 {
		err = p.Process(ctx, farms, work)
	} else {
		err = p.ProcessConcurrent(ctx, farms, work, opts.Concurrency)
	}
	if err != nil {
		return results, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Info().Int("failed", failed).Msg("batch run finished")
	return results, nil
}

// LoadFarmsCSV reads farms from path.
func LoadFarmsCSV(path string) ([]Farm, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening farms %s: %w", path, err)
	}
	defer f.Close()

	farms, err := ReadFarmsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("farms %s: %w", path, err)
	}
	return farms, nil
}

// ReadFarmsCSV reads a farms table. Columns: id (or farm_id), latitude (or
// lat), longitude (or lon, lng) and optionally market. Rows with coordinates
// out of range are rejected.
func ReadFarmsCSV(r io.Reader) ([]Farm, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	cols, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := make(map[string]int, len(cols))
	for i, c := range cols {
		header[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c, "\ufeff")))] = i
	}
	find := func(aliases ...string) int {
		for _, a := range aliases {
			if i, ok := header[a]; ok {
				return i
			}
		}
		return -1
	}

	idIdx, latIdx, lonIdx := find("id", "farm_id"), find("latitude", "lat"), find("longitude", "lon", "lng")
	marketIdx := find("market")
	if idIdx < 0 || latIdx < 0 || lonIdx < 0 {
		return nil, fmt.Errorf("%w: header needs id, latitude and longitude columns", ErrInvalidFarm)
	}

	var farms []Farm
	for line := 2; ; line++ {
		rec, readErr := cr.Read()
		if errors.Is(readErr, io.EOF) {
			return farms, nil
		}
		if readErr != nil {
			return nil, fmt.Errorf("line %d: %w", line, readErr)
		}

		farm := Farm{ID: cell(rec, idIdx), Market: cell(rec, marketIdx)}
		if farm.ID == "" {
			return nil, fmt.Errorf("%w: line %d: empty id", ErrInvalidFarm, line)
		}
		if farm.Latitude, err = parseCoordinate(cell(rec, latIdx), 90); err != nil {
			return nil, fmt.Errorf("%w: line %d: latitude: %w", ErrInvalidFarm, line, err)
		}
		if farm.Longitude, err = parseCoordinate(cell(rec, lonIdx), 180); err != nil {
			return nil, fmt.Errorf("%w: line %d: longitude: %w", ErrInvalidFarm, line, err)
		}
		farms = append(farms, farm)
	}
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func parseCoordinate(s string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < -limit || v > limit {
		return 0, fmt.Errorf("%v outside [-%v, %v]", v, limit, limit)
	}
	return v, nil
}
