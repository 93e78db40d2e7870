package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/agrichain/cropadvisor/internal/engine"
	"github.com/agrichain/cropadvisor/internal/logging"
)

// ErrNoResults is returned when recording an empty recommendation.
var ErrNoResults = errors.New("recommendation has no results")

// Execer is the subset of *pgxpool.Pool the recorder needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder persists engine outputs.
type Recorder interface {
	RecordPrice(ctx context.Context, farmID string, r engine.PriceForecastResult) (string, error)
	RecordRecommendation(ctx context.Context, farmID string, loc engine.Location, results []engine.SuitabilityResult) (string, error)
}

var _ Recorder = (*Repository)(nil)

// Nop discards every record.
type Nop struct{}

// RecordPrice implements Recorder.
func (Nop) RecordPrice(context.Context, string, engine.PriceForecastResult) (string, error) {
	return "", nil
}

// RecordRecommendation implements Recorder.
func (Nop) RecordRecommendation(context.Context, string, engine.Location, []engine.SuitabilityResult) (string, error) {
	return "", nil
}

// Repository is the PostgreSQL Recorder.
type Repository struct {
	db Execer
}

// NewRepository returns a Repository writing through db.
func NewRepository(db Execer) *Repository {
	return &Repository{db: db}
}

// RecordPrice inserts one price prediction and returns its ID.
func (r *Repository) RecordPrice(ctx context.Context, farmID string, p engine.PriceForecastResult) (string, error) {
	harvest, err := time.Parse(time.DateOnly, p.Date)
	if err != nil {
		return "", fmt.Errorf("parse harvest date: %w", err)
	}

	warnings := p.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return "", fmt.Errorf("marshal warnings: %w", err)
	}

	id := uuid.NewString()
	_, err = r.db.Exec(ctx, `
        INSERT INTO price_predictions
            (id, trace_id, farm_id, crop, market, harvest_date, predicted_price, source, oversupply, low_demand, warnings)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb)
    `, id, logging.TraceIDFromContext(ctx), farmID, p.Crop, p.Market, harvest, p.PredictedPrice, p.Source,
		p.OversupplyStatus, p.LowDemandStatus, string(warningsJSON))
	if err != nil {
		return "", fmt.Errorf("insert price prediction: %w", err)
	}

	logging.FromContext(ctx).Debug().
		Str("component", "store").
		Str("prediction_id", id).
		Str("crop", p.Crop).
		Msg("price prediction recorded")
	return id, nil
}

// RecordRecommendation inserts one ranked list and returns its ID.
func (r *Repository) RecordRecommendation(
	ctx context.Context,
	farmID string,
	loc engine.Location,
	results []engine.SuitabilityResult,
) (string, error) {
	if len(results) == 0 {
		return "", ErrNoResults
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}

	id := uuid.NewString()
	_, err = r.db.Exec(ctx, `
        INSERT INTO recommendations
            (id, trace_id, farm_id, latitude, longitude, top_crop, results)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7::jsonb)
    `, id, logging.TraceIDFromContext(ctx), farmID, loc.Latitude, loc.Longitude, results[0].Crop, string(resultsJSON))
	if err != nil {
		return "", fmt.Errorf("insert recommendation: %w", err)
	}

	logging.FromContext(ctx).Debug().
		Str("component", "store").
		Str("recommendation_id", id).
		Str("top_crop", results[0].Crop).
		Msg("recommendation recorded")
	return id, nil
}
