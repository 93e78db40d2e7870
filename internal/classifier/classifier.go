// Package classifier binds the pre-trained crop classifier.
//
// The engine only needs class probabilities for a feature vector
// [N, P, K, temperature, humidity, ph, rainfall]. Two bindings are provided:
// CentroidModel evaluates an exported JSON artifact in-process, and
// HTTPClient calls a remote predict_proba service.
package classifier

import (
	"context"
	"fmt"
)

// FeatureCount is the length of the feature vector every binding expects.
const FeatureCount = 7

// Classifier returns a probability per crop label for one feature vector.
type Classifier interface {
	PredictProba(ctx context.Context, features []float64) (map[string]float64, error)
}

type constError string

func (e constError) Error() string { return string(e) }

// Classifier errors.
const (
	ErrUnavailable   constError = "classifier unavailable"
	ErrFeatureLength constError = "unexpected feature vector length"
	ErrInvalidModel  constError = "invalid classifier model"
)

// Unavailable is the binding used when no model is configured.
type Unavailable struct{}

// PredictProba always fails with ErrUnavailable.
func (Unavailable) PredictProba(context.Context, []float64) (map[string]float64, error) {
	return nil, ErrUnavailable
}

func checkFeatures(features []float64) error {
	if len(features) != FeatureCount {
		return fmt.Errorf("%w: got %d, want %d", ErrFeatureLength, len(features), FeatureCount)
	}
	return nil
}
