package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// CentroidModel is a nearest-centroid classifier exported by the offline
// training job. Probabilities are a softmax over negative scaled distances.
type CentroidModel struct {
	Version     string      `json:"version"`
	Labels      []string    `json:"labels"`
	Centroids   [][]float64 `json:"centroids"`
	Scale       []float64   `json:"scale"`
	Temperature float64     `json:"temperature"`
}

// LoadCentroidModel reads and validates a JSON model artifact.
func LoadCentroidModel(path string) (*CentroidModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading classifier model %s: %w", path, err)
	}

	var m CentroidModel
	if err = json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrInvalidModel, path, err)
	}
	if err = m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the artifact's shape.
func (m *CentroidModel) Validate() error {
	if len(m.Labels) == 0 {
		return fmt.Errorf("%w: no labels", ErrInvalidModel)
	}
	if len(m.Centroids) != len(m.Labels) {
		return fmt.Errorf("%w: %d centroids for %d labels", ErrInvalidModel, len(m.Centroids), len(m.Labels))
	}
	for i, c := range m.Centroids {
		if len(c) != FeatureCount {
			return fmt.Errorf("%w: centroid %q has %d features", ErrInvalidModel, m.Labels[i], len(c))
		}
	}
	if m.Scale != nil && len(m.Scale) != FeatureCount {
		return fmt.Errorf("%w: scale has %d entries", ErrInvalidModel, len(m.Scale))
	}
	if m.Temperature < 0 {
		return fmt.Errorf("%w: negative temperature", ErrInvalidModel)
	}
	return nil
}

// PredictProba implements Classifier.
func (m *CentroidModel) PredictProba(ctx context.Context, features []float64) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkFeatures(features); err != nil {
		return nil, err
	}

	temp := m.Temperature
	if temp == 0 {
		temp = 1
	}

	logits := make([]float64, len(m.Labels))
	maxLogit := math.Inf(-1)
	for i, c := range m.Centroids {
		var sq float64
		for j, x := range features {
			scale := 1.0
			if m.Scale != nil && m.Scale[j] > 0 {
				scale = m.Scale[j]
			}
			d := (x - c[j]) / scale
			sq += d * d
		}
		logits[i] = -math.Sqrt(sq) / temp
		maxLogit = math.Max(maxLogit, logits[i])
	}

	var sum float64
	for i := range logits {
		logits[i] = math.Exp(logits[i] - maxLogit)
		sum += logits[i]
	}

	probs := make(map[string]float64, len(m.Labels))
	for i, label := range m.Labels {
		probs[label] += logits[i] / sum
	}
	return probs, nil
}
