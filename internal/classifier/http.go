package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultHTTPTimeout bounds a single remote prediction.
const DefaultHTTPTimeout = 5 * time.Second

// HTTPClient calls a remote model service:
//
//	POST <URL>  {"features": [..7 floats..]}
//	200         {"probabilities": {"rice": 0.7, ...}}
type HTTPClient struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

type predictRequest struct {
	Features []float64 `json:"features"`
}

type predictResponse struct {
	Probabilities map[string]float64 `json:"probabilities"`
}

// NewHTTPClient returns a client for the service at url.
func NewHTTPClient(url string) *HTTPClient {
	return &HTTPClient{URL: url, Client: http.DefaultClient, Timeout: DefaultHTTPTimeout}
}

// PredictProba implements Classifier.
func (c *HTTPClient) PredictProba(ctx context.Context, features []float64) (map[string]float64, error) {
	if err := checkFeatures(features); err != nil {
		return nil, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(predictRequest{Features: features})
	if err != nil {
		return nil, fmt.Errorf("encoding prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out predictResponse
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding prediction response: %w", err)
	}
	return out.Probabilities, nil
}
