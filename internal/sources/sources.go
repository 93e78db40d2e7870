// Package sources fetches environmental readings for a location from public
// upstream services: current weather and trailing climate from Open-Meteo,
// topsoil properties from ISRIC SoilGrids and elevation from the Open-Meteo
// elevation API.
//
// Every provider call is bounded by a timeout. A provider that fails, times
// out or returns an incomplete payload resolves to the documented fallback
// values; the Collector reports each degradation as a warning string and never
// returns an error.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds a single upstream call.
const DefaultTimeout = 5 * time.Second

// maxResponseBytes caps how much of an upstream body is decoded.
const maxResponseBytes = 4 << 20

type constError string

func (e constError) Error() string { return string(e) }

// Provider errors.
const (
	ErrUpstream      constError = "upstream unavailable"
	ErrBadResponse   constError = "unexpected upstream response"
	ErrMissingFields constError = "upstream response missing fields"
)

// fetcher holds what every provider shares.
type fetcher struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func newFetcher(baseURL string, client *http.Client, timeout time.Duration) fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return fetcher{baseURL: baseURL, client: client, timeout: timeout}
}

// getJSON issues a GET to the provider URL with params and decodes the JSON
// body into out. The call is bounded by the provider timeout.
func (f fetcher) getJSON(ctx context.Context, params url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	u, err := url.Parse(f.baseURL)
	if err != nil {
		return fmt.Errorf("%w: parsing %q: %w", ErrUpstream, f.baseURL, err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: building request: %w", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrUpstream, u.Host, resp.StatusCode)
	}

	if err = json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s body: %w", ErrBadResponse, u.Host, err)
	}
	return nil
}

func coordParams(latKey, lonKey string, lat, lon float64) url.Values {
	v := url.Values{}
	v.Set(latKey, fmt.Sprintf("%.4f", lat))
	v.Set(lonKey, fmt.Sprintf("%.4f", lon))
	return v
}
