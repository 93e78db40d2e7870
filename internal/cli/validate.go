package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/agrichain/cropadvisor/internal/agro"
	"github.com/agrichain/cropadvisor/internal/market"
)

type constError string

func (e constError) Error() string { return string(e) }

// ErrInvalidInput is wrapped by every rejected command-line value.
const ErrInvalidInput constError = "invalid input"

const (
	maxLatitude  = 90.0
	maxLongitude = 180.0
)

func validateOutput(format string) error {
	switch format {
	case "", outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("%w: --output %q (want table or json)", ErrInvalidInput, format)
	}
}

// validateCoordinates checks decimal degrees.
func validateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -maxLatitude || lat > maxLatitude {
		return fmt.Errorf("%w: latitude %v must be in [-90, 90]", ErrInvalidInput, lat)
	}
	if math.IsNaN(lon) || lon < -maxLongitude || lon > maxLongitude {
		return fmt.Errorf("%w: longitude %v must be in [-180, 180]", ErrInvalidInput, lon)
	}
	return nil
}

// validateCrop returns the canonical crop identifier.
func validateCrop(crop string) (string, error) {
	if strings.TrimSpace(crop) == "" {
		return "", fmt.Errorf("%w: --crop is required", ErrInvalidInput)
	}
	if !agro.IsCrop(crop) {
		return "", fmt.Errorf("%w: unknown crop %q (known: %s)",
			ErrInvalidInput, crop, strings.Join(agro.Crops(), ", "))
	}
	return agro.NormalizeCrop(crop), nil
}

// parseDate parses a YYYY-MM-DD date. An empty value yields the zero time.
func parseDate(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: --%s %q must be YYYY-MM-DD", ErrInvalidInput, flag, value)
	}
	return t, nil
}

// validateMarket returns the registry spelling of name. An empty name is allowed.
func validateMarket(reg *market.Registry, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	m, ok := reg.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: unknown market %q (known: %s)",
			ErrInvalidInput, name, strings.Join(reg.Names(), ", "))
	}
	return m.Name, nil
}
