package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// coordinatePrecision is the number of decimals kept from a coordinate.
// Four decimals is roughly 11 m at the equator.
const coordinatePrecision = 4

// Key returns a deterministic cache key for a namespace and a location.
// Coordinates are rounded so that nearby queries share an entry.
func Key(namespace string, lat, lon float64) string {
	raw := fmt.Sprintf("%s|%.*f|%.*f",
		strings.ToLower(strings.TrimSpace(namespace)),
		coordinatePrecision, lat,
		coordinatePrecision, lon,
	)
	// -0.0000 and 0.0000 must share an entry.
	raw = strings.ReplaceAll(raw, "|-0.0000", "|0.0000")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
