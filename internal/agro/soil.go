package agro

import "strings"

// SoilType is a coarse soil texture class.
type SoilType string

// Soil texture classes.
const (
	SoilSandy SoilType = "sandy"
	SoilClay  SoilType = "clay"
	SoilSilt  SoilType = "silt"
	SoilLoamy SoilType = "loamy"
)

// Valid reports whether t is one of the known classes.
func (t SoilType) Valid() bool {
	switch t {
	case SoilSandy, SoilClay, SoilSilt, SoilLoamy:
		return true
	default:
		return false
	}
}

// ParseSoilType normalizes s and reports whether it names a known class.
func ParseSoilType(s string) (SoilType, bool) {
	t := SoilType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// ClassifySoil maps clay, sand and silt percentages to a texture class.
// The checks are ordered and the first match wins.
func ClassifySoil(clayPct, sandPct, siltPct float64) SoilType {
	switch {
	case sandPct > 85:
		return SoilSandy
	case clayPct > 40 && siltPct < 40:
		return SoilClay
	case siltPct > 40 && clayPct < 20:
		return SoilSilt
	default:
		return SoilLoamy
	}
}
