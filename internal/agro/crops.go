package agro

import (
	"slices"
	"strings"
)

// Crop identifiers accepted by the engine, in the order used for tie-breaking.
const (
	CropBanana    = "banana"
	CropCardamom  = "cardamom"
	CropCoconut   = "coconut"
	CropCotton    = "cotton"
	CropGram      = "gram"
	CropGroundnut = "groundnut"
	CropMaize     = "maize"
	CropMustard   = "mustard"
	CropPepper    = "pepper"
	CropRice      = "rice"
	CropRubber    = "rubber"
	CropSoybean   = "soybean"
	CropTapioca   = "tapioca"
	CropTurmeric  = "turmeric"
	CropWheat     = "wheat"
)

// Crops returns the crop whitelist. The slice is a fresh copy.
func Crops() []string {
	return []string{
		CropBanana, CropCardamom, CropCoconut, CropCotton, CropGram,
		CropGroundnut, CropMaize, CropMustard, CropPepper, CropRice,
		CropRubber, CropSoybean, CropTapioca, CropTurmeric, CropWheat,
	}
}

// NormalizeCrop lower-cases and trims a crop identifier.
func NormalizeCrop(crop string) string {
	return strings.ToLower(strings.TrimSpace(crop))
}

// IsCrop reports whether crop, after normalization, is whitelisted.
func IsCrop(crop string) bool {
	return slices.Contains(Crops(), NormalizeCrop(crop))
}
