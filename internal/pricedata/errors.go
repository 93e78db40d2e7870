package pricedata

type constError string

func (e constError) Error() string { return string(e) }

// Data errors.
const (
	ErrNoSeries      constError = "no data for crop and market"
	ErrMissingColumn constError = "missing required column"
	ErrBadRow        constError = "malformed row"
)
