package rules

type constError string

func (e constError) Error() string { return string(e) }

// Rule table errors.
const (
	ErrInvalidRule        constError = "invalid crop rule"
	ErrUnsupportedVersion constError = "unsupported rule table version"
)
