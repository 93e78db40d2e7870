package config

type constError string

func (e constError) Error() string { return string(e) }

// ErrInvalidConfig is wrapped by every Validate failure.
const ErrInvalidConfig constError = "invalid configuration"
