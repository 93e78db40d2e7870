package cache

import (
	"fmt"
	"time"
)

const (
	// DefaultTTL is how long a soil profile stays cached.
	DefaultTTL = 7 * 24 * time.Hour

	// MinTTL is the smallest TTL NewFileStore accepts.
	MinTTL = time.Minute

	minutesPerHour = 60
	hoursPerDay    = 24
)

// ErrInvalidTTL is returned for TTLs below MinTTL.
var ErrInvalidTTL = fmt.Errorf("TTL must be at least %s", MinTTL)

// TTLFromHours converts a configured TTL in hours. Zero selects DefaultTTL.
func TTLFromHours(hours int) (time.Duration, error) {
	if hours == 0 {
		return DefaultTTL, nil
	}
	ttl := time.Duration(hours) * time.Hour
	if ttl < MinTTL {
		return 0, fmt.Errorf("%w: got %d hours", ErrInvalidTTL, hours)
	}
	return ttl, nil
}

// FormatDuration formats a duration in a human-readable way.
// Examples: "45s", "30m", "5h30m", "7d".
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	if d < hoursPerDay*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % minutesPerHour
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	days := int(d.Hours()) / hoursPerDay
	hours := int(d.Hours()) % hoursPerDay
	if hours == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd%dh", days, hours)
}
