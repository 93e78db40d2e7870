// Package cache provides a file-based cache with TTL expiration for slow
// upstream lookups.
//
// Soil profiles change on the scale of years, while a SoilGrids query can take
// seconds, so the soil provider keeps its responses here keyed by rounded
// coordinates. Key features:
//   - One JSON file per entry under the cache directory (default ~/.cropadvisor/cache)
//   - Configurable TTL (default 7 days) via config file or environment
//   - Expired entries are removed on read and by CleanupExpired
//   - SHA256-based keys derived from a namespace and coordinates
package cache
