// Package batch runs recommendations for many farms in fixed-size batches.
//
// A farms CSV (id, latitude, longitude and an optional market) is read into
// Farm values, split into batches and processed with bounded concurrency.
// Key features:
//   - Configurable batch size (default 50 farms per batch)
//   - Progress tracking with callbacks for terminal updates
//   - Context-aware cancellation
//   - Per-farm failures are collected rather than aborting the run
package batch
