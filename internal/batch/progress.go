package batch

import (
	"sync"
	"time"
)

// percentMultiplier is used to convert a ratio to percentage (0-100).
const percentMultiplier = 100

// Progress tracks batch processing. It is safe for concurrent use.
type Progress struct {
	totalItems       int
	processedItems   int
	totalBatches     int
	processedBatches int
	startTime        time.Time

	// now is a function that returns the current time (injectable for testing).
	now func() time.Time

	mu sync.RWMutex
}

// NewProgress creates a progress tracker starting now.
func NewProgress(totalItems, totalBatches int) *Progress {
	return newProgressAt(totalItems, totalBatches, time.Now)
}

func newProgressAt(totalItems, totalBatches int, now func() time.Time) *Progress {
	return &Progress{
		totalItems:   totalItems,
		totalBatches: totalBatches,
		startTime:    now(),
		now:          now,
	}
}

// AddProcessed records one finished batch of itemsProcessed items.
func (p *Progress) AddProcessed(itemsProcessed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processedItems += itemsProcessed
	p.processedBatches++
}

// Snapshot returns a copy of the current progress state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	elapsed := p.now().Sub(p.startTime)
	snap := ProgressSnapshot{
		TotalItems:       p.totalItems,
		ProcessedItems:   p.processedItems,
		TotalBatches:     p.totalBatches,
		ProcessedBatches: p.processedBatches,
		Elapsed:          elapsed,
	}
	if p.totalItems > 0 {
		snap.PercentComplete = float64(p.processedItems) / float64(p.totalItems) * percentMultiplier
	}
	if p.processedItems > 0 && p.processedItems < p.totalItems {
		perItem := elapsed / time.Duration(p.processedItems)
		snap.Remaining = perItem * time.Duration(p.totalItems-p.processedItems)
	}
	return snap
}

// ProgressSnapshot is an immutable view of progress.
type ProgressSnapshot struct {
	TotalItems       int
	ProcessedItems   int
	TotalBatches     int
	ProcessedBatches int
	PercentComplete  float64
	Elapsed          time.Duration
	Remaining        time.Duration
}

// IsComplete reports whether every item has been processed.
func (s ProgressSnapshot) IsComplete() bool {
	return s.ProcessedItems >= s.TotalItems
}
