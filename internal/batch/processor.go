package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Default batch processing configuration.
const (
	// DefaultBatchSize is the default number of items per batch.
	DefaultBatchSize = 50

	// MinBatchSize is the minimum allowed batch size.
	MinBatchSize = 1

	// MaxBatchSize is the maximum allowed batch size.
	MaxBatchSize = 1000
)

// Common batch processing errors.
var (
	ErrInvalidBatchSize = errors.New("batch size must be between 1 and 1000")
	ErrNilCallback      = errors.New("batch callback cannot be nil")
	ErrEmptyItems       = errors.New("items slice cannot be empty")
)

// Callback processes one batch. offset is the index of batch[0] in the full
// item slice, so callbacks can write results by position.
type Callback[T any] func(ctx context.Context, batch []T, offset int) error

// ProgressCallback is invoked after each batch with the current progress.
type ProgressCallback func(snapshot ProgressSnapshot)

// Processor splits items into fixed-size batches and processes them
// sequentially or concurrently.
type Processor[T any] struct {
	batchSize  int
	onProgress ProgressCallback

	// mu serializes progress callbacks.
	mu sync.Mutex
}

// NewProcessor creates a processor with the given batch size.
func NewProcessor[T any](batchSize int) (*Processor[T], error) {
	if batchSize < MinBatchSize || batchSize > MaxBatchSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}
	return &Processor[T]{batchSize: batchSize}, nil
}

// NewProcessorWithDefaults creates a processor with DefaultBatchSize.
func NewProcessorWithDefaults[T any]() *Processor[T] {
	return &Processor[T]{batchSize: DefaultBatchSize}
}

// WithProgressCallback sets a progress callback for the processor.
func (p *Processor[T]) WithProgressCallback(callback ProgressCallback) *Processor[T] {
	p.onProgress = callback
	return p
}

// BatchSize returns the configured batch size.
func (p *Processor[T]) BatchSize() int {
	return p.batchSize
}

// Process processes batches in order and stops on the first error.
func (p *Processor[T]) Process(ctx context.Context, items []T, callback Callback[T]) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}
	if callback == nil {
		return ErrNilCallback
	}

	bounds := p.CalculateBatches(len(items))
	progress := NewProgress(len(items), len(bounds))

	for i, b := range bounds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := callback(ctx, items[b[0]:b[1]], b[0]); err != nil {
			return fmt.Errorf("batch %d failed: %w", i, err)
		}
		p.report(progress, b[1]-b[0])
	}
	return nil
}

// ProcessConcurrent processes up to maxConcurrency batches at a time. Every
// batch runs even when others fail; failures are joined into the result.
func (p *Processor[T]) ProcessConcurrent(
	ctx context.Context,
	items []T,
	callback Callback[T],
	maxConcurrency int,
) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}
	if callback == nil {
		return ErrNilCallback
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	bounds := p.CalculateBatches(len(items))
	progress := NewProgress(len(items), len(bounds))

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(maxConcurrency)

	for i, b := range bounds {
		i, b := i, b
		if err := ctx.Err(); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
		g.Go(func() error {
			if err := callback(ctx, items[b[0]:b[1]], b[0]); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("batch %d failed: %w", i, err))
				mu.Unlock()
				return nil
			}
			p.report(progress, b[1]-b[0])
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// CalculateBatches returns [start, end) index pairs covering totalItems.
func (p *Processor[T]) CalculateBatches(totalItems int) [][2]int {
	batches := make([][2]int, 0, (totalItems+p.batchSize-1)/p.batchSize)
	for start := 0; start < totalItems; start += p.batchSize {
		batches = append(batches, [2]int{start, min(start+p.batchSize, totalItems)})
	}
	return batches
}

func (p *Processor[T]) report(progress *Progress, itemsProcessed int) {
	progress.AddProcessed(itemsProcessed)
	if p.onProgress == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onProgress(progress.Snapshot())
}
