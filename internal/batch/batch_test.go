package batch

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrichain/cropadvisor/internal/engine"
)

func TestProcessor_Process(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	t.Run("Sequential", func(t *testing.T) {
		p, err := NewProcessor[int](10)
		require.NoError(t, err)
		var offsets []int
		var processed int

		err = p.Process(context.Background(), items, func(_ context.Context, batch []int, offset int) error {
			offsets = append(offsets, offset)
			processed += len(batch)
			assert.Equal(t, offset, batch[0])
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 25, processed)
		assert.Equal(t, []int{0, 10, 20}, offsets)
	})

	t.Run("Concurrent", func(t *testing.T) {
		p, err := NewProcessor[int](5)
		require.NoError(t, err)
		var processed atomic.Int32

		err = p.ProcessConcurrent(context.Background(), items, func(_ context.Context, batch []int, _ int) error {
			processed.Add(int32(len(batch)))
			return nil
		}, 2)
		require.NoError(t, err)
		assert.Equal(t, int32(25), processed.Load())
	})

	t.Run("SequentialStopsOnError", func(t *testing.T) {
		p, err := NewProcessor[int](10)
		require.NoError(t, err)
		calls := 0
		err = p.Process(context.Background(), items, func(_ context.Context, _ []int, offset int) error {
			calls++
			if offset == 10 {
				return errors.New("fail")
			}
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch 1 failed")
		assert.Equal(t, 2, calls)
	})

	t.Run("ConcurrentCollectsErrors", func(t *testing.T) {
		p, err := NewProcessor[int](10)
		require.NoError(t, err)
		var calls atomic.Int32
		err = p.ProcessConcurrent(context.Background(), items, func(_ context.Context, _ []int, offset int) error {
			calls.Add(1)
			if offset > 0 {
				return errors.New("fail")
			}
			return nil
		}, 3)
		require.Error(t, err)
		assert.Equal(t, int32(3), calls.Load())
		assert.Contains(t, err.Error(), "batch 1 failed")
		assert.Contains(t, err.Error(), "batch 2 failed")
	})

	t.Run("EmptyItems", func(t *testing.T) {
		p := NewProcessorWithDefaults[int]()
		require.ErrorIs(t, p.Process(context.Background(), nil, nil), ErrEmptyItems)
	})

	t.Run("NilCallback", func(t *testing.T) {
		p := NewProcessorWithDefaults[int]()
		require.ErrorIs(t, p.ProcessConcurrent(context.Background(), items, nil, 1), ErrNilCallback)
	})

	t.Run("InvalidBatchSize", func(t *testing.T) {
		_, err := NewProcessor[int](0)
		require.ErrorIs(t, err, ErrInvalidBatchSize)
		_, err = NewProcessor[int](2000)
		require.ErrorIs(t, err, ErrInvalidBatchSize)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := NewProcessorWithDefaults[int]()
		err := p.Process(ctx, items, func(context.Context, []int, int) error { return nil })
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestProcessor_CalculateBatches(t *testing.T) {
	p, err := NewProcessor[int](10)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 10}, {10, 20}, {20, 25}}, p.CalculateBatches(25))
	assert.Empty(t, p.CalculateBatches(0))
	assert.Equal(t, 10, p.BatchSize())
}

func TestProgress(t *testing.T) {
	start := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	now := start
	p := newProgressAt(100, 10, func() time.Time { return now })

	snap := p.Snapshot()
	assert.InDelta(t, 0.0, snap.PercentComplete, 0)
	assert.False(t, snap.IsComplete())

	now = start.Add(10 * time.Second)
	p.AddProcessed(25)
	snap = p.Snapshot()
	assert.InDelta(t, 25.0, snap.PercentComplete, 0)
	assert.Equal(t, 1, snap.ProcessedBatches)
	assert.Equal(t, 10*time.Second, snap.Elapsed)
	assert.Equal(t, 30*time.Second, snap.Remaining)

	p.AddProcessed(75)
	snap = p.Snapshot()
	assert.True(t, snap.IsComplete())
	assert.Zero(t, snap.Remaining)
}

func TestProcessor_ProgressCallback(t *testing.T) {
	p, err := NewProcessor[int](2)
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []int
	p.WithProgressCallback(func(s ProgressSnapshot) {
		mu.Lock()
		seen = append(seen, s.ProcessedItems)
		mu.Unlock()
	})

	require.NoError(t, p.Process(context.Background(), []int{1, 2, 3, 4, 5}, func(context.Context, []int, int) error {
		return nil
	}))
	assert.Equal(t, []int{2, 4, 5}, seen)
}

func TestReadFarmsCSV(t *testing.T) {
	in := "\ufeffFarm_ID,Lat,Lng,market\n" +
		"f1,30.90,75.85,Ludhiana\n" +
		"f2, 10.52 ,76.21,\n"

	farms, err := ReadFarmsCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []Farm{
		{ID: "f1", Latitude: 30.90, Longitude: 75.85, Market: "Ludhiana"},
		{ID: "f2", Latitude: 10.52, Longitude: 76.21},
	}, farms)
	assert.Equal(t, engine.Location{Latitude: 30.90, Longitude: 75.85}, farms[0].Location())
}

func TestReadFarmsCSV_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "missing column", in: "id,latitude\nf1,1\n", want: "header needs"},
		{name: "latitude out of range", in: "id,latitude,longitude\nf1,91,10\n", want: "line 2: latitude"},
		{name: "longitude not a number", in: "id,latitude,longitude\nf1,10,east\n", want: "line 2: longitude"},
		{name: "empty id", in: "id,latitude,longitude\nf1,1,1\n,1,1\n", want: "line 3: empty id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFarmsCSV(strings.NewReader(tt.in))
			require.ErrorIs(t, err, ErrInvalidFarm)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun(t *testing.T) {
	farms := []Farm{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}}

	var progressCalls atomic.Int32
	results, err := Run(context.Background(), farms, func(_ context.Context, f Farm) FarmResult {
		if f.ID == "c" {
			return FarmResult{Err: errors.New("collector exploded")}
		}
		return FarmResult{Recommendations: []engine.SuitabilityResult{{Crop: "rice", Suitability: 70}}}
	}, RunOptions{BatchSize: 2, Concurrency: 2, OnProgress: func(ProgressSnapshot) { progressCalls.Add(1) }})
	require.NoError(t, err)

	require.Len(t, results, len(farms))
	for i, r := range results {
		assert.Equal(t, farms[i].ID, r.FarmID)
	}
	require.Error(t, results[2].Err)
	assert.Equal(t, "rice", results[4].Recommendations[0].Crop)
	assert.Equal(t, int32(3), progressCalls.Load())
}

func TestRun_SequentialKeepsCallOrder(t *testing.T) {
	farms := make([]Farm, DefaultBatchSize+3)
	for i := range farms {
		farms[i] = Farm{ID: strconv.Itoa(i)}
	}

	var calls []string
	var snaps []ProgressSnapshot
	results, err := Run(context.Background(), farms, func(_ context.Context, f Farm) FarmResult {
		calls = append(calls, f.ID)
		return FarmResult{}
	}, RunOptions{Concurrency: 1, OnProgress: func(s ProgressSnapshot) { snaps = append(snaps, s) }})
	require.NoError(t, err)

	require.Len(t, results, len(farms))
	for i, id := range calls {
		assert.Equal(t, farms[i].ID, id)
	}
	require.Len(t, snaps, 2, "default batch size splits the farms in two")
	assert.Equal(t, DefaultBatchSize, snaps[0].ProcessedItems)
	assert.True(t, snaps[1].IsComplete())
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, []Farm{{ID: "a"}}, func(context.Context, Farm) FarmResult { return FarmResult{} }, RunOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_Validation(t *testing.T) {
	_, err := Run(context.Background(), []Farm{{ID: "a"}}, nil, RunOptions{})
	require.ErrorIs(t, err, ErrNilCallback)

	_, err = Run(context.Background(), nil, func(context.Context, Farm) FarmResult { return FarmResult{} }, RunOptions{})
	require.ErrorIs(t, err, ErrEmptyItems)
}
