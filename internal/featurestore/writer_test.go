package featurestore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/progress"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/tsdata"
)

// captureBackend records batch sizes and can fail every insert.
type captureBackend struct {
	mu      sync.Mutex
	batches [][]tsdata.Point
	fail    bool
}

func (b *captureBackend) InsertBatch(_ context.Context, _ FeatureGroup, points []tsdata.Point) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return 0, errors.New("store unavailable")
	}
	batch := append([]tsdata.Point(nil), points...)
	b.batches = append(b.batches, batch)
	return len(points), nil
}

func (b *captureBackend) batchSizes() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	sizes := make([]int, len(b.batches))
	for i, batch := range b.batches {
		sizes[i] = len(batch)
	}
	return sizes
}

func runPool(t *testing.T, backend InsertBackend, points []tsdata.Point, workers, batchSize int, flushInterval time.Duration) *progress.WriteStats {
	t.Helper()
	queue := make(chan *tsdata.Point, len(points)+workers)
	var mu sync.Mutex
	stats := &progress.WriteStats{}

	var pending sync.WaitGroup
	var done sync.WaitGroup
	for i := 0; i < workers; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			RunWriter(context.Background(), backend, DefaultGroup, queue, &mu, stats, batchSize, flushInterval, &pending)
		}()
	}

	for i := range points {
		pending.Add(1)
		queue <- &points[i]
	}
	for i := 0; i < workers; i++ {
		pending.Add(1)
		queue <- nil
	}
	done.Wait()

	mu.Lock()
	defer mu.Unlock()
	out := *stats
	return &out
}

func makePoints(n int) []tsdata.Point {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	points := make([]tsdata.Point, n)
	for i := range points {
		points[i] = tsdata.Point{PickupHour: base.Add(time.Duration(i) * time.Hour), LocationID: 1, Rides: i}
	}
	return points
}

func TestRunWriterFlushesOnBatchSize(t *testing.T) {
	backend := &captureBackend{}
	stats := runPool(t, backend, makePoints(10), 1, 4, time.Minute)

	assert.Equal(t, 10, stats.Rows)
	assert.Zero(t, stats.Failed)
	// 4 + 4, then 2 flushed by the nil sentinel.
	assert.Equal(t, []int{4, 4, 2}, backend.batchSizes())
}

func TestRunWriterFlushesOnAge(t *testing.T) {
	backend := &captureBackend{}
	queue := make(chan *tsdata.Point, 4)
	var mu sync.Mutex
	stats := &progress.WriteStats{}

	var done sync.WaitGroup
	done.Add(1)
	go func() {
		defer done.Done()
		RunWriter(context.Background(), backend, DefaultGroup, queue, &mu, stats, 1000, 50*time.Millisecond, nil)
	}()

	points := makePoints(3)
	for i := range points {
		queue <- &points[i]
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return stats.Rows == 3
	}, 2*time.Second, 10*time.Millisecond, "batch should flush once it is older than the flush interval")

	queue <- nil
	done.Wait()
	assert.Equal(t, []int{3}, backend.batchSizes())
}

func TestRunWriterDrainsAcrossWorkers(t *testing.T) {
	backend := &captureBackend{}
	stats := runPool(t, backend, makePoints(103), 4, 10, time.Minute)

	assert.Equal(t, 103, stats.Rows)
	assert.Zero(t, stats.Failed)

	total := 0
	for _, n := range backend.batchSizes() {
		assert.LessOrEqual(t, n, 10)
		total += n
	}
	assert.Equal(t, 103, total)
}

func TestRunWriterCountsFailures(t *testing.T) {
	backend := &captureBackend{fail: true}
	stats := runPool(t, backend, makePoints(7), 2, 3, time.Minute)

	assert.Zero(t, stats.Rows)
	assert.Equal(t, 7, stats.Failed)
	assert.NotZero(t, stats.Batches)
}

func TestLatest(t *testing.T) {
	h := func(offset int) time.Time {
		return time.Date(2026, 8, 1, offset, 0, 0, 0, time.UTC)
	}
	points := []tsdata.Point{
		{PickupHour: h(0), LocationID: 5, Rides: 3},
		{PickupHour: h(2), LocationID: 5, Rides: 9},
		{PickupHour: h(1), LocationID: 5, Rides: 4},
		{PickupHour: h(2), LocationID: 1, Rides: 0},
		{PickupHour: h(0), LocationID: 1, Rides: 7},
	}

	got := Latest(points)
	assert.Equal(t, []tsdata.Point{
		{PickupHour: h(2), LocationID: 1, Rides: 0},
		{PickupHour: h(2), LocationID: 5, Rides: 9},
	}, got)

	assert.Empty(t, Latest(nil))
}
