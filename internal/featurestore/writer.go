package featurestore

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/progress"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/tsdata"
)

const pollInterval = 5 * time.Millisecond

// InsertBackend is what the write pool batches into. Offline implements it.
type InsertBackend interface {
	InsertBatch(ctx context.Context, fg FeatureGroup, points []tsdata.Point) (int, error)
}

// RunWriter consumes points from queue, batches them by batchSize or
// flushInterval, and inserts each batch via backend. Stops after receiving
// nil, flushing what remains first. If wg is non-nil, Done is called once
// per item received, so a sender can wait for the queue to drain. Failed
// batches are counted in stats; the caller decides whether the run passed
// by comparing stats.Rows against what it sent.
func RunWriter(
	ctx context.Context,
	backend InsertBackend,
	fg FeatureGroup,
	queue <-chan *tsdata.Point,
	mu *sync.Mutex,
	stats *progress.WriteStats,
	batchSize int,
	flushInterval time.Duration,
	wg *sync.WaitGroup,
) {
	var batch []tsdata.Point
	batchStart := time.Now()
	for {
		timeout := pollInterval
		if elapsed := time.Since(batchStart); flushInterval > elapsed {
			if left := flushInterval - elapsed; left < timeout {
				timeout = left
			}
		}
		if timeout < time.Millisecond {
			timeout = time.Millisecond
		}

		select {
		case p := <-queue:
			if wg != nil {
				wg.Done()
			}
			if p == nil {
				flush(ctx, backend, fg, batch, mu, stats)
				return
			}
			batch = append(batch, *p)
			if len(batch) >= batchSize {
				flush(ctx, backend, fg, batch, mu, stats)
				batch = nil
				batchStart = time.Now()
			}
		case <-time.After(timeout):
			if len(batch) > 0 && time.Since(batchStart) >= flushInterval {
				flush(ctx, backend, fg, batch, mu, stats)
				batch = nil
				batchStart = time.Now()
			}
		}
	}
}

func flush(
	ctx context.Context,
	backend InsertBackend,
	fg FeatureGroup,
	batch []tsdata.Point,
	mu *sync.Mutex,
	stats *progress.WriteStats,
) {
	if len(batch) == 0 {
		return
	}
	t0 := time.Now()
	n, err := backend.InsertBatch(ctx, fg, batch)
	latency := time.Since(t0).Seconds()

	mu.Lock()
	defer mu.Unlock()
	stats.Batches++
	stats.TotalLatencySec += latency
	if err != nil {
		stats.Failed += len(batch)
		log.Printf("InsertBatch of %d rows failed: %v", len(batch), err)
		return
	}
	stats.Rows += n
}
