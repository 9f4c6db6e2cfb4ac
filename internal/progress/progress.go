// Package progress logs write throughput while a materialization runs.
package progress

import (
	"context"
	"log"
	"sync"
	"time"
)

const defaultInterval = 5 * time.Second

// WriteStats accumulates under the caller's mutex.
type WriteStats struct {
	Rows            int
	Batches         int
	Failed          int
	TotalLatencySec float64
}

// Run logs write progress every interval until ctx is done.
func Run(ctx context.Context, mu *sync.Mutex, stats *WriteStats, interval time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}
	var prev WriteStats
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		mu.Lock()
		cur := *stats
		mu.Unlock()

		intervalRows := cur.Rows - prev.Rows
		intervalBatches := cur.Batches - prev.Batches
		intervalLatency := cur.TotalLatencySec - prev.TotalLatencySec
		prev = cur

		intervalAvgMs := 0.0
		if intervalBatches > 0 {
			intervalAvgMs = intervalLatency / float64(intervalBatches) * 1000
		}
		cumulativeAvgMs := 0.0
		if cur.Batches > 0 {
			cumulativeAvgMs = cur.TotalLatencySec / float64(cur.Batches) * 1000
		}

		log.Printf("Write progress (this interval): %d rows in %d batches, avg batch latency %.2f ms",
			intervalRows, intervalBatches, intervalAvgMs)
		log.Printf("Write progress (cumulative): %d rows in %d batches, %d failed, avg batch latency %.2f ms",
			cur.Rows, cur.Batches, cur.Failed, cumulativeAvgMs)
	}
}
