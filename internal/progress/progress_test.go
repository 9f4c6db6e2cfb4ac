package progress

import (
	"bytes"
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunStopsOnCancel(t *testing.T) {
	orig := log.Writer()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(orig)

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	stats := &WriteStats{}

	done := make(chan struct{})
	go func() {
		Run(ctx, &mu, stats, time.Millisecond)
		close(done)
	}()

	mu.Lock()
	stats.Rows = 100
	stats.Batches = 2
	stats.TotalLatencySec = 0.01
	mu.Unlock()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("progress loop did not stop on cancel")
	}
	assert.Contains(t, buf.String(), "Write progress (cumulative): 100 rows in 2 batches")
}
