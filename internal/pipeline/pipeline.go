// Package pipeline wires the stages together: simulate a fresh batch from
// historical data, aggregate it into the hourly series, write it to the
// feature store, and record the run.
package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/archive"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/catalog"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/config"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/featurestore"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/notify"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/progress"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/simulate"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/tlc"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/tsdata"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/window"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/zones"
)

// Summary reports what one run did.
type Summary struct {
	RunID   uuid.UUID
	Group   featurestore.FeatureGroup
	Window  window.Window
	Source  window.Window
	Loaded  int
	Kept    int
	Points  int
	Written int
	Online  int
	Elapsed time.Duration
}

// OfflineStore is the history store seam: batch inserts plus the read-back
// check. *featurestore.Offline implements it.
type OfflineStore interface {
	featurestore.InsertBackend
	CountRows(ctx context.Context, fg featurestore.FeatureGroup, w window.Window) (int, error)
}

// OnlineStore is the registry and serving seam. *featurestore.Online
// implements it.
type OnlineStore interface {
	StartMaterialization(ctx context.Context, fg featurestore.FeatureGroup, w window.Window) (uuid.UUID, error)
	FinishMaterialization(ctx context.Context, runID uuid.UUID, rows int, runErr error) error
	UpsertLatest(ctx context.Context, fg featurestore.FeatureGroup, points []tsdata.Point) (int, error)
}

// Pipeline holds the stages of one deployment. Registry, Catalog, Archiver,
// and Notifier are optional; the rest are required.
type Pipeline struct {
	Cfg      config.Config
	Group    featurestore.FeatureGroup
	Loader   simulate.Loader
	Offline  OfflineStore
	Online   OnlineStore
	Registry *zones.Registry
	Catalog  *catalog.Catalog
	Archiver *archive.Uploader
	Notifier *notify.Publisher
}

// Materialize runs one scheduled pass: the trailing window ending at the
// hour of now, filled by shifting year-old data forward, written to both
// stores.
func (p *Pipeline) Materialize(ctx context.Context, now time.Time) (Summary, error) {
	w, err := window.Materialization(now, time.Duration(p.Cfg.WindowDays)*24*time.Hour)
	if err != nil {
		return Summary{}, err
	}
	shift := time.Duration(p.Cfg.ShiftWeeks) * 7 * 24 * time.Hour
	return p.run(ctx, w, shift, true)
}

// Backfill loads a historical window as-is into the offline store. The
// serving table is left alone; its no-regress guard would reject old hours
// anyway.
func (p *Pipeline) Backfill(ctx context.Context, w window.Window) (Summary, error) {
	return p.run(ctx, w, 0, false)
}

func (p *Pipeline) run(ctx context.Context, w window.Window, shift time.Duration, updateOnline bool) (Summary, error) {
	runStart := time.Now()
	summary := Summary{Group: p.Group, Window: w}

	runID, err := p.Online.StartMaterialization(ctx, p.Group, w)
	if err != nil {
		return summary, err
	}
	summary.RunID = runID
	log.Printf("Run %s: materializing %s v%d over %s .. %s (%d writers, batch %d)",
		runID, p.Group.Name, p.Group.Version,
		w.From.Format(time.RFC3339), w.To.Format(time.RFC3339),
		p.Cfg.Writers, p.Cfg.BatchSize)

	res, err := simulate.FetchShifted(ctx, p.Loader, w, shift)
	if err != nil {
		return summary, p.fail(ctx, runID, summary, runStart, err)
	}
	summary.Source = res.Source
	summary.Loaded = res.Loaded
	summary.Kept = res.Kept
	log.Printf("Run %s: %d trips loaded, %d inside window", runID, res.Loaded, res.Kept)

	var locations []int
	if p.Registry != nil && p.Registry.Count() > 0 {
		locations = p.Registry.IDs()
	}
	points, aggStats := tsdata.Aggregate(res.Trips, w, locations)
	summary.Points = len(points)
	if aggStats.Counted != res.Kept {
		err := errors.Errorf("aggregation lost trips: counted %d of %d", aggStats.Counted, res.Kept)
		return summary, p.fail(ctx, runID, summary, runStart, err)
	}

	written, failed := p.write(ctx, points)
	summary.Written = written
	if failed > 0 || written != len(points) {
		err := errors.Errorf("wrote %d of %d rows (%d failed)", written, len(points), failed)
		return summary, p.fail(ctx, runID, summary, runStart, err)
	}

	stored, err := p.Offline.CountRows(ctx, p.Group, w)
	if err != nil {
		return summary, p.fail(ctx, runID, summary, runStart, err)
	}
	if stored != len(points) {
		err := errors.Errorf("store holds %d rows for the window, expected %d", stored, len(points))
		return summary, p.fail(ctx, runID, summary, runStart, err)
	}

	if updateOnline {
		n, err := p.Online.UpsertLatest(ctx, p.Group, points)
		if err != nil {
			return summary, p.fail(ctx, runID, summary, runStart, err)
		}
		summary.Online = n
	}

	p.archiveSources(ctx, res.Source)

	if err := p.Online.FinishMaterialization(ctx, runID, written, nil); err != nil {
		return summary, err
	}
	summary.Elapsed = time.Since(runStart)
	p.notifyRun(ctx, summary, nil)

	elapsed := summary.Elapsed.Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(written) / elapsed
	}
	log.Printf("Run %s finished: %d rows written in %.2fs (%.1f rows/sec)", runID, written, elapsed, rate)
	log.Printf("Window: %d hours, %d series cells, %d serving rows updated", w.Hours(), len(points), summary.Online)
	return summary, nil
}

// write feeds the series through the batching writer pool against the
// offline store.
func (p *Pipeline) write(ctx context.Context, points []tsdata.Point) (written, failed int) {
	queueMax := max3(p.Cfg.Writers*8, p.Cfg.BatchSize*p.Cfg.Writers*2, 4096)
	queue := make(chan *tsdata.Point, queueMax)

	var mu sync.Mutex
	stats := &progress.WriteStats{}
	progressCtx, stopProgress := context.WithCancel(ctx)
	defer stopProgress()
	go progress.Run(progressCtx, &mu, stats, 5*time.Second)

	var workers sync.WaitGroup
	for i := 0; i < p.Cfg.Writers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			featurestore.RunWriter(ctx, p.Offline, p.Group, queue, &mu, stats,
				p.Cfg.BatchSize, p.Cfg.FlushInterval, nil)
		}()
	}

	for i := range points {
		queue <- &points[i]
	}
	for i := 0; i < p.Cfg.Writers; i++ {
		queue <- nil
	}
	workers.Wait()

	mu.Lock()
	defer mu.Unlock()
	return stats.Rows, stats.Failed
}

// archiveSources mirrors the window's raw files to S3, best effort.
func (p *Pipeline) archiveSources(ctx context.Context, source window.Window) {
	if p.Archiver == nil || p.Catalog == nil {
		return
	}
	for _, m := range source.Months() {
		entry, ok, err := p.Catalog.Lookup(ctx, tlc.Dataset, m)
		if err != nil || !ok {
			continue
		}
		key, err := p.Archiver.Upload(ctx, tlc.Dataset, m, entry.Path)
		if err != nil {
			log.Printf("archive %s: %v", entry.Path, err)
			continue
		}
		log.Printf("archived %s -> %s", entry.Path, key)
	}
}

func (p *Pipeline) fail(ctx context.Context, runID uuid.UUID, summary Summary, runStart time.Time, runErr error) error {
	summary.Elapsed = time.Since(runStart)
	if err := p.Online.FinishMaterialization(ctx, runID, summary.Written, runErr); err != nil {
		log.Printf("record failed run %s: %v", runID, err)
	}
	p.notifyRun(ctx, summary, runErr)
	return runErr
}

func (p *Pipeline) notifyRun(ctx context.Context, summary Summary, runErr error) {
	if p.Notifier == nil {
		return
	}
	e := notify.RunEvent{
		RunID:        summary.RunID.String(),
		FeatureGroup: summary.Group.Name,
		Version:      summary.Group.Version,
		WindowFrom:   summary.Window.From,
		WindowTo:     summary.Window.To,
		Rows:         summary.Written,
		ElapsedMS:    summary.Elapsed.Milliseconds(),
		Status:       featurestore.StatusCompleted,
		FinishedAt:   time.Now().UTC(),
	}
	if runErr != nil {
		e.Status = featurestore.StatusFailed
		e.Error = runErr.Error()
	}
	if err := p.Notifier.Publish(ctx, e); err != nil {
		log.Printf("publish run event: %v", err)
	}
}

func max3(a, b, c int) int {
	if b > a {
		a = b
	}
	if c > a {
		a = c
	}
	return a
}
