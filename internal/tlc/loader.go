package tlc

import (
	"context"
	"log"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/trips"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/window"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/zones"
)

// Loader fetches, decodes, and cleans one month of trips at a time. With a
// zone registry attached it validates location IDs and can read legacy
// coordinate files; without one it only drops non-positive IDs and rows
// outside the month.
type Loader struct {
	Fetcher  *Fetcher
	Registry *zones.Registry
}

// LoadMonth returns the month's cleaned trips in file order.
func (l *Loader) LoadMonth(ctx context.Context, m window.Month) ([]trips.Trip, error) {
	path, err := l.Fetcher.Fetch(ctx, m)
	if err != nil {
		return nil, err
	}

	var resolver LocationResolver
	var checker trips.ZoneChecker
	if l.Registry != nil {
		checker = l.Registry
		if l.Registry.HasGeometry() {
			resolver = l.Registry
		}
	}

	raw, err := ReadTrips(path, resolver)
	if err != nil {
		return nil, err
	}

	cleaned, stats := trips.Clean(raw, m, checker)
	if dropped := stats.Total() - stats.Kept; dropped > 0 {
		log.Printf("%s: dropped %d of %d rows (out of month %d, unknown zone %d, bad id %d)",
			FileName(m), dropped, stats.Total(), stats.OutOfMonth, stats.UnknownZone, stats.NonPositive)
	}
	return cleaned, nil
}
