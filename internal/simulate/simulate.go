// Package simulate produces recent-looking trip batches from historical
// data. Upstream publishes monthly files with a couple of months' lag, so a
// window ending now has no real data yet; instead the same window one year
// back (52 weeks, preserving day of week) is fetched and every pickup is
// shifted forward to land in the requested window.
package simulate

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/trips"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/window"
)

// ErrShiftNotHourAligned is returned when the shift is not a whole number
// of hours; shifted pickups must stay aligned with the hourly buckets.
var ErrShiftNotHourAligned = errors.New("simulate: shift must be a whole number of hours")

// maxConcurrentMonths bounds parallel month loads.
const maxConcurrentMonths = 4

// Loader fetches the trips of one calendar month of source data.
type Loader interface {
	LoadMonth(ctx context.Context, m window.Month) ([]trips.Trip, error)
}

// Result is a shifted batch plus the bookkeeping needed to audit it.
// Kept always equals len(Trips); Loaded-Kept rows fell outside the
// historical window (monthly files overhang it on both ends).
type Result struct {
	Trips  []trips.Trip
	Window window.Window
	Source window.Window
	Loaded int
	Kept   int
}

// FetchShifted loads every source month covering w shifted back by shift,
// keeps the trips inside the shifted window, moves their pickup times
// forward by shift, and returns them sorted by location then pickup time.
func FetchShifted(ctx context.Context, loader Loader, w window.Window, shift time.Duration) (Result, error) {
	if shift%time.Hour != 0 {
		return Result{}, errors.Wrapf(ErrShiftNotHourAligned, "%s", shift)
	}

	source := w.ShiftBack(shift)
	months := source.Months()
	batches := make([][]trips.Trip, len(months))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentMonths)
	for i, m := range months {
		i, m := i, m
		g.Go(func() error {
			batch, err := loader.LoadMonth(gctx, m)
			if err != nil {
				return errors.Wrapf(err, "load %s", m.Key())
			}
			batches[i] = batch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Window: w, Source: source}
	for _, batch := range batches {
		res.Loaded += len(batch)
		for _, t := range batch {
			if !source.Contains(t.PickupTime) {
				continue
			}
			res.Trips = append(res.Trips, trips.Trip{
				PickupTime: t.PickupTime.Add(shift),
				LocationID: t.LocationID,
			})
		}
	}
	res.Kept = len(res.Trips)

	trips.SortByLocationTime(res.Trips)
	return res, nil
}
