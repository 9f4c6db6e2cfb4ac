// Package tsdata turns cleaned trips into the hourly ride-count time series
// consumed by the feature store. The output grid is dense: every location
// appears for every hour of the window, with zero rides where nothing
// happened, so downstream models never see gaps.
package tsdata

import (
	"sort"
	"time"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/trips"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/window"
)

// Point is one cell of the time series: rides picked up at a location
// during the hour starting at PickupHour.
type Point struct {
	PickupHour time.Time
	LocationID int
	Rides      int
}

// Stats reports what Aggregate did with the input batch. Counted must equal
// the sum of Rides over the output for the run to be conservation-clean.
type Stats struct {
	Counted         int
	OutOfWindow     int
	UnknownLocation int
}

type cell struct {
	loc  int
	hour int64
}

// Aggregate buckets trips by (hour, location) over w and densifies the
// result to the full hours-by-locations grid, ordered by location ascending
// then hour ascending. When locations is empty the distinct location IDs of
// the batch are used. Trips outside w, or at locations not in the grid, are
// dropped and reported in Stats.
func Aggregate(batch []trips.Trip, w window.Window, locations []int) ([]Point, Stats) {
	if len(locations) == 0 {
		locations = Locations(batch)
	} else {
		locations = append([]int(nil), locations...)
		sort.Ints(locations)
	}

	known := make(map[int]struct{}, len(locations))
	for _, id := range locations {
		known[id] = struct{}{}
	}

	var stats Stats
	counts := make(map[cell]int)
	for _, t := range batch {
		if !w.Contains(t.PickupTime) {
			stats.OutOfWindow++
			continue
		}
		if _, ok := known[t.LocationID]; !ok {
			stats.UnknownLocation++
			continue
		}
		hour := window.FloorHour(t.PickupTime)
		counts[cell{loc: t.LocationID, hour: hour.Unix()}]++
		stats.Counted++
	}

	points := make([]Point, 0, w.Hours()*len(locations))
	for _, loc := range locations {
		for hour := w.From; hour.Before(w.To); hour = hour.Add(time.Hour) {
			points = append(points, Point{
				PickupHour: hour,
				LocationID: loc,
				Rides:      counts[cell{loc: loc, hour: hour.Unix()}],
			})
		}
	}
	return points, stats
}

// Locations returns the distinct location IDs in the batch, ascending.
func Locations(batch []trips.Trip) []int {
	seen := make(map[int]struct{})
	for _, t := range batch {
		seen[t.LocationID] = struct{}{}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// TotalRides sums the ride counts of a series.
func TotalRides(points []Point) int {
	total := 0
	for _, p := range points {
		total += p.Rides
	}
	return total
}
