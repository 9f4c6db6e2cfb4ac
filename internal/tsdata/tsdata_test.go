package tsdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/trips"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/window"
)

func mustWindow(t *testing.T, from, to time.Time) window.Window {
	t.Helper()
	w, err := window.New(from, to)
	require.NoError(t, err)
	return w
}

func TestAggregateDenseGrid(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	w := mustWindow(t, from, from.Add(3*time.Hour))

	batch := []trips.Trip{
		{PickupTime: from.Add(5 * time.Minute), LocationID: 43},
		{PickupTime: from.Add(20 * time.Minute), LocationID: 43},
		{PickupTime: from.Add(59 * time.Minute), LocationID: 7},
		{PickupTime: from.Add(2*time.Hour + 30*time.Minute), LocationID: 43},
	}

	points, stats := Aggregate(batch, w, nil)

	require.Len(t, points, w.Hours()*2)
	assert.Equal(t, Stats{Counted: 4}, stats)
	assert.Equal(t, 4, TotalRides(points))

	want := []Point{
		{PickupHour: from, LocationID: 7, Rides: 1},
		{PickupHour: from.Add(time.Hour), LocationID: 7, Rides: 0},
		{PickupHour: from.Add(2 * time.Hour), LocationID: 7, Rides: 0},
		{PickupHour: from, LocationID: 43, Rides: 2},
		{PickupHour: from.Add(time.Hour), LocationID: 43, Rides: 0},
		{PickupHour: from.Add(2 * time.Hour), LocationID: 43, Rides: 1},
	}
	assert.Equal(t, want, points)
}

func TestAggregateWithLocationSet(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	w := mustWindow(t, from, from.Add(2*time.Hour))

	batch := []trips.Trip{
		{PickupTime: from.Add(time.Minute), LocationID: 2},
		{PickupTime: from.Add(time.Minute), LocationID: 99},
	}

	// Location 99 is not in the grid; location 5 has no trips at all.
	points, stats := Aggregate(batch, w, []int{5, 2})

	require.Len(t, points, 4)
	assert.Equal(t, Stats{Counted: 1, UnknownLocation: 1}, stats)
	assert.Equal(t, []Point{
		{PickupHour: from, LocationID: 2, Rides: 1},
		{PickupHour: from.Add(time.Hour), LocationID: 2, Rides: 0},
		{PickupHour: from, LocationID: 5, Rides: 0},
		{PickupHour: from.Add(time.Hour), LocationID: 5, Rides: 0},
	}, points)
}

func TestAggregateDropsOutOfWindow(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	w := mustWindow(t, from, from.Add(time.Hour))

	batch := []trips.Trip{
		{PickupTime: from.Add(-time.Second), LocationID: 1},
		{PickupTime: from, LocationID: 1},
		{PickupTime: from.Add(time.Hour), LocationID: 1}, // To is exclusive
	}
	points, stats := Aggregate(batch, w, nil)

	assert.Equal(t, Stats{Counted: 1, OutOfWindow: 2}, stats)
	require.Len(t, points, 1)
	assert.Equal(t, 1, points[0].Rides)
}

func TestAggregateEmptyBatch(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	w := mustWindow(t, from, from.Add(2*time.Hour))

	points, stats := Aggregate(nil, w, []int{1, 2, 3})

	assert.Equal(t, Stats{}, stats)
	require.Len(t, points, 6)
	assert.Equal(t, 0, TotalRides(points))
}

func TestLocations(t *testing.T) {
	batch := []trips.Trip{
		{LocationID: 132}, {LocationID: 4}, {LocationID: 132}, {LocationID: 68},
	}
	assert.Equal(t, []int{4, 68, 132}, Locations(batch))
	assert.Empty(t, Locations(nil))
}
