// Package featurestore persists the hourly ride-count series. ClickHouse is
// the offline store holding full history for training; Postgres keeps the
// latest value per location for low-latency serving, plus the registry of
// feature groups and materialization runs.
package featurestore

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/tsdata"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/window"
)

// FeatureGroup identifies one versioned feature set in the store. Keys and
// EventTimeColumn describe the series schema for the registry; Online marks
// groups that also maintain a serving row per key.
type FeatureGroup struct {
	Name            string
	Version         int
	Description     string
	Keys            []string
	EventTimeColumn string
	Online          bool
}

// DefaultGroup is the hourly demand series this pipeline maintains.
var DefaultGroup = FeatureGroup{
	Name:            "rides_hourly",
	Version:         1,
	Description:     "Hourly ride counts per pickup location",
	Keys:            []string{"pickup_location_id"},
	EventTimeColumn: "pickup_hour",
	Online:          true,
}

// Materialization statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Materialization is one recorded pipeline run.
type Materialization struct {
	RunID      uuid.UUID
	Group      FeatureGroup
	Window     window.Window
	Rows       int
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Latest reduces a series to the newest point per location, ascending by
// location. This is what the online store serves.
func Latest(points []tsdata.Point) []tsdata.Point {
	byLoc := make(map[int]tsdata.Point)
	for _, p := range points {
		cur, ok := byLoc[p.LocationID]
		if !ok || p.PickupHour.After(cur.PickupHour) {
			byLoc[p.LocationID] = p
		}
	}
	out := make([]tsdata.Point, 0, len(byLoc))
	for _, p := range byLoc {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocationID < out[j].LocationID })
	return out
}
