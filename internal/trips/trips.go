// Package trips models yellow-taxi trip records as published by the NYC
// Taxi & Limousine Commission.
//
// Monthly files carry one row per completed trip. Only two columns matter
// for demand features: the pickup timestamp and the pickup zone. TLC files
// are known to contain stray rows whose pickup falls outside the file's
// calendar month (meter clock skew, late uploads); those rows are dropped
// during cleaning rather than reassigned. Location IDs reference the TLC
// taxi-zone map (1..263 plus the 264/265 unknown markers); rows pointing at
// zones missing from the configured registry are dropped as well.
package trips

import (
	"sort"
	"time"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/window"
)

// Trip is a single ride: when it started and in which taxi zone.
type Trip struct {
	PickupTime time.Time
	LocationID int
}

// ZoneChecker answers whether a location ID is part of the zone registry.
// A nil checker disables zone validation.
type ZoneChecker interface {
	Contains(id int) bool
}

// CleanStats counts what Clean dropped and why.
type CleanStats struct {
	Kept        int
	OutOfMonth  int
	UnknownZone int
	NonPositive int
}

// Total is the number of input rows Clean saw.
func (s CleanStats) Total() int {
	return s.Kept + s.OutOfMonth + s.UnknownZone + s.NonPositive
}

// InMonth reports whether the trip's pickup falls inside m.
func InMonth(t Trip, m window.Month) bool {
	return m.Contains(t.PickupTime)
}

// Clean applies the per-file validation rules: pickups must fall inside the
// file's month, location IDs must be positive and, when a registry is given,
// known to it. Input order is preserved for the rows that survive.
func Clean(in []Trip, m window.Month, zc ZoneChecker) ([]Trip, CleanStats) {
	kept := make([]Trip, 0, len(in))
	var stats CleanStats
	for _, t := range in {
		switch {
		case t.LocationID <= 0:
			stats.NonPositive++
		case !InMonth(t, m):
			stats.OutOfMonth++
		case zc != nil && !zc.Contains(t.LocationID):
			stats.UnknownZone++
		default:
			kept = append(kept, t)
		}
	}
	stats.Kept = len(kept)
	return kept, stats
}

// SortByLocationTime sorts in place into the canonical batch order:
// location ID ascending, then pickup time ascending.
func SortByLocationTime(ts []Trip) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].LocationID != ts[j].LocationID {
			return ts[i].LocationID < ts[j].LocationID
		}
		return ts[i].PickupTime.Before(ts[j].PickupTime)
	})
}
