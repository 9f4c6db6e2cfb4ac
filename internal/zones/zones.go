// Package zones loads the TLC taxi-zone registry: the lookup table naming
// every pickup location ID, and optionally the zone polygons used to resolve
// coordinates from legacy trip files (pre 2016-07) into location IDs.
package zones

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
)

var (
	ErrBadLookup   = errors.New("zones: malformed lookup row")
	ErrBadGeometry = errors.New("zones: malformed WKT geometry")
)

// gridSize buckets zone polygons into 0.01 degree cells, roughly 1km at
// NYC's latitude, so ZoneAt only tests a handful of candidates per point.
const gridSize = 0.01

// Zone is one row of the TLC lookup table.
type Zone struct {
	ID          int
	Borough     string
	Name        string
	ServiceZone string
}

// Registry is the set of known taxi zones, with optional geometry.
type Registry struct {
	zones map[int]Zone
	ids   []int

	geoms  map[int]orb.MultiPolygon
	bounds map[int]orb.Bound
	index  map[int][]int // grid cell -> zone IDs whose bound crosses it
}

// LoadLookup reads taxi_zone_lookup.csv (LocationID, Borough, Zone,
// service_zone) and returns a registry without geometry.
func LoadLookup(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "zones: open lookup")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "zones: read lookup")
	}

	r := &Registry{zones: make(map[int]Zone)}
	for i, row := range rows {
		if len(row) < 4 {
			return nil, errors.Wrapf(ErrBadLookup, "line %d: %d fields", i+1, len(row))
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "LocationID") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, errors.Wrapf(ErrBadLookup, "line %d: location id %q", i+1, row[0])
		}
		r.zones[id] = Zone{
			ID:          id,
			Borough:     strings.TrimSpace(row[1]),
			Name:        strings.TrimSpace(row[2]),
			ServiceZone: strings.TrimSpace(row[3]),
		}
	}

	r.ids = make([]int, 0, len(r.zones))
	for id := range r.zones {
		r.ids = append(r.ids, id)
	}
	sort.Ints(r.ids)
	return r, nil
}

// LoadGeometry reads the zone shapes CSV (the_geom WKT column plus
// LocationID) and builds the spatial index for ZoneAt.
func (r *Registry) LoadGeometry(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "zones: open geometry")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return errors.Wrap(err, "zones: read geometry")
	}
	if len(rows) < 2 {
		return errors.Wrap(ErrBadGeometry, "geometry file has no data rows")
	}

	geomCol, idCol := -1, -1
	for i, name := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "the_geom", "geometry", "wkt":
			geomCol = i
		case "locationid", "location_id", "objectid":
			if idCol == -1 || strings.EqualFold(strings.TrimSpace(name), "locationid") {
				idCol = i
			}
		}
	}
	if geomCol == -1 || idCol == -1 {
		return errors.Wrap(ErrBadGeometry, "geometry header missing the_geom or LocationID")
	}

	r.geoms = make(map[int]orb.MultiPolygon, len(rows)-1)
	r.bounds = make(map[int]orb.Bound, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) <= geomCol || len(row) <= idCol {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(row[idCol]))
		if err != nil {
			return errors.Wrapf(ErrBadGeometry, "line %d: location id %q", i+1, row[idCol])
		}
		mp, err := parseWKT(row[geomCol])
		if err != nil {
			return errors.Wrapf(err, "line %d (zone %d)", i+1, id)
		}
		r.geoms[id] = mp
		r.bounds[id] = mp.Bound()
	}

	r.buildIndex()
	return nil
}

func (r *Registry) buildIndex() {
	r.index = make(map[int][]int)
	for id, bound := range r.bounds {
		minX := int(bound.Min[0] / gridSize)
		maxX := int(bound.Max[0] / gridSize)
		minY := int(bound.Min[1] / gridSize)
		maxY := int(bound.Max[1] / gridSize)
		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				key := x*100000 + y
				r.index[key] = append(r.index[key], id)
			}
		}
	}
}

// Contains reports whether id is a known zone.
func (r *Registry) Contains(id int) bool {
	_, ok := r.zones[id]
	return ok
}

// Zone returns the lookup row for id.
func (r *Registry) Zone(id int) (Zone, bool) {
	z, ok := r.zones[id]
	return z, ok
}

// IDs returns all known location IDs, ascending.
func (r *Registry) IDs() []int {
	return r.ids
}

// Count is the number of known zones.
func (r *Registry) Count() int {
	return len(r.zones)
}

// HasGeometry reports whether zone polygons were loaded.
func (r *Registry) HasGeometry() bool {
	return len(r.geoms) > 0
}

// ZoneAt resolves a WGS84 coordinate to the zone containing it. Returns
// false when geometry is not loaded or no zone contains the point.
func (r *Registry) ZoneAt(lon, lat float64) (int, bool) {
	if len(r.index) == 0 {
		return 0, false
	}
	point := orb.Point{lon, lat}
	key := int(lon/gridSize)*100000 + int(lat/gridSize)
	for _, id := range r.index[key] {
		if !r.bounds[id].Contains(point) {
			continue
		}
		for _, poly := range r.geoms[id] {
			if planar.PolygonContains(poly, point) {
				return id, true
			}
		}
	}
	return 0, false
}

func parseWKT(s string) (orb.MultiPolygon, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "MULTIPOLYGON"); ok {
		return parseMultiPolygonBody(strings.TrimSpace(rest))
	}
	if rest, ok := strings.CutPrefix(s, "POLYGON"); ok {
		poly, err := parsePolygonBody(strings.TrimSpace(rest))
		if err != nil {
			return nil, err
		}
		return orb.MultiPolygon{poly}, nil
	}
	return nil, errors.Wrapf(ErrBadGeometry, "unsupported WKT type in %.32q", s)
}

func parseMultiPolygonBody(s string) (orb.MultiPolygon, error) {
	body, err := stripParens(s)
	if err != nil {
		return nil, err
	}
	var mp orb.MultiPolygon
	for _, polyStr := range splitTop(body) {
		poly, err := parsePolygonBody(polyStr)
		if err != nil {
			return nil, err
		}
		mp = append(mp, poly)
	}
	return mp, nil
}

func parsePolygonBody(s string) (orb.Polygon, error) {
	body, err := stripParens(s)
	if err != nil {
		return nil, err
	}
	var poly orb.Polygon
	for _, ringStr := range splitTop(body) {
		ringBody, err := stripParens(ringStr)
		if err != nil {
			return nil, err
		}
		var ring orb.Ring
		for _, ptStr := range strings.Split(ringBody, ",") {
			fields := strings.Fields(strings.TrimSpace(ptStr))
			if len(fields) < 2 {
				return nil, errors.Wrapf(ErrBadGeometry, "point %q", ptStr)
			}
			lon, lonErr := strconv.ParseFloat(fields[0], 64)
			lat, latErr := strconv.ParseFloat(fields[1], 64)
			if lonErr != nil || latErr != nil {
				return nil, errors.Wrapf(ErrBadGeometry, "point %q", ptStr)
			}
			ring = append(ring, orb.Point{lon, lat})
		}
		poly = append(poly, ring)
	}
	return poly, nil
}

func stripParens(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return "", errors.Wrapf(ErrBadGeometry, "unbalanced parentheses in %.32q", s)
	}
	return s[1 : len(s)-1], nil
}

// splitTop splits s on commas that sit outside any parentheses.
func splitTop(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}
