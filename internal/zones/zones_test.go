package zones

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lookupCSV = `"LocationID","Borough","Zone","service_zone"
1,"EWR","Newark Airport","EWR"
4,"Manhattan","Alphabet City","Yellow Zone"
132,"Queens","JFK Airport","Airports"
264,"Unknown","NV","N/A"
`

// Two adjacent unit squares in WKT, one plain polygon and one multipolygon
// with a hole covering the middle of its square.
const geometryCSV = `the_geom,Shape_Leng,Shape_Area,zone,LocationID,borough
"POLYGON ((0 0, 1 0, 1 1, 0 1, 0 0))",4,1,Alphabet City,4,Manhattan
"MULTIPOLYGON (((2 0, 3 0, 3 1, 2 1, 2 0), (2.4 0.4, 2.6 0.4, 2.6 0.6, 2.4 0.6, 2.4 0.4)))",4,1,JFK Airport,132,Queens
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadLookup(t *testing.T) {
	r, err := LoadLookup(writeFile(t, "lookup.csv", lookupCSV))
	require.NoError(t, err)

	assert.Equal(t, 4, r.Count())
	assert.Equal(t, []int{1, 4, 132, 264}, r.IDs())
	assert.True(t, r.Contains(132))
	assert.False(t, r.Contains(2))
	assert.False(t, r.HasGeometry())

	z, ok := r.Zone(4)
	require.True(t, ok)
	assert.Equal(t, Zone{ID: 4, Borough: "Manhattan", Name: "Alphabet City", ServiceZone: "Yellow Zone"}, z)
}

func TestLoadLookupRejectsBadRows(t *testing.T) {
	tcs := map[string]string{
		"short row":      "LocationID,Borough,Zone,service_zone\n1,EWR,Newark\n",
		"non-numeric id": "LocationID,Borough,Zone,service_zone\nabc,EWR,Newark Airport,EWR\n",
	}
	for name, content := range tcs {
		t.Run(name, func(t *testing.T) {
			_, err := LoadLookup(writeFile(t, "lookup.csv", content))
			assert.ErrorIs(t, err, ErrBadLookup)
		})
	}
}

func TestZoneAt(t *testing.T) {
	r, err := LoadLookup(writeFile(t, "lookup.csv", lookupCSV))
	require.NoError(t, err)
	require.NoError(t, r.LoadGeometry(writeFile(t, "shapes.csv", geometryCSV)))
	require.True(t, r.HasGeometry())

	tcs := map[string]struct {
		lon, lat float64
		wantID   int
		wantOK   bool
	}{
		"inside polygon":      {lon: 0.5, lat: 0.5, wantID: 4, wantOK: true},
		"inside multipolygon": {lon: 2.1, lat: 0.9, wantID: 132, wantOK: true},
		"inside hole":         {lon: 2.5, lat: 0.5, wantOK: false},
		"outside all":         {lon: 5.0, lat: 5.0, wantOK: false},
	}
	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			id, ok := r.ZoneAt(tc.lon, tc.lat)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.wantID, id)
			}
		})
	}
}

func TestZoneAtWithoutGeometry(t *testing.T) {
	r, err := LoadLookup(writeFile(t, "lookup.csv", lookupCSV))
	require.NoError(t, err)

	_, ok := r.ZoneAt(0.5, 0.5)
	assert.False(t, ok)
}

func TestParseWKT(t *testing.T) {
	tcs := map[string]struct {
		wkt       string
		wantPolys int
		wantErr   bool
	}{
		"polygon":          {wkt: "POLYGON ((0 0, 1 0, 1 1, 0 0))", wantPolys: 1},
		"multipolygon":     {wkt: "MULTIPOLYGON (((0 0, 1 0, 1 1, 0 0)), ((2 2, 3 2, 3 3, 2 2)))", wantPolys: 2},
		"point rejected":   {wkt: "POINT (1 2)", wantErr: true},
		"unbalanced":       {wkt: "POLYGON ((0 0, 1 0, 1 1, 0 0)", wantErr: true},
		"non-numeric pair": {wkt: "POLYGON ((a b, 1 0, 1 1, a b))", wantErr: true},
	}
	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			mp, err := parseWKT(tc.wkt)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrBadGeometry)
				return
			}
			require.NoError(t, err)
			assert.Len(t, mp, tc.wantPolys)
		})
	}
}
