package tlc

import (
	"time"

	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/schema"
	"github.com/pkg/errors"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/trips"
)

// Column names in the published files. Files before 2016-07 carry pickup
// coordinates instead of a zone ID.
const (
	pickupTimeColumn = "tpep_pickup_datetime"
	locationColumn   = "PULocationID"
	longitudeColumn  = "pickup_longitude"
	latitudeColumn   = "pickup_latitude"
)

var (
	ErrSchema       = errors.New("tlc: unexpected parquet schema")
	ErrNeedGeometry = errors.New("tlc: file has coordinates, not zone IDs; zone geometry required")
)

const readBatchSize = 8192

// LocationResolver maps a WGS84 coordinate to a zone ID.
type LocationResolver interface {
	ZoneAt(lon, lat float64) (int, bool)
}

// ReadTrips decodes a monthly trip file. Modern files are read from the
// pickup time and zone ID columns; legacy coordinate files need a resolver.
// Rows the resolver cannot place get location 0 and are dropped by cleaning.
func ReadTrips(path string, resolver LocationResolver) ([]trips.Trip, error) {
	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, errors.Wrapf(err, "tlc: open %s", path)
	}
	defer pf.Close()

	sc := pf.MetaData().Schema
	timeIdx, locIdx, lonIdx, latIdx := -1, -1, -1, -1
	for i := 0; i < sc.NumColumns(); i++ {
		switch sc.Column(i).Name() {
		case pickupTimeColumn:
			timeIdx = i
		case locationColumn:
			locIdx = i
		case longitudeColumn:
			lonIdx = i
		case latitudeColumn:
			latIdx = i
		}
	}
	if timeIdx == -1 {
		return nil, errors.Wrapf(ErrSchema, "%s: no %s column", path, pickupTimeColumn)
	}
	legacy := locIdx == -1
	if legacy {
		if lonIdx == -1 || latIdx == -1 {
			return nil, errors.Wrapf(ErrSchema, "%s: no %s or coordinate columns", path, locationColumn)
		}
		if resolver == nil {
			return nil, errors.Wrapf(ErrNeedGeometry, "%s", path)
		}
	}
	scale := timestampScale(sc.Column(timeIdx))

	totalRows := 0
	for i := 0; i < pf.NumRowGroups(); i++ {
		totalRows += int(pf.RowGroup(i).NumRows())
	}
	out := make([]trips.Trip, 0, totalRows)

	for rgIdx := 0; rgIdx < pf.NumRowGroups(); rgIdx++ {
		rg := pf.RowGroup(rgIdx)
		numRows := int(rg.NumRows())
		if numRows == 0 {
			continue
		}

		times, err := readTimes(rg, timeIdx, numRows, scale)
		if err != nil {
			return nil, errors.Wrapf(err, "tlc: %s row group %d", path, rgIdx)
		}

		var locs []int
		if legacy {
			lons, err := readFloats(rg, lonIdx, numRows)
			if err != nil {
				return nil, errors.Wrapf(err, "tlc: %s row group %d", path, rgIdx)
			}
			lats, err := readFloats(rg, latIdx, numRows)
			if err != nil {
				return nil, errors.Wrapf(err, "tlc: %s row group %d", path, rgIdx)
			}
			locs = resolveLocations(lons, lats, resolver)
		} else {
			locs, err = readLocations(rg, locIdx, numRows)
			if err != nil {
				return nil, errors.Wrapf(err, "tlc: %s row group %d", path, rgIdx)
			}
		}

		n := len(times)
		if len(locs) < n {
			n = len(locs)
		}
		for i := 0; i < n; i++ {
			out = append(out, trips.Trip{PickupTime: times[i], LocationID: locs[i]})
		}
	}
	return out, nil
}

// timestampScale returns nanoseconds per stored unit. Published files use
// microseconds; the logical type is authoritative when present.
func timestampScale(col *schema.Column) int64 {
	if lt, ok := col.LogicalType().(*schema.TimestampLogicalType); ok {
		switch lt.TimeUnit() {
		case schema.TimeUnitMillis:
			return int64(time.Millisecond)
		case schema.TimeUnitMicros:
			return int64(time.Microsecond)
		case schema.TimeUnitNanos:
			return 1
		}
	}
	return int64(time.Microsecond)
}

func readTimes(rg *file.RowGroupReader, colIdx, numRows int, scale int64) ([]time.Time, error) {
	col, err := rg.Column(colIdx)
	if err != nil {
		return nil, err
	}
	reader, ok := col.(*file.Int64ColumnChunkReader)
	if !ok {
		return nil, errors.Wrapf(ErrSchema, "timestamp column is %T", col)
	}

	result := make([]time.Time, 0, numRows)
	values := make([]int64, readBatchSize)
	defLevels := make([]int16, readBatchSize)
	for {
		n, read, err := reader.ReadBatch(int64(len(values)), values, defLevels, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		if read == int(n) {
			for i := 0; i < read; i++ {
				result = append(result, time.Unix(0, values[i]*scale).UTC())
			}
			continue
		}
		// Values are packed; nulls appear only in the levels.
		vi := 0
		for i := 0; i < int(n); i++ {
			if defLevels[i] > 0 {
				result = append(result, time.Unix(0, values[vi]*scale).UTC())
				vi++
			} else {
				result = append(result, time.Time{})
			}
		}
	}
	return result, nil
}

func readLocations(rg *file.RowGroupReader, colIdx, numRows int) ([]int, error) {
	col, err := rg.Column(colIdx)
	if err != nil {
		return nil, err
	}

	result := make([]int, 0, numRows)
	defLevels := make([]int16, readBatchSize)

	switch reader := col.(type) {
	case *file.Int64ColumnChunkReader:
		values := make([]int64, readBatchSize)
		for {
			n, read, err := reader.ReadBatch(int64(len(values)), values, defLevels, nil)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				break
			}
			if read == int(n) {
				for i := 0; i < read; i++ {
					result = append(result, int(values[i]))
				}
				continue
			}
			vi := 0
			for i := 0; i < int(n); i++ {
				if defLevels[i] > 0 {
					result = append(result, int(values[vi]))
					vi++
				} else {
					result = append(result, 0)
				}
			}
		}
	case *file.Int32ColumnChunkReader:
		values := make([]int32, readBatchSize)
		for {
			n, read, err := reader.ReadBatch(int64(len(values)), values, defLevels, nil)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				break
			}
			if read == int(n) {
				for i := 0; i < read; i++ {
					result = append(result, int(values[i]))
				}
				continue
			}
			vi := 0
			for i := 0; i < int(n); i++ {
				if defLevels[i] > 0 {
					result = append(result, int(values[vi]))
					vi++
				} else {
					result = append(result, 0)
				}
			}
		}
	default:
		return nil, errors.Wrapf(ErrSchema, "location column is %T", col)
	}
	return result, nil
}

func readFloats(rg *file.RowGroupReader, colIdx, numRows int) ([]float64, error) {
	col, err := rg.Column(colIdx)
	if err != nil {
		return nil, err
	}

	result := make([]float64, 0, numRows)
	defLevels := make([]int16, readBatchSize)

	switch reader := col.(type) {
	case *file.Float64ColumnChunkReader:
		values := make([]float64, readBatchSize)
		for {
			n, read, err := reader.ReadBatch(int64(len(values)), values, defLevels, nil)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				break
			}
			if read == int(n) {
				result = append(result, values[:read]...)
				continue
			}
			vi := 0
			for i := 0; i < int(n); i++ {
				if defLevels[i] > 0 {
					result = append(result, values[vi])
					vi++
				} else {
					result = append(result, 0)
				}
			}
		}
	case *file.Float32ColumnChunkReader:
		values := make([]float32, readBatchSize)
		for {
			n, read, err := reader.ReadBatch(int64(len(values)), values, defLevels, nil)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				break
			}
			if read == int(n) {
				for i := 0; i < read; i++ {
					result = append(result, float64(values[i]))
				}
				continue
			}
			vi := 0
			for i := 0; i < int(n); i++ {
				if defLevels[i] > 0 {
					result = append(result, float64(values[vi]))
					vi++
				} else {
					result = append(result, 0)
				}
			}
		}
	default:
		return nil, errors.Wrapf(ErrSchema, "coordinate column is %T", col)
	}
	return result, nil
}

// resolveLocations places each coordinate pair in a zone; misses become
// location 0, removed later by cleaning.
func resolveLocations(lons, lats []float64, resolver LocationResolver) []int {
	n := len(lons)
	if len(lats) < n {
		n = len(lats)
	}
	locs := make([]int, n)
	for i := 0; i < n; i++ {
		if id, ok := resolver.ZoneAt(lons[i], lats[i]); ok {
			locs[i] = id
		}
	}
	return locs
}
