package featurestore

import (
	"context"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/pkg/errors"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/config"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/tsdata"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/window"
)

const offlineTable = "rides_hourly"

// Offline is the ClickHouse history store. Rows are versioned by insert
// time under ReplacingMergeTree, so re-running a window converges to one
// row per (group, location, hour) instead of double counting.
type Offline struct {
	conn driver.Conn
	db   string
}

// OpenOffline connects and pings ClickHouse.
func OpenOffline(ctx context.Context, cfg config.Config) (*Offline, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.ClickHouseAddr},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "clickhouse open")
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "clickhouse ping")
	}
	return &Offline{conn: conn, db: cfg.ClickHouseDatabase}, nil
}

// Close releases the connection.
func (o *Offline) Close() error {
	return o.conn.Close()
}

// EnsureSchema creates the history table.
func (o *Offline) EnsureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS ` + o.table() + ` (
		feature_group         LowCardinality(String),
		feature_group_version UInt16,
		pickup_hour           DateTime('UTC'),
		pickup_location_id    UInt16,
		rides                 UInt32,
		inserted_at           DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(inserted_at)
	PARTITION BY toYYYYMM(pickup_hour)
	ORDER BY (feature_group, feature_group_version, pickup_location_id, pickup_hour)`
	if err := o.conn.Exec(ctx, ddl); err != nil {
		return errors.Wrapf(err, "create %s", o.table())
	}
	log.Printf("Table %s ready (ClickHouse)", o.table())
	return nil
}

func (o *Offline) table() string {
	return o.db + "." + offlineTable
}

// InsertBatch appends one batch of points for the group. Returns the number
// of rows sent.
func (o *Offline) InsertBatch(ctx context.Context, fg FeatureGroup, points []tsdata.Point) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	// PrepareBatch expects "INSERT INTO table"; Append adds rows in table column order.
	batch, err := o.conn.PrepareBatch(ctx, "INSERT INTO "+o.table())
	if err != nil {
		return 0, err
	}
	for _, p := range points {
		err := batch.Append(
			fg.Name,
			uint16(fg.Version),
			p.PickupHour,
			uint16(p.LocationID),
			uint32(p.Rides),
			now,
		)
		if err != nil {
			batch.Abort()
			return 0, err
		}
	}
	if err := batch.Send(); err != nil {
		return 0, err
	}
	return len(points), nil
}

// CountRows returns the number of distinct series cells stored for the
// group inside w (FINAL collapses replaced versions).
func (o *Offline) CountRows(ctx context.Context, fg FeatureGroup, w window.Window) (int, error) {
	row := o.conn.QueryRow(ctx,
		`SELECT count() FROM `+o.table()+` FINAL
		 WHERE feature_group = $1 AND feature_group_version = $2
		   AND pickup_hour >= $3 AND pickup_hour < $4`,
		fg.Name, uint16(fg.Version), w.From, w.To)
	var n uint64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Series reads the stored grid for the group inside w, ordered by location
// then hour, the same order the pipeline writes.
func (o *Offline) Series(ctx context.Context, fg FeatureGroup, w window.Window) ([]tsdata.Point, error) {
	rows, err := o.conn.Query(ctx,
		`SELECT pickup_hour, pickup_location_id, rides FROM `+o.table()+` FINAL
		 WHERE feature_group = $1 AND feature_group_version = $2
		   AND pickup_hour >= $3 AND pickup_hour < $4
		 ORDER BY pickup_location_id, pickup_hour`,
		fg.Name, uint16(fg.Version), w.From, w.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tsdata.Point
	for rows.Next() {
		var (
			hour  time.Time
			loc   uint16
			rides uint32
		)
		if err := rows.Scan(&hour, &loc, &rides); err != nil {
			return nil, err
		}
		out = append(out, tsdata.Point{
			PickupHour: hour.UTC(),
			LocationID: int(loc),
			Rides:      int(rides),
		})
	}
	return out, rows.Err()
}
