package featurestore

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/tsdata"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/window"
)

const registrySchemaSQL = `
CREATE TABLE IF NOT EXISTS feature_groups (
    name              TEXT NOT NULL,
    version           INT  NOT NULL,
    description       TEXT NOT NULL DEFAULT '',
    entity_keys       TEXT NOT NULL DEFAULT '',
    event_time_column TEXT NOT NULL DEFAULT '',
    online            BOOLEAN NOT NULL DEFAULT false,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (name, version)
);
CREATE TABLE IF NOT EXISTS materializations (
    run_id                UUID PRIMARY KEY,
    feature_group         TEXT NOT NULL,
    feature_group_version INT  NOT NULL,
    window_from           TIMESTAMPTZ NOT NULL,
    window_to             TIMESTAMPTZ NOT NULL,
    rows_written          BIGINT NOT NULL DEFAULT 0,
    status                TEXT NOT NULL,
    error                 TEXT NOT NULL DEFAULT '',
    started_at            TIMESTAMPTZ NOT NULL,
    finished_at           TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_materializations_group
    ON materializations(feature_group, feature_group_version, started_at DESC);
CREATE TABLE IF NOT EXISTS demand_latest (
    feature_group         TEXT NOT NULL,
    feature_group_version INT  NOT NULL,
    pickup_location_id    INT  NOT NULL,
    pickup_hour           TIMESTAMPTZ NOT NULL,
    rides                 BIGINT NOT NULL,
    updated_at            TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (feature_group, feature_group_version, pickup_location_id)
);
`

// Online is the Postgres side of the store: the serving table with the
// newest demand per location, and the registry tracking feature groups and
// materialization runs.
type Online struct {
	pool *pgxpool.Pool
}

// OpenOnline creates and pings a pgx pool.
func OpenOnline(ctx context.Context, dsn string) (*Online, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "postgres dsn")
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "postgres connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres ping")
	}
	return &Online{pool: pool}, nil
}

// Close releases the pool.
func (o *Online) Close() {
	o.pool.Close()
}

// EnsureSchema creates the registry and serving tables.
func (o *Online) EnsureSchema(ctx context.Context) error {
	if _, err := o.pool.Exec(ctx, registrySchemaSQL); err != nil {
		return errors.Wrap(err, "create registry tables")
	}
	log.Println("Registry and serving tables ready (PostgreSQL)")
	return nil
}

// RegisterGroup upserts the feature group definition.
func (o *Online) RegisterGroup(ctx context.Context, fg FeatureGroup) error {
	_, err := o.pool.Exec(ctx,
		`INSERT INTO feature_groups (name, version, description, entity_keys, event_time_column, online)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name, version) DO UPDATE SET
		     description = EXCLUDED.description,
		     entity_keys = EXCLUDED.entity_keys,
		     event_time_column = EXCLUDED.event_time_column,
		     online = EXCLUDED.online`,
		fg.Name, fg.Version, fg.Description, strings.Join(fg.Keys, ","), fg.EventTimeColumn, fg.Online)
	return errors.Wrapf(err, "register %s v%d", fg.Name, fg.Version)
}

// StartMaterialization records a new running run and returns its ID.
func (o *Online) StartMaterialization(ctx context.Context, fg FeatureGroup, w window.Window) (uuid.UUID, error) {
	runID := uuid.New()
	_, err := o.pool.Exec(ctx,
		`INSERT INTO materializations
		 (run_id, feature_group, feature_group_version, window_from, window_to, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		runID, fg.Name, fg.Version, w.From, w.To, StatusRunning, time.Now().UTC())
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "start materialization")
	}
	return runID, nil
}

// FinishMaterialization marks the run completed, or failed when runErr is
// set.
func (o *Online) FinishMaterialization(ctx context.Context, runID uuid.UUID, rows int, runErr error) error {
	status := StatusCompleted
	errText := ""
	if runErr != nil {
		status = StatusFailed
		errText = runErr.Error()
	}
	_, err := o.pool.Exec(ctx,
		`UPDATE materializations
		 SET status = $2, rows_written = $3, error = $4, finished_at = $5
		 WHERE run_id = $1`,
		runID, status, rows, errText, time.Now().UTC())
	return errors.Wrap(err, "finish materialization")
}

// Materializations lists the most recent runs for a group, newest first.
func (o *Online) Materializations(ctx context.Context, fg FeatureGroup, limit int) ([]Materialization, error) {
	rows, err := o.pool.Query(ctx,
		`SELECT run_id, window_from, window_to, rows_written, status, error, started_at, COALESCE(finished_at, 'epoch'::timestamptz)
		 FROM materializations
		 WHERE feature_group = $1 AND feature_group_version = $2
		 ORDER BY started_at DESC
		 LIMIT $3`,
		fg.Name, fg.Version, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list materializations")
	}
	defer rows.Close()

	var out []Materialization
	for rows.Next() {
		m := Materialization{Group: fg}
		var from, to time.Time
		if err := rows.Scan(&m.RunID, &from, &to, &m.Rows, &m.Status, &m.Error, &m.StartedAt, &m.FinishedAt); err != nil {
			return nil, errors.Wrap(err, "scan materialization")
		}
		m.Window = window.Window{From: from.UTC(), To: to.UTC()}
		m.StartedAt = m.StartedAt.UTC()
		m.FinishedAt = m.FinishedAt.UTC()
		out = append(out, m)
	}
	return out, errors.Wrap(rows.Err(), "list materializations")
}

// UpsertLatest writes the newest point per location to the serving table.
// A stored row is only replaced by a newer or equal pickup hour, so a late
// backfill can never roll serving data backwards.
func (o *Online) UpsertLatest(ctx context.Context, fg FeatureGroup, points []tsdata.Point) (int, error) {
	latest := Latest(points)
	if len(latest) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()

	placeholders := ""
	args := make([]interface{}, 0, len(latest)*6)
	idx := 1
	for i, p := range latest {
		if i > 0 {
			placeholders += ", "
		}
		ph := "("
		for j := 0; j < 6; j++ {
			if j > 0 {
				ph += ", "
			}
			ph += "$" + strconv.Itoa(idx)
			idx++
		}
		ph += ")"
		placeholders += ph
		args = append(args, fg.Name, fg.Version, p.LocationID, p.PickupHour, p.Rides, now)
	}

	sql := `INSERT INTO demand_latest
		(feature_group, feature_group_version, pickup_location_id, pickup_hour, rides, updated_at)
		VALUES ` + placeholders + `
		ON CONFLICT (feature_group, feature_group_version, pickup_location_id) DO UPDATE SET
			pickup_hour = EXCLUDED.pickup_hour,
			rides = EXCLUDED.rides,
			updated_at = EXCLUDED.updated_at
		WHERE demand_latest.pickup_hour <= EXCLUDED.pickup_hour`
	if _, err := o.pool.Exec(ctx, sql, args...); err != nil {
		return 0, errors.Wrap(err, "upsert latest demand")
	}
	return len(latest), nil
}

// LatestDemand reads the serving table for a group, ascending by location.
func (o *Online) LatestDemand(ctx context.Context, fg FeatureGroup) ([]tsdata.Point, error) {
	rows, err := o.pool.Query(ctx,
		`SELECT pickup_location_id, pickup_hour, rides FROM demand_latest
		 WHERE feature_group = $1 AND feature_group_version = $2
		 ORDER BY pickup_location_id`,
		fg.Name, fg.Version)
	if err != nil {
		return nil, errors.Wrap(err, "read latest demand")
	}
	defer rows.Close()

	var out []tsdata.Point
	for rows.Next() {
		var p tsdata.Point
		if err := rows.Scan(&p.LocationID, &p.PickupHour, &p.Rides); err != nil {
			return nil, errors.Wrap(err, "scan latest demand")
		}
		p.PickupHour = p.PickupHour.UTC()
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "read latest demand")
}
