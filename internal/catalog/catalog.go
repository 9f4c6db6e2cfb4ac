// Package catalog tracks raw monthly files already fetched to local disk,
// so repeated runs reuse downloads instead of hitting the upstream mirror.
package catalog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/window"
)

const schema = `
CREATE TABLE IF NOT EXISTS raw_files (
	dataset    TEXT    NOT NULL,
	month      TEXT    NOT NULL,
	path       TEXT    NOT NULL,
	size_bytes INTEGER NOT NULL,
	sha256     TEXT    NOT NULL DEFAULT '',
	fetched_at INTEGER NOT NULL,
	PRIMARY KEY (dataset, month)
);`

// Entry is one cataloged raw file. SHA256 is empty for files adopted from
// disk rather than downloaded.
type Entry struct {
	Dataset   string
	Month     window.Month
	Path      string
	SizeBytes int64
	SHA256    string
	FetchedAt time.Time
}

// Catalog is a local SQLite ledger of raw files.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog database at path.
func Open(path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "catalog: create directory")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "catalog: open")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "catalog: ensure schema")
	}
	return &Catalog{db: db}, nil
}

// Close releases the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Lookup returns the entry for a dataset month, if one was recorded.
func (c *Catalog) Lookup(ctx context.Context, dataset string, m window.Month) (Entry, bool, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT path, size_bytes, sha256, fetched_at FROM raw_files WHERE dataset = ? AND month = ?`,
		dataset, m.Key())

	e := Entry{Dataset: dataset, Month: m}
	var fetchedAt int64
	switch err := row.Scan(&e.Path, &e.SizeBytes, &e.SHA256, &fetchedAt); err {
	case nil:
		e.FetchedAt = time.Unix(fetchedAt, 0).UTC()
		return e, true, nil
	case sql.ErrNoRows:
		return Entry{}, false, nil
	default:
		return Entry{}, false, errors.Wrap(err, "catalog: lookup")
	}
}

// Record upserts an entry after a successful fetch.
func (c *Catalog) Record(ctx context.Context, e Entry) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO raw_files (dataset, month, path, size_bytes, sha256, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (dataset, month) DO UPDATE SET
			path = excluded.path,
			size_bytes = excluded.size_bytes,
			sha256 = excluded.sha256,
			fetched_at = excluded.fetched_at`,
		e.Dataset, e.Month.Key(), e.Path, e.SizeBytes, e.SHA256, e.FetchedAt.Unix())
	return errors.Wrap(err, "catalog: record")
}

// Entries lists every recorded file for a dataset, oldest month first.
func (c *Catalog) Entries(ctx context.Context, dataset string) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT month, path, size_bytes, sha256, fetched_at FROM raw_files WHERE dataset = ? ORDER BY month`,
		dataset)
	if err != nil {
		return nil, errors.Wrap(err, "catalog: list")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e := Entry{Dataset: dataset}
		var monthKey string
		var fetchedAt int64
		if err := rows.Scan(&monthKey, &e.Path, &e.SizeBytes, &e.SHA256, &fetchedAt); err != nil {
			return nil, errors.Wrap(err, "catalog: scan")
		}
		start, err := time.Parse("2006-01", monthKey)
		if err != nil {
			return nil, errors.Wrapf(err, "catalog: month key %q", monthKey)
		}
		e.Month = window.MonthOf(start)
		e.FetchedAt = time.Unix(fetchedAt, 0).UTC()
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "catalog: list")
}
