// Package tlc loads NYC TLC yellow-taxi trip records: it fetches the
// published monthly parquet files, caches them on local disk, and decodes
// them into trips.
package tlc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/catalog"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/window"
)

// Dataset is the catalog dataset name for yellow-taxi files.
const Dataset = "yellow"

// ErrMonthUnavailable means the upstream mirror has no file for the month,
// usually because it has not been published yet.
var ErrMonthUnavailable = errors.New("tlc: month not published upstream")

const (
	maxRetries     = 3
	initialBackoff = time.Second
)

// FileName is the published name of a month's trip file.
func FileName(m window.Month) string {
	return fmt.Sprintf("yellow_tripdata_%s.parquet", m.Key())
}

// Fetcher downloads monthly trip files into DataDir, recording them in the
// catalog when one is attached. Files already on disk are not re-fetched.
type Fetcher struct {
	BaseURL string
	DataDir string
	Client  *http.Client
	Catalog *catalog.Catalog
}

// Fetch ensures the month's file is on local disk and returns its path.
func (f *Fetcher) Fetch(ctx context.Context, m window.Month) (string, error) {
	name := FileName(m)
	localPath := filepath.Join(f.DataDir, name)

	if f.Catalog != nil {
		e, ok, err := f.Catalog.Lookup(ctx, Dataset, m)
		if err != nil {
			return "", err
		}
		if ok {
			if st, statErr := os.Stat(e.Path); statErr == nil && st.Size() == e.SizeBytes {
				return e.Path, nil
			}
		}
	}

	// A file dropped in manually still counts; catalog it and move on.
	if st, err := os.Stat(localPath); err == nil && st.Size() > 0 {
		if err := f.record(ctx, m, localPath, st.Size(), ""); err != nil {
			return "", err
		}
		return localPath, nil
	}

	if err := os.MkdirAll(f.DataDir, 0o755); err != nil {
		return "", errors.Wrap(err, "tlc: create data dir")
	}

	fileURL := strings.TrimRight(f.BaseURL, "/") + "/" + name
	size, sum, err := f.download(ctx, fileURL, localPath)
	if err != nil {
		return "", errors.Wrapf(err, "tlc: fetch %s", name)
	}
	if err := f.record(ctx, m, localPath, size, sum); err != nil {
		return "", err
	}
	return localPath, nil
}

func (f *Fetcher) record(ctx context.Context, m window.Month, path string, size int64, sum string) error {
	if f.Catalog == nil {
		return nil
	}
	return f.Catalog.Record(ctx, catalog.Entry{
		Dataset:   Dataset,
		Month:     m,
		Path:      path,
		SizeBytes: size,
		SHA256:    sum,
		FetchedAt: time.Now().UTC(),
	})
}

func (f *Fetcher) download(ctx context.Context, fileURL, dest string) (int64, string, error) {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		size, sum, err := f.tryDownload(ctx, fileURL, dest)
		if err == nil {
			return size, sum, nil
		}
		lastErr = err
		if !retryable(err) {
			return 0, "", err
		}
	}
	return 0, "", errors.Wrapf(lastErr, "after %d attempts", maxRetries+1)
}

func (f *Fetcher) tryDownload(ctx context.Context, fileURL, dest string) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// ok
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		// CloudFront answers 403 for missing keys.
		return 0, "", ErrMonthUnavailable
	default:
		return 0, "", &statusError{code: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(f.DataDir, filepath.Base(dest)+".tmp-*")
	if err != nil {
		return 0, "", err
	}
	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, "", err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return 0, "", err
	}
	return size, hex.EncodeToString(hash.Sum(nil)), nil
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// retryable reports whether another attempt could succeed: rate limits,
// server errors, and network errors qualify.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	var ue *url.Error
	return errors.As(err, &ue)
}
