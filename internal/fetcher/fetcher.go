// Package fetcher mirrors the published index from object storage into a
// local directory.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"resume-rag/internal/models"
)

// Object is one entry of a bucket listing.
type Object struct {
	Key string
	// Size is the listed length in bytes, 0 when the store does not report it.
	Size int64
}

// ObjectStore is the read side of a bucket.
type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]Object, error)
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Report summarizes one Fetch.
type Report struct {
	Files   []string
	Skipped int
	Bytes   int64
}

// Fetch downloads every object under prefix into destDir, named by the last
// segment of its key. Directory markers (keys ending in "/") are skipped.
// Existing files are replaced atomically, so running it twice leaves the same
// bytes on disk. The first failure aborts the fetch.
func Fetch(ctx context.Context, store ObjectStore, bucket, prefix, destDir string) (Report, error) {
	var report Report
	start := time.Now()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return report, fmt.Errorf("%w: failed to create %s: %w", models.ErrStorageUnavailable, destDir, err)
	}

	objects, err := store.List(ctx, bucket, prefix)
	if err != nil {
		return report, fmt.Errorf("%w: failed to list gs://%s/%s: %w", models.ErrStorageUnavailable, bucket, prefix, err)
	}

	for _, obj := range objects {
		if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
			report.Skipped++
			continue
		}

		dest := filepath.Join(destDir, path.Base(obj.Key))
		n, err := download(ctx, store, bucket, obj, dest)
		if err != nil {
			return report, fmt.Errorf("%w: gs://%s/%s: %w", models.ErrStorageUnavailable, bucket, obj.Key, err)
		}
		log.Debug().Str("key", obj.Key).Str("file", dest).Int64("bytes", n).Msg("Downloaded object")

		report.Files = append(report.Files, dest)
		report.Bytes += n
	}

	if len(report.Files) == 0 {
		log.Warn().Str("bucket", bucket).Str("prefix", prefix).Msg("No objects found under prefix")
	}
	log.Info().
		Str("bucket", bucket).
		Str("prefix", prefix).
		Str("dir", destDir).
		Int("files", len(report.Files)).
		Int("skipped", report.Skipped).
		Int64("bytes", report.Bytes).
		Dur("took", time.Since(start)).
		Msg("Fetched index")
	return report, nil
}

// download writes the object to a temp file next to dest and renames it into
// place. A body shorter or longer than the listed size never reaches dest.
func download(ctx context.Context, store ObjectStore, bucket string, obj Object, dest string) (int64, error) {
	r, err := store.Open(ctx, bucket, obj.Key)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, err
	}
	if obj.Size > 0 && n != obj.Size {
		return n, fmt.Errorf("downloaded %d of %d bytes", n, obj.Size)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return n, err
	}
	return n, nil
}
