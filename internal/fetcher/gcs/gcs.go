// Package gcs reads index objects from Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/storage/v1"

	"resume-rag/internal/fetcher"
	"resume-rag/internal/models"
)

// Store implements fetcher.ObjectStore over the Cloud Storage JSON API.
type Store struct {
	svc *storage.Service
}

var _ fetcher.ObjectStore = (*Store)(nil)

// New authenticates with the service account key in credentialsJSON, or with
// application default credentials when it is empty.
func New(ctx context.Context, credentialsJSON string, opts ...option.ClientOption) (*Store, error) {
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	} else {
		log.Debug().Msg("No credentials JSON, using application default credentials")
	}
	opts = append(opts, option.WithScopes(storage.DevstorageReadOnlyScope))

	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create storage client: %w", models.ErrStorageUnavailable, err)
	}
	return &Store{svc: svc}, nil
}

func (s *Store) List(ctx context.Context, bucket, prefix string) ([]fetcher.Object, error) {
	var out []fetcher.Object
	err := s.svc.Objects.List(bucket).Prefix(prefix).Fields("nextPageToken", "items(name,size)").
		Pages(ctx, func(page *storage.Objects) error {
			for _, o := range page.Items {
				out = append(out, fetcher.Object{Key: o.Name, Size: int64(o.Size)})
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}
	return out, nil
}

func (s *Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	resp, err := s.svc.Objects.Get(bucket, key).Context(ctx).Download()
	if err != nil {
		return nil, wrapError(err)
	}
	return resp.Body, nil
}

// wrapError tags Google API errors with the matching taxonomy error.
func wrapError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return models.Classify(err)
	}
	switch gerr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", models.ErrUnauthorized, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", models.ErrIndexMissing, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", models.ErrRateLimited, err)
	default:
		return err
	}
}
