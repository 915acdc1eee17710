// Package gcs implements the blob store on Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/and161185/kodeverk-admin/internal/errs"
	"github.com/and161185/kodeverk-admin/internal/model"
	"github.com/and161185/kodeverk-admin/internal/repository"
)

// Config holds configuration for Store.
type Config struct {
	Bucket string
	// CredentialsFile is an optional service account key; ADC is used when empty.
	CredentialsFile string
	// Endpoint overrides the API endpoint (emulators).
	Endpoint string
}

// Store implements repository.BlobStore using a GCS bucket.
type Store struct {
	client *storage.Client
	bucket string
}

var _ repository.BlobStore = (*Store)(nil)

// New creates a GCS-backed blob store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs: bucket is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// List iterates all objects under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]model.ObjectInfo, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var out []model.ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list %s: %w", prefix, err)
		}
		out = append(out, model.ObjectInfo{Name: attrs.Name, UpdatedAt: attrs.Updated, Metadata: attrs.Metadata})
	}
	return out, nil
}

// Get downloads an object body.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", name, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("gcs get failed for %s: %w", name, err)
	}
	defer func() { _ = reader.Close() }()

	return io.ReadAll(reader)
}

// Put uploads a new object; the DoesNotExist precondition keeps snapshots immutable.
func (s *Store) Put(ctx context.Context, name string, data []byte, contentType string, meta map[string]string) error {
	obj := s.client.Bucket(s.bucket).Object(name).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache, no-store, must-revalidate"
	w.Metadata = meta

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return mapWriteError(name, err)
	}
	return nil
}

// Close closes the GCS client.
func (s *Store) Close() error {
	return s.client.Close()
}

func mapWriteError(name string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return fmt.Errorf("%s: %w", name, errs.ErrAlreadyExists)
	}
	return fmt.Errorf("gcs close failed: %w", err)
}
