package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/kodeverk-admin/internal/config"
	"github.com/and161185/kodeverk-admin/internal/migrate"
	"github.com/and161185/kodeverk-admin/internal/repository"
	"github.com/and161185/kodeverk-admin/internal/repository/gcs"
	"github.com/and161185/kodeverk-admin/internal/repository/memory"
	"github.com/and161185/kodeverk-admin/internal/repository/postgres"
	"github.com/and161185/kodeverk-admin/internal/repository/s3"
)

// openBlobStore opens the configured backend. The returned close func is
// safe to call more than once.
func openBlobStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repository.BlobStore, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case config.BackendPostgres:
		if err := migrate.Up(ctx, cfg.Postgres.DSN, log); err != nil {
			return nil, noop, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, noop, err
		}
		return postgres.NewObjectRepo(db), once(db.Close), nil
	case config.BackendGCS:
		st, err := gcs.New(ctx, gcs.Config{
			Bucket:          cfg.GCS.Bucket,
			CredentialsFile: cfg.GCS.CredentialsFile,
			Endpoint:        cfg.GCS.Endpoint,
		})
		if err != nil {
			return nil, noop, err
		}
		return st, once(func() { _ = st.Close() }), nil
	case config.BackendS3:
		st, err := s3.New(ctx, s3.Config{Bucket: cfg.S3.Bucket, Region: cfg.S3.Region, Endpoint: cfg.S3.Endpoint})
		if err != nil {
			return nil, noop, err
		}
		return st, noop, nil
	default:
		log.Warn("no durable storage configured: using in-memory store, documents are lost on restart")
		return memory.New(), noop, nil
	}
}

func once(f func()) func() {
	done := false
	return func() {
		if !done {
			done = true
			f()
		}
	}
}
