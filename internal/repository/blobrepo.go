// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/kodeverk-admin/internal/model"
)

// BlobStore is an append-only object store. Implementations never overwrite
// an existing name; Put on an existing name returns errs.ErrAlreadyExists.
type BlobStore interface {
	// List returns all objects whose name starts with prefix, without bodies.
	List(ctx context.Context, prefix string) ([]model.ObjectInfo, error)
	// Get returns the object body or errs.ErrNotFound.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put stores a new object with content type and user metadata.
	Put(ctx context.Context, name string, data []byte, contentType string, meta map[string]string) error
}
