package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/kodeverk-admin/internal/errs"
	"github.com/and161185/kodeverk-admin/internal/model"
	"github.com/and161185/kodeverk-admin/internal/repository"
)

// ObjectRepo implements repository.BlobStore on the document_objects table.
type ObjectRepo struct{ db *DB }

// NewObjectRepo constructs an object repository.
func NewObjectRepo(db *DB) *ObjectRepo { return &ObjectRepo{db: db} }

var _ repository.BlobStore = (*ObjectRepo)(nil)

// List returns objects whose name starts with prefix, ordered by name.
func (r *ObjectRepo) List(ctx context.Context, prefix string) ([]model.ObjectInfo, error) {
	const q = `
SELECT name, updated_at, metadata
FROM document_objects
WHERE starts_with(name, $1)
ORDER BY name ASC`
	rows, err := r.db.Pool.Query(ctx, q, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ObjectInfo
	for rows.Next() {
		var (
			name string
			ts   time.Time
			meta []byte
		)
		if err = rows.Scan(&name, &ts, &meta); err != nil {
			return nil, err
		}
		oi := model.ObjectInfo{Name: name, UpdatedAt: ts}
		if len(meta) > 0 {
			if err = json.Unmarshal(meta, &oi.Metadata); err != nil {
				return nil, fmt.Errorf("object %s: metadata: %w", name, err)
			}
		}
		out = append(out, oi)
	}
	return out, rows.Err()
}

// Get returns the body of a single object.
func (r *ObjectRepo) Get(ctx context.Context, name string) ([]byte, error) {
	const q = `SELECT body FROM document_objects WHERE name=$1`
	var body []byte
	if err := r.db.Pool.QueryRow(ctx, q, name).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return body, nil
}

// Put inserts a new object row. Rows are never updated.
func (r *ObjectRepo) Put(ctx context.Context, name string, data []byte, contentType string, meta map[string]string) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	const ins = `INSERT INTO document_objects (name, body, content_type, metadata) VALUES ($1,$2,$3,$4)`
	_, err = r.db.Pool.Exec(ctx, ins, name, data, contentType, metaJSON)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", name, errs.ErrAlreadyExists)
	}
	return err
}
