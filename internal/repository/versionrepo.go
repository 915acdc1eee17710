package repository

import (
	"context"
	"encoding/json"

	"github.com/and161185/kodeverk-admin/internal/model"
)

// VersionRepository provides versioned access to the three documents.
type VersionRepository interface {
	// ListVersions returns snapshot metadata ordered oldest to newest.
	ListVersions(ctx context.Context, kind model.DocumentKind) ([]model.VersionInfo, error)

	// LatestInfo resolves the current snapshot by listing the namespace.
	// Returns errs.ErrNotFound when no snapshot exists.
	LatestInfo(ctx context.Context, kind model.DocumentKind) (model.VersionInfo, error)

	// GetLatest returns the current snapshot with body; it may be served via a latest-pointer cache.
	GetLatest(ctx context.Context, kind model.DocumentKind) (*model.VersionedDocument, error)

	// GetVersion returns one historic snapshot.
	GetVersion(ctx context.Context, kind model.DocumentKind, versionID string) (*model.VersionedDocument, error)

	// Save always creates a new snapshot.
	Save(ctx context.Context, kind model.DocumentKind, body json.RawMessage, author string) (model.VersionInfo, error)
}

// LatestCache remembers the newest snapshot per kind so reads can skip listing.
// Pointers are only filled from listings, so they are ordered by the backend's
// own timestamps; commits invalidate instead of writing a pointer.
type LatestCache interface {
	// GetLatest returns the cached pointer; ok is false on a miss.
	GetLatest(ctx context.Context, kind model.DocumentKind) (info model.VersionInfo, ok bool, err error)
	// Generation returns the invalidation counter for kind. Read it before
	// listing and pass it to SetLatest.
	Generation(ctx context.Context, kind model.DocumentKind) (int64, error)
	// SetLatest stores info unless kind was invalidated after gen was read or
	// a pointer that sorts later is already stored.
	SetLatest(ctx context.Context, info model.VersionInfo, gen int64) error
	// InvalidateLatest drops the pointer and bumps the generation.
	InvalidateLatest(ctx context.Context, kind model.DocumentKind) error
}
