// Package versioned implements the document version store on top of an
// append-only blob backend.
package versioned

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/kodeverk-admin/internal/errs"
	"github.com/and161185/kodeverk-admin/internal/model"
	"github.com/and161185/kodeverk-admin/internal/repository"
)

const contentTypeJSON = "application/json"

// Store implements repository.VersionRepository.
type Store struct {
	blobs repository.BlobStore
	clock *Clock
	cache repository.LatestCache
	log   *zap.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithLatestCache serves GetLatest from a pointer cache when possible.
func WithLatestCache(c repository.LatestCache) Option { return func(s *Store) { s.cache = c } }

// WithClock replaces the version clock (tests).
func WithClock(c *Clock) Option { return func(s *Store) { s.clock = c } }

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = l } }

// New constructs a version store over blobs.
func New(blobs repository.BlobStore, opts ...Option) *Store {
	s := &Store{blobs: blobs, clock: NewClock(nil), log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ repository.VersionRepository = (*Store)(nil)

// ListVersions returns snapshot metadata ordered oldest to newest.
func (s *Store) ListVersions(ctx context.Context, kind model.DocumentKind) ([]model.VersionInfo, error) {
	objs, err := s.blobs.List(ctx, kind.Prefix())
	if err != nil {
		return nil, storageErr("list "+string(kind), err)
	}
	out := make([]model.VersionInfo, 0, len(objs))
	for _, o := range objs {
		info, ok := toVersionInfo(kind, o)
		if !ok {
			continue
		}
		if ms, ok := versionMillis(info.VersionID); ok {
			s.clock.Observe(ms)
		}
		out = append(out, info)
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}

// LatestInfo picks the entry with the greatest update timestamp, ties broken by version id.
func (s *Store) LatestInfo(ctx context.Context, kind model.DocumentKind) (model.VersionInfo, error) {
	versions, err := s.ListVersions(ctx, kind)
	if err != nil {
		return model.VersionInfo{}, err
	}
	if len(versions) == 0 {
		return model.VersionInfo{}, fmt.Errorf("%s: %w", kind, errs.ErrNotFound)
	}
	return versions[len(versions)-1], nil
}

// GetLatest returns the newest snapshot with its body.
func (s *Store) GetLatest(ctx context.Context, kind model.DocumentKind) (*model.VersionedDocument, error) {
	gen, cacheOK := int64(0), false
	if s.cache != nil {
		info, ok, err := s.cache.GetLatest(ctx, kind)
		switch {
		case err != nil:
			s.log.Warn("latest cache read failed", zap.String("kind", string(kind)), zap.Error(err))
		case ok:
			doc, err := s.fetch(ctx, info)
			if err == nil {
				return doc, nil
			}
			s.log.Warn("cached latest version unreadable, listing",
				zap.String("kind", string(kind)), zap.String("versionId", info.VersionID), zap.Error(err))
		}
		// read before listing so a commit during the listing wins
		if gen, err = s.cache.Generation(ctx, kind); err == nil {
			cacheOK = true
		} else {
			s.log.Warn("latest cache generation read failed", zap.String("kind", string(kind)), zap.Error(err))
		}
	}

	info, err := s.LatestInfo(ctx, kind)
	if err != nil {
		return nil, err
	}
	doc, err := s.fetch(ctx, info)
	if err != nil {
		return nil, err
	}
	if cacheOK {
		if err := s.cache.SetLatest(ctx, info, gen); err != nil {
			s.log.Warn("latest cache write failed", zap.String("versionId", info.VersionID), zap.Error(err))
		}
	}
	return doc, nil
}

// GetVersion returns one snapshot by id.
func (s *Store) GetVersion(ctx context.Context, kind model.DocumentKind, versionID string) (*model.VersionedDocument, error) {
	versions, err := s.ListVersions(ctx, kind)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if v.VersionID == versionID {
			return s.fetch(ctx, v)
		}
	}
	return nil, fmt.Errorf("%s/%s: %w", kind, versionID, errs.ErrNotFound)
}

// Save writes a new snapshot. It never overwrites an existing object.
func (s *Store) Save(ctx context.Context, kind model.DocumentKind, body json.RawMessage, author string) (model.VersionInfo, error) {
	if strings.TrimSpace(author) == "" {
		author = model.UnknownAuthor
	}
	id, err := NewVersionID(kind, s.clock.Next())
	if err != nil {
		return model.VersionInfo{}, err
	}
	info := model.VersionInfo{
		Kind:      kind,
		VersionID: id,
		CreatedBy: author,
		CreatedAt: s.clock.Now(),
	}
	info.UpdatedAt = info.CreatedAt
	meta := map[string]string{
		model.MetaCreatedBy: info.CreatedBy,
		model.MetaCreatedAt: info.CreatedAt.Format(time.RFC3339Nano),
	}
	if err := s.blobs.Put(ctx, kind.ObjectName(id), body, contentTypeJSON, meta); err != nil {
		return model.VersionInfo{}, storageErr("put "+id, err)
	}
	s.invalidate(ctx, kind)
	return info, nil
}

func (s *Store) fetch(ctx context.Context, info model.VersionInfo) (*model.VersionedDocument, error) {
	body, err := s.blobs.Get(ctx, info.Kind.ObjectName(info.VersionID))
	if err != nil {
		return nil, storageErr("get "+info.VersionID, err)
	}
	return &model.VersionedDocument{VersionInfo: info, Body: body}, nil
}

// invalidate drops the cached pointer after a commit. The next read lists,
// so the pointer is always ordered by backend timestamps.
func (s *Store) invalidate(ctx context.Context, kind model.DocumentKind) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateLatest(ctx, kind); err != nil {
		s.log.Warn("latest cache invalidation failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

// storageErr wraps backend failures as ErrStorageUnavailable, keeping
// not-found and already-exists distinguishable.
func storageErr(op string, err error) error {
	if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrAlreadyExists) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, errs.ErrStorageUnavailable, err)
}

func less(a, b model.VersionInfo) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	return a.VersionID < b.VersionID
}

func toVersionInfo(kind model.DocumentKind, o model.ObjectInfo) (model.VersionInfo, bool) {
	name := strings.TrimPrefix(o.Name, kind.Prefix())
	if name == o.Name || !strings.HasSuffix(name, ".json") || strings.Contains(name, "/") {
		return model.VersionInfo{}, false
	}
	info := model.VersionInfo{
		Kind:      kind,
		VersionID: strings.TrimSuffix(name, ".json"),
		CreatedBy: metaValue(o.Metadata, model.MetaCreatedBy),
		CreatedAt: o.UpdatedAt.UTC(),
		UpdatedAt: o.UpdatedAt.UTC(),
	}
	if info.CreatedBy == "" {
		info.CreatedBy = model.UnknownAuthor
	}
	if ts, err := time.Parse(time.RFC3339Nano, metaValue(o.Metadata, model.MetaCreatedAt)); err == nil {
		info.CreatedAt = ts.UTC()
	}
	return info, true
}

// metaValue looks a key up case-insensitively; S3 lower-cases user metadata keys.
func metaValue(m map[string]string, key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func versionMillis(id string) (int64, bool) {
	parts := strings.Split(id, "-")
	if len(parts) < 4 {
		return 0, false
	}
	ms, err := strconv.ParseInt(parts[len(parts)-2], 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}
