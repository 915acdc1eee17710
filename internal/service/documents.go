// Package service contains the application services behind the HTTP API.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/kodeverk-admin/internal/errs"
	"github.com/and161185/kodeverk-admin/internal/metrics"
	"github.com/and161185/kodeverk-admin/internal/model"
	"github.com/and161185/kodeverk-admin/internal/repository"
	"github.com/and161185/kodeverk-admin/internal/validate"
)

// DocumentService defines read and save operations over the versioned documents.
type DocumentService interface {
	// Get returns the current snapshot. When nothing has been saved it returns
	// the built-in default with an empty VersionID.
	Get(ctx context.Context, kind model.DocumentKind) (*model.VersionedDocument, error)
	// ListVersions returns snapshot metadata, oldest first.
	ListVersions(ctx context.Context, kind model.DocumentKind) ([]model.VersionInfo, error)
	// GetVersion returns one historic snapshot.
	GetVersion(ctx context.Context, kind model.DocumentKind, versionID string) (*model.VersionedDocument, error)
	// Save validates body and commits it as a new snapshot. A non-empty
	// expectedVersion must match the current snapshot or the save fails with
	// *errs.ConflictError.
	Save(ctx context.Context, kind model.DocumentKind, body []byte, expectedVersion, author string) (model.SaveResult, error)
}

type DocumentServiceImpl struct {
	repo    repository.VersionRepository
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewDocumentService constructs DocumentService; log and m may be nil.
func NewDocumentService(repo repository.VersionRepository, log *zap.Logger, m *metrics.Metrics) *DocumentServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentServiceImpl{repo: repo, log: log, metrics: m, now: time.Now}
}

// Get falls back to the default document on NotFound.
func (s *DocumentServiceImpl) Get(ctx context.Context, kind model.DocumentKind) (*model.VersionedDocument, error) {
	doc, err := s.repo.GetLatest(ctx, kind)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	body, err := model.DefaultBody(kind)
	if err != nil {
		return nil, fmt.Errorf("default %s: %w", kind, err)
	}
	return &model.VersionedDocument{VersionInfo: model.VersionInfo{Kind: kind}, Body: body}, nil
}

func (s *DocumentServiceImpl) ListVersions(ctx context.Context, kind model.DocumentKind) ([]model.VersionInfo, error) {
	return s.repo.ListVersions(ctx, kind)
}

func (s *DocumentServiceImpl) GetVersion(ctx context.Context, kind model.DocumentKind, versionID string) (*model.VersionedDocument, error) {
	if versionID == "" {
		return nil, fmt.Errorf("empty version id: %w", errs.ErrNotFound)
	}
	return s.repo.GetVersion(ctx, kind, versionID)
}

// Save runs validation, the optional conflict check, editor stamping and commit.
func (s *DocumentServiceImpl) Save(ctx context.Context, kind model.DocumentKind, body []byte, expectedVersion, author string) (model.SaveResult, error) {
	res, err := s.save(ctx, kind, body, expectedVersion, author)
	s.metrics.IncSave(string(kind), saveResult(err))
	return res, err
}

func (s *DocumentServiceImpl) save(ctx context.Context, kind model.DocumentKind, body []byte, expectedVersion, author string) (model.SaveResult, error) {
	doc, err := validate.Document(kind, body)
	if err != nil {
		return model.SaveResult{}, err
	}
	if author == "" {
		author = model.UnknownAuthor
	}

	if expectedVersion != "" {
		cur, err := s.repo.LatestInfo(ctx, kind)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			// first write; nothing to conflict with
		case err != nil:
			return model.SaveResult{}, err
		case cur.VersionID != expectedVersion:
			s.log.Info("save rejected: version conflict",
				zap.String("kind", string(kind)),
				zap.String("expected", expectedVersion),
				zap.String("current", cur.VersionID),
				zap.String("author", author),
			)
			return model.SaveResult{}, &errs.ConflictError{
				Kind:            string(kind),
				ExpectedVersion: expectedVersion,
				CurrentVersion:  cur.VersionID,
				LastModifiedBy:  cur.CreatedBy,
				LastModifiedAt:  cur.CreatedAt,
			}
		}
	}

	out, stamped, err := s.stamp(ctx, kind, doc, body, author)
	if err != nil {
		return model.SaveResult{}, err
	}

	info, err := s.repo.Save(ctx, kind, out, author)
	if err != nil {
		return model.SaveResult{}, err
	}
	s.log.Info("document saved",
		zap.String("kind", string(kind)),
		zap.String("versionId", info.VersionID),
		zap.String("author", info.CreatedBy),
		zap.Int("stamped", stamped),
	)
	return model.SaveResult{VersionInfo: info, Stamped: stamped}, nil
}

// stamp sets sistEndretAv/sistEndretDato on entries whose content differs from
// the current document and restores the previous values on unchanged ones.
// When no entry needs touching the request bytes are returned untouched.
func (s *DocumentServiceImpl) stamp(ctx context.Context, kind model.DocumentKind, doc any, raw []byte, author string) (json.RawMessage, int, error) {
	switch d := doc.(type) {
	case model.Kodeverk:
		base, err := s.current(ctx, kind)
		if err != nil {
			return nil, 0, err
		}
		old := make(map[string]model.Vilkar)
		for _, v := range decodeOrZero[model.Kodeverk](base) {
			old[v.Vilkarskode] = v
		}
		stamped, touched := 0, false
		for i := range d {
			prev, ok := old[d[i].Vilkarskode]
			av, dato := d[i].SistEndretAv, d[i].SistEndretDato
			if ok && sameVilkar(prev, d[i]) {
				d[i].SistEndretAv, d[i].SistEndretDato = prev.SistEndretAv, prev.SistEndretDato
			} else {
				d[i].SistEndretAv, d[i].SistEndretDato = author, s.stampDate()
				stamped++
			}
			touched = touched || av != d[i].SistEndretAv || dato != d[i].SistEndretDato
		}
		return encodeIfTouched(d, raw, touched, stamped)
	case model.Beregningsregelverk:
		base, err := s.current(ctx, kind)
		if err != nil {
			return nil, 0, err
		}
		old := make(map[string]model.Beregningsregel)
		for _, r := range decodeOrZero[model.Beregningsregelverk](base) {
			old[r.Kode] = r
		}
		stamped, touched := 0, false
		for i := range d {
			prev, ok := old[d[i].Kode]
			av, dato := d[i].SistEndretAv, d[i].SistEndretDato
			if ok && sameRegel(prev, d[i]) {
				d[i].SistEndretAv, d[i].SistEndretDato = prev.SistEndretAv, prev.SistEndretDato
			} else {
				d[i].SistEndretAv, d[i].SistEndretDato = author, s.stampDate()
				stamped++
			}
			touched = touched || av != d[i].SistEndretAv || dato != d[i].SistEndretDato
		}
		return encodeIfTouched(d, raw, touched, stamped)
	default:
		return raw, 0, nil
	}
}

func (s *DocumentServiceImpl) current(ctx context.Context, kind model.DocumentKind) (json.RawMessage, error) {
	doc, err := s.Get(ctx, kind)
	if err != nil {
		return nil, err
	}
	return doc.Body, nil
}

func (s *DocumentServiceImpl) stampDate() string {
	return s.now().UTC().Format(time.RFC3339)
}

func encodeIfTouched(v any, raw []byte, touched bool, stamped int) (json.RawMessage, int, error) {
	if !touched {
		return raw, stamped, nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, 0, fmt.Errorf("encode stamped document: %w", err)
	}
	return out, stamped, nil
}

func decodeOrZero[T any](raw []byte) T {
	v, err := model.Decode[T](raw)
	if err != nil {
		var zero T
		return zero
	}
	return v
}

func sameVilkar(a, b model.Vilkar) bool {
	a.SistEndretAv, a.SistEndretDato = "", ""
	b.SistEndretAv, b.SistEndretDato = "", ""
	if len(a.Oppfylt) == 0 && len(b.Oppfylt) == 0 {
		a.Oppfylt, b.Oppfylt = nil, nil
	}
	if len(a.IkkeOppfylt) == 0 && len(b.IkkeOppfylt) == 0 {
		a.IkkeOppfylt, b.IkkeOppfylt = nil, nil
	}
	return reflect.DeepEqual(a, b)
}

func sameRegel(a, b model.Beregningsregel) bool {
	a.SistEndretAv, a.SistEndretDato = "", ""
	b.SistEndretAv, b.SistEndretDato = "", ""
	return a == b
}

func saveResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, errs.ErrVersionConflict):
		return metrics.ResultConflict
	case errors.Is(err, errs.ErrValidation):
		return metrics.ResultInvalid
	default:
		return metrics.ResultError
	}
}
