package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/and161185/kodeverk-admin/internal/errs"
	"github.com/and161185/kodeverk-admin/internal/model"
)

type fakeExternal struct {
	codes []string
	err   error
}

func (f fakeExternal) Enabled() bool { return true }
func (f fakeExternal) Fetch(context.Context) ([]string, error) {
	return f.codes, f.err
}

func TestConsistency_DefaultsAndWarnings(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.WarnLevel)
	s := NewConsistencyService(newDocs(t), fakeExternal{codes: []string{"DAGSATS_AVRUNDING", "EKSTERN"}}, zap.New(core), nil)

	r, err := s.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(r.UnusedConditionCodes) != 2 || len(r.UnknownUICodes) != 0 {
		t.Fatalf("unexpected report: %+v", r)
	}
	if r.ExternalRuleCodes == nil || len(r.ExternalRuleCodes.MissingLocally) != 1 {
		t.Fatalf("external gaps: %+v", r.ExternalRuleCodes)
	}
	if n := logs.FilterMessage("outcome code not used in ui tree").Len(); n != 2 {
		t.Fatalf("want 2 warnings, got %d", n)
	}
}

func TestConsistency_ExternalFailureIsReported(t *testing.T) {
	t.Parallel()
	s := NewConsistencyService(newDocs(t), fakeExternal{err: errors.New("feed down")}, nil, nil)

	r, err := s.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if r.ExternalRuleCodes != nil || r.ExternalError == "" {
		t.Fatalf("want external error in report, got %+v", r)
	}
}

func TestConsistency_DuplicateOutcomeCodes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	docs := newDocs(t)

	k := model.DefaultKodeverk()
	k[1].Oppfylt[0].Kode = "SAMME_KODE"
	k[0].Oppfylt[0].Kode = "SAMME_KODE"
	if _, err := docs.Save(ctx, model.KindKodeverk, mustJSON(t, k), "", "A"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	r, err := NewConsistencyService(docs, nil, nil, nil).Check(ctx)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if fs := r.DuplicateOutcomeCodes["SAMME_KODE"]; len(fs) != 2 || fs[0].Vilkarskode == fs[1].Vilkarskode {
		t.Fatalf("duplicates: %+v", r.DuplicateOutcomeCodes)
	}
	if r.ExternalRuleCodes != nil {
		t.Fatalf("no external source configured")
	}
}

func TestConsistency_StorageFailure(t *testing.T) {
	t.Parallel()
	s := NewConsistencyService(NewDocumentService(failingRepo{err: errs.ErrStorageUnavailable}, nil, nil), nil, nil, nil)
	if _, err := s.Check(context.Background()); !errors.Is(err, errs.ErrStorageUnavailable) {
		t.Fatalf("want storage error, got %v", err)
	}
}
