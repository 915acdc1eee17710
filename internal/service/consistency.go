package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/kodeverk-admin/internal/consistency"
	"github.com/and161185/kodeverk-admin/internal/metrics"
	"github.com/and161185/kodeverk-admin/internal/model"
)

// ExternalCodeSource supplies the external rule-code list.
type ExternalCodeSource interface {
	Enabled() bool
	Fetch(ctx context.Context) ([]string, error)
}

// ConsistencyService runs the advisory cross-reference checks over the
// current documents.
type ConsistencyService struct {
	docs     DocumentService
	external ExternalCodeSource
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewConsistencyService constructs ConsistencyService; external, log and m may be nil.
func NewConsistencyService(docs DocumentService, external ExternalCodeSource, log *zap.Logger, m *metrics.Metrics) *ConsistencyService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConsistencyService{docs: docs, external: external, log: log, metrics: m}
}

// Check fetches the three documents and the external list concurrently and
// returns the findings. Only document reads can fail the check; a failing
// external feed is reported inside the report.
func (s *ConsistencyService) Check(ctx context.Context) (consistency.Report, error) {
	var in consistency.Input
	var externalErr error

	g, gctx := errgroup.WithContext(ctx)
	bodies := map[model.DocumentKind]*[]byte{
		model.KindKodeverk:            &in.Kodeverk,
		model.KindBeregningsregelverk: &in.Beregningsregelverk,
		model.KindSaksbehandlerUI:     &in.SaksbehandlerUI,
	}
	for kind, dst := range bodies {
		kind, dst := kind, dst
		g.Go(func() error {
			doc, err := s.docs.Get(gctx, kind)
			if err != nil {
				return err
			}
			*dst = doc.Body
			return nil
		})
	}
	if s.external != nil && s.external.Enabled() {
		g.Go(func() error {
			codes, err := s.external.Fetch(gctx)
			if err != nil {
				externalErr = err
				return nil
			}
			in.External = codes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return consistency.Report{}, err
	}

	r := consistency.Check(in)
	if externalErr != nil {
		r.ExternalError = externalErr.Error()
		s.log.Warn("external rule codes unavailable", zap.Error(externalErr))
	}
	s.report(r)
	return r, nil
}

// report logs every finding as a warning and updates the gauges.
func (s *ConsistencyService) report(r consistency.Report) {
	for _, loc := range r.UnknownUICodes {
		s.log.Warn("ui code has no matching outcome code", zap.String("kode", loc.Kode), zap.Strings("sti", loc.Path))
	}
	for _, kode := range r.UnusedConditionCodes {
		s.log.Warn("outcome code not used in ui tree", zap.String("kode", kode))
	}
	for kode, fs := range r.DuplicateOutcomeCodes {
		s.log.Warn("duplicate outcome code", zap.String("kode", kode), zap.Int("forekomster", len(fs)))
	}
	s.metrics.SetFindings("unknown_ui_codes", len(r.UnknownUICodes))
	s.metrics.SetFindings("unused_condition_codes", len(r.UnusedConditionCodes))
	s.metrics.SetFindings("duplicate_outcome_codes", len(r.DuplicateOutcomeCodes))
	if g := r.ExternalRuleCodes; g != nil {
		if len(g.MissingLocally) > 0 || len(g.UnknownExternally) > 0 {
			s.log.Warn("rule codes differ from external registry",
				zap.Strings("manglerLokalt", g.MissingLocally),
				zap.Strings("ukjentEksternt", g.UnknownExternally),
			)
		}
		s.metrics.SetFindings("external_missing_locally", len(g.MissingLocally))
		s.metrics.SetFindings("external_unknown_externally", len(g.UnknownExternally))
	}
}
