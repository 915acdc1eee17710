package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()
	m.IncSave("kodeverk", ResultOK)
	m.IncSave("kodeverk", ResultOK)
	m.IncSave("kodeverk", ResultConflict)
	m.SetFindings("duplicate_outcome_codes", 3)
	m.ObserveRequest("GET", "/api/dokumenter/:kind", "200", 0.01)

	require.Equal(t, 2.0, testutil.ToFloat64(m.saves.WithLabelValues("kodeverk", ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.saves.WithLabelValues("kodeverk", ResultConflict)))
	require.Equal(t, 3.0, testutil.ToFloat64(m.findings.WithLabelValues("duplicate_outcome_codes")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	require.Contains(t, string(body), "kodeverk_documents_saves_total")
	require.Contains(t, string(body), "kodeverk_http_request_duration_seconds_bucket")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.IncSave("kodeverk", ResultOK)
	m.SetFindings("x", 1)
	m.ObserveRequest("GET", "/", "200", 1)
}
