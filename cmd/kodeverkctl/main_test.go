package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/and161185/kodeverk-admin/internal/errs"
	"github.com/and161185/kodeverk-admin/internal/metrics"
	"github.com/and161185/kodeverk-admin/internal/model"
	"github.com/and161185/kodeverk-admin/internal/repository/memory"
	"github.com/and161185/kodeverk-admin/internal/repository/versioned"
	httpserver "github.com/and161185/kodeverk-admin/internal/server/http"
	"github.com/and161185/kodeverk-admin/internal/service"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("KODEVERK_TOKEN", "")
	t.Setenv("KODEVERK_JWT_KEY", "")
	return filepath.Join(dir, "kodeverkctl")
}

func newTestServer(t *testing.T, auth *service.Authenticator) *httptest.Server {
	t.Helper()
	log := zaptest.NewLogger(t)
	m := metrics.New()
	docs := service.NewDocumentService(versioned.New(memory.New()), log, m)
	checks := service.NewConsistencyService(docs, nil, log, m)
	var v httpserver.TokenVerifier
	if auth != nil {
		v = auth
	}
	srv := httptest.NewServer(httpserver.New(docs, checks, v, log, m).Router())
	t.Cleanup(srv.Close)
	return srv
}

// run executes the CLI and returns stdout, stderr and the error.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errb bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errb)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errb.String(), err
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

const uiBody = `[{"kategori":"A","underspørsmål":[]}]`

func Test_cfgDir_And_Paths(t *testing.T) {
	base := withTmpConfig(t)
	if got := cfgDir(); got != base {
		t.Fatalf("cfgDir=%q, want %q", got, base)
	}
	if !strings.HasPrefix(tokenPath(), base) || !strings.HasSuffix(tokenPath(), "token.json") {
		t.Fatalf("tokenPath unexpected: %s", tokenPath())
	}
	if !strings.HasPrefix(etagPath(), base) || !strings.HasSuffix(etagPath(), "etags.json") {
		t.Fatalf("etagPath unexpected: %s", etagPath())
	}
}

func Test_token_SaveLoad(t *testing.T) {
	_ = withTmpConfig(t)

	if _, err := loadToken(); err == nil {
		t.Fatalf("expected error when token file missing")
	}
	if err := saveToken("tok", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	tok, err := loadToken()
	if err != nil || tok != "tok" {
		t.Fatalf("loadToken: tok=%q err=%v", tok, err)
	}
	if err := saveToken("tok2", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("saveToken expired: %v", err)
	}
	if _, err := loadToken(); err == nil {
		t.Fatalf("want error for expired token")
	}
	if err := saveToken("forever", time.Time{}); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	if tok, err := loadToken(); err != nil || tok != "forever" {
		t.Fatalf("token without expiry: tok=%q err=%v", tok, err)
	}
}

func Test_etags_SaveLoad(t *testing.T) {
	_ = withTmpConfig(t)

	if got := loadETags(); len(got) != 0 {
		t.Fatalf("want empty etags, got %v", got)
	}
	if err := saveETag("kodeverk", `"v1"`); err != nil {
		t.Fatalf("saveETag: %v", err)
	}
	if err := saveETag("beregningsregler", `"r1"`); err != nil {
		t.Fatalf("saveETag: %v", err)
	}
	if err := saveETag("kodeverk", ""); err != nil {
		t.Fatalf("saveETag clear: %v", err)
	}
	got := loadETags()
	if _, ok := got["kodeverk"]; ok || got["beregningsregler"] != `"r1"` {
		t.Fatalf("etags unexpected: %v", got)
	}
}

func Test_tokenExpiry(t *testing.T) {
	a := service.NewAuthenticator([]byte("k"), time.Hour)
	tok, exp, err := a.Issue("Z1", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if got := tokenExpiry(tok); !got.Equal(exp.Truncate(time.Second)) {
		t.Fatalf("tokenExpiry=%v, want %v", got, exp)
	}
	if got := tokenExpiry("garbage"); !got.IsZero() {
		t.Fatalf("want zero time for garbage, got %v", got)
	}
}

func Test_version(t *testing.T) {
	_ = withTmpConfig(t)
	out, _, err := run(t, "", "version")
	if err != nil || !strings.HasPrefix(out, "kodeverkctl dev") {
		t.Fatalf("version: out=%q err=%v", out, err)
	}
}

func Test_unknownKind(t *testing.T) {
	_ = withTmpConfig(t)
	if _, _, err := run(t, "", "get", "vilkar", "--server", "http://127.0.0.1:1"); err == nil {
		t.Fatalf("want error for unknown kind")
	}
}

func Test_getPutConflictFlow(t *testing.T) {
	_ = withTmpConfig(t)
	srv := newTestServer(t, nil)

	out, _, err := run(t, "", "get", "kodeverk", "--server", srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, "FTRL_4_3_INNTEKTSTAP") {
		t.Fatalf("want default document, got %s", out)
	}
	if _, ok := loadETags()["kodeverk"]; ok {
		t.Fatalf("default document must not leave a version token")
	}

	file := writeFile(t, uiBody)
	out, _, err = run(t, "", "put", "saksbehandler-ui", file, "--server", srv.URL)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	var res saveResponse
	if err := json.Unmarshal([]byte(out), &res); err != nil || !res.Success || res.VersionID == "" {
		t.Fatalf("put output: %q err=%v", out, err)
	}
	if got := loadETags()["saksbehandler-ui"]; got != `"`+res.VersionID+`"` {
		t.Fatalf("etag after put=%q, want quoted %q", got, res.VersionID)
	}

	// second put from the remembered version succeeds
	if _, _, err := run(t, "", "put", "saksbehandler-ui", file, "--server", srv.URL); err != nil {
		t.Fatalf("put from current version: %v", err)
	}

	// stale token
	_, stderr, err := run(t, "", "put", "saksbehandler-ui", file, "--server", srv.URL, "--if-match", `"`+res.VersionID+`"`)
	if !errors.Is(err, errs.ErrVersionConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
	var ce *errs.ConflictError
	if !errors.As(err, &ce) || ce.ExpectedVersion != res.VersionID || ce.CurrentVersion == "" {
		t.Fatalf("conflict details: %+v", ce)
	}
	if !strings.Contains(stderr, "Gjeldende versjon") {
		t.Fatalf("stderr should explain conflict: %q", stderr)
	}

	if _, _, err := run(t, "", "put", "saksbehandler-ui", file, "--server", srv.URL, "--if-match", `"`+res.VersionID+`"`, "--force"); err != nil {
		t.Fatalf("forced put: %v", err)
	}

	out, _, err = run(t, "", "versions", "saksbehandler-ui", "--server", srv.URL)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	var vs []model.VersionInfo
	if err := json.Unmarshal([]byte(out), &vs); err != nil {
		t.Fatalf("decode versions: %v", err)
	}
	if len(vs) != 3 || vs[0].VersionID != res.VersionID {
		t.Fatalf("versions unexpected: %+v", vs)
	}

	out, _, err = run(t, "", "show", "saksbehandler-ui", res.VersionID, "--server", srv.URL)
	if err != nil || !strings.Contains(out, `"kategori": "A"`) {
		t.Fatalf("show: out=%q err=%v", out, err)
	}
	if _, _, err := run(t, "", "show", "saksbehandler-ui", "nope", "--server", srv.URL); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("show missing: want not found, got %v", err)
	}
}

func Test_putFromStdin(t *testing.T) {
	_ = withTmpConfig(t)
	srv := newTestServer(t, nil)

	out, _, err := run(t, uiBody, "put", "saksbehandler-ui", "-", "--server", srv.URL)
	if err != nil || !strings.Contains(out, "versionId") {
		t.Fatalf("put from stdin: out=%q err=%v", out, err)
	}
}

func Test_putInvalid(t *testing.T) {
	_ = withTmpConfig(t)
	srv := newTestServer(t, nil)

	_, stderr, err := run(t, "", "put", "kodeverk", writeFile(t, `{}`), "--server", srv.URL)
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if !strings.Contains(stderr, "JSON-liste") {
		t.Fatalf("stderr should list issues: %q", stderr)
	}
}

func Test_check(t *testing.T) {
	_ = withTmpConfig(t)
	srv := newTestServer(t, nil)

	out, _, err := run(t, "", "check", "--server", srv.URL)
	if err != nil || !strings.Contains(out, "ukjenteKoderISaksbehandlerUi") {
		t.Fatalf("check: out=%q err=%v", out, err)
	}
	if _, _, err := run(t, "", "put", "saksbehandler-ui",
		writeFile(t, `[{"kategori":"A","underspørsmål":[{"kode":"UKJENT_KODE","variant":"RADIO","alternativer":[{"kode":"ALT"}]}]}]`),
		"--server", srv.URL); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, _, err := run(t, "", "check", "--strict", "--server", srv.URL); err == nil {
		t.Fatalf("strict check should fail on findings")
	}
}

func Test_tokenAndAuth(t *testing.T) {
	_ = withTmpConfig(t)
	srv := newTestServer(t, service.NewAuthenticator([]byte("secret"), time.Hour))

	if _, _, err := run(t, "", "versions", "kodeverk", "--server", srv.URL); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want unauthorized without token, got %v", err)
	}
	if _, _, err := run(t, "", "token", "--sub", "Z123"); err == nil {
		t.Fatalf("token without key should fail")
	}
	out, _, err := run(t, "", "token", "--key", "secret", "--sub", "Z123", "--name", "Ola Nordmann", "--save")
	if err != nil || strings.Count(strings.TrimSpace(out), ".") != 2 {
		t.Fatalf("token: out=%q err=%v", out, err)
	}
	if _, _, err := run(t, "", "put", "saksbehandler-ui", writeFile(t, uiBody), "--server", srv.URL); err != nil {
		t.Fatalf("put with saved token: %v", err)
	}
	out, _, err = run(t, "", "versions", "saksbehandler-ui", "--server", srv.URL)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if !strings.Contains(out, `"createdBy": "Ola Nordmann"`) {
		t.Fatalf("save should be attributed to the token principal: %s", out)
	}

	if _, _, err := run(t, "", "login"); err == nil {
		t.Fatalf("login without token should fail")
	}
	if _, _, err := run(t, "", "login", "--token", strings.TrimSpace("bad.token.value")); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, _, err := run(t, "", "versions", "kodeverk", "--server", srv.URL); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("bad token should be rejected, got %v", err)
	}
}
