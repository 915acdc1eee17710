// Package httpserver exposes the document API over HTTP.
package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/kodeverk-admin/internal/consistency"
	"github.com/and161185/kodeverk-admin/internal/errs"
	"github.com/and161185/kodeverk-admin/internal/metrics"
	"github.com/and161185/kodeverk-admin/internal/model"
	"github.com/and161185/kodeverk-admin/internal/service"
)

const (
	headerLastModifiedBy = "X-Sist-Endret-Av"
	headerLastModifiedAt = "X-Sist-Endret-Dato"

	maxBodyBytes = 10 << 20
)

// ConsistencyChecker produces the advisory cross-reference report.
type ConsistencyChecker interface {
	Check(ctx context.Context) (consistency.Report, error)
}

// Server wires services into HTTP handlers.
type Server struct {
	timeout time.Duration
	docs    service.DocumentService
	checks  ConsistencyChecker
	auth    TokenVerifier
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New constructs the HTTP server with injected services. auth and m may be nil.
func New(docs service.DocumentService, checks ConsistencyChecker, auth TokenVerifier, log *zap.Logger, m *metrics.Metrics) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{docs: docs, checks: checks, auth: auth, log: log, metrics: m}
}

// WithRequestTimeout bounds the context of every API request.
func (s *Server) WithRequestTimeout(d time.Duration) *Server {
	s.timeout = d
	return s
}

// Router builds the gin engine with middleware and routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recover(s.log), Logging(s.log), Metrics(s.metrics))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api", Timeout(s.timeout), Auth(s.auth))
	api.GET("/dokumenter/:kind", s.getLatest)
	api.GET("/dokumenter/:kind/versjoner", s.listVersions)
	api.GET("/dokumenter/:kind/versjoner/:versionId", s.getVersion)
	api.PUT("/dokumenter/:kind", s.save)
	api.GET("/konsistens", s.consistency)
	return r
}

func (s *Server) kind(c *gin.Context) (model.DocumentKind, bool) {
	kind, err := model.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ukjent dokumenttype"})
		return "", false
	}
	return kind, true
}

// getLatest returns the current body with its version token.
func (s *Server) getLatest(c *gin.Context) {
	kind, ok := s.kind(c)
	if !ok {
		return
	}
	doc, err := s.docs.Get(c.Request.Context(), kind)
	if err != nil {
		s.fail(c, "get latest", err)
		return
	}
	s.writeDocument(c, doc)
}

func (s *Server) listVersions(c *gin.Context) {
	kind, ok := s.kind(c)
	if !ok {
		return
	}
	vs, err := s.docs.ListVersions(c.Request.Context(), kind)
	if err != nil {
		s.fail(c, "list versions", err)
		return
	}
	c.JSON(http.StatusOK, vs)
}

func (s *Server) getVersion(c *gin.Context) {
	kind, ok := s.kind(c)
	if !ok {
		return
	}
	doc, err := s.docs.GetVersion(c.Request.Context(), kind, c.Param("versionId"))
	if err != nil {
		s.fail(c, "get version", err)
		return
	}
	s.writeDocument(c, doc)
}

func (s *Server) writeDocument(c *gin.Context, doc *model.VersionedDocument) {
	if doc.VersionID != "" {
		c.Header("ETag", quoteETag(doc.VersionID))
		c.Header(headerLastModifiedBy, doc.CreatedBy)
		c.Header(headerLastModifiedAt, doc.CreatedAt.UTC().Format(time.RFC3339))
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", doc.Body)
}

// save commits a new snapshot, honouring If-Match.
func (s *Server) save(c *gin.Context) {
	kind, ok := s.kind(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "for stor forespørsel"})
		return
	}

	author, _ := PrincipalFromCtx(c.Request.Context())
	res, err := s.docs.Save(c.Request.Context(), kind, body, expectedVersion(c.GetHeader("If-Match")), author)
	if err != nil {
		s.fail(c, "save", err)
		return
	}
	c.Header("ETag", quoteETag(res.VersionID))
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"versionId": res.VersionID,
		"createdAt": res.CreatedAt.UTC().Format(time.RFC3339Nano),
		"stamped":   res.Stamped,
	})
}

func (s *Server) consistency(c *gin.Context) {
	r, err := s.checks.Check(c.Request.Context())
	if err != nil {
		s.fail(c, "consistency", err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// fail maps service errors to responses.
func (s *Server) fail(c *gin.Context, op string, err error) {
	var ve *errs.ValidationError
	var ce *errs.ConflictError
	switch {
	case errors.As(err, &ve):
		issues := ve.Issues
		if issues == nil {
			issues = []errs.FieldIssue{}
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "errors": issues})
	case errors.As(err, &ce):
		c.Header("ETag", quoteETag(ce.CurrentVersion))
		writeProblem(c, conflictProblem(ce, c.GetString(requestIDKey)))
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "finnes ikke"})
	case errors.Is(err, errs.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	default:
		s.log.Error(op+" failed", zap.Error(err), zap.String("requestId", c.GetString(requestIDKey)))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal"})
	}
}

func quoteETag(v string) string { return `"` + v + `"` }

// expectedVersion extracts the version token from If-Match. Weak validators
// are accepted; "*" and an empty header mean no check.
func expectedVersion(h string) string {
	h = strings.TrimSpace(h)
	if i := strings.IndexByte(h, ','); i >= 0 {
		h = strings.TrimSpace(h[:i])
	}
	h = strings.TrimPrefix(h, "W/")
	h = strings.Trim(h, `"`)
	if h == "*" {
		return ""
	}
	return h
}
