// Command kodeverk-server serves the versioned kodeverk documents over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/kodeverk-admin/internal/cache"
	"github.com/and161185/kodeverk-admin/internal/config"
	"github.com/and161185/kodeverk-admin/internal/externalcodes"
	"github.com/and161185/kodeverk-admin/internal/metrics"
	"github.com/and161185/kodeverk-admin/internal/repository/versioned"
	httpserver "github.com/and161185/kodeverk-admin/internal/server/http"
	"github.com/and161185/kodeverk-admin/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, opens storage and caches, and serves HTTP until signalled.
func main() {
	cfg, err := config.Load(os.Args[1:], nil)
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("backend", cfg.Backend),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blobs, closeBlobs, err := openBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer closeBlobs()

	m := metrics.New()
	opts := []versioned.Option{versioned.WithLogger(logger)}
	var codeCache externalcodes.Cache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer func() { _ = rc.Close() }()
		rc.WithExternalTTL(cfg.ExternalCodesTTL)
		opts = append(opts, versioned.WithLatestCache(rc))
		codeCache = rc
	}

	// Services
	docs := service.NewDocumentService(versioned.New(blobs, opts...), logger, m)
	external := externalcodes.New(cfg.ExternalCodesURL, codeCache, logger)
	checks := service.NewConsistencyService(docs, external, logger, m)
	authn := service.NewAuthenticator([]byte(cfg.JWTKey), cfg.AccessTTL)
	if !authn.Enabled() {
		logger.Warn("no jwt key configured: API is unauthenticated and saves are stamped as unknown")
	}

	if !cfg.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	app := httpserver.New(docs, checks, authn, logger, m).WithRequestTimeout(cfg.RequestTimeout)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown timed out", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			closeBlobs()
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

func newLogger(dev bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}
