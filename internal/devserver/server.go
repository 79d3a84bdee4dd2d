// Package devserver runs a local reverse proxy to the backend with CORS headers, so a
// front end served from another origin can talk to the API during development.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"novelassist/internal/logging"
)

// Options configures a Server
type Options struct {
	Addr    string
	Backend string
	Origin  string
	Logger  *zap.Logger
}

// Server proxies every request to the backend
type Server struct {
	addr    string
	backend *url.URL
	engine  *gin.Engine
	log     *zap.Logger
}

// New builds the proxy. The backend must be an absolute URL.
func New(opts Options) (*Server, error) {
	target, err := url.Parse(opts.Backend)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", opts.Backend)
	}

	log := logging.OrNop(opts.Logger)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log), CORS(opts.Origin))

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("Backend request failed", zap.String("path", r.URL.Path), zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
	}
	engine.NoRoute(gin.WrapH(proxy))

	return &Server{addr: opts.Addr, backend: target, engine: engine, log: log}, nil
}

// Handler exposes the gin engine
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Dev server listening", zap.String("addr", s.addr), zap.String("backend", s.backend.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dev server shutdown: %w", err)
	}
	return nil
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("Proxied request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
