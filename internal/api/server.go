// Package api provides the read-oriented admin HTTP surface for
// sinkholed: health, statistics, a view of the active filtering policy,
// a manual reload trigger, and Prometheus metrics. It is entirely
// supplementary to the core UDP resolver and is off by default
// (api.enabled: false).
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sinkholed/sinkhole/internal/api/handlers"
	"github.com/sinkholed/sinkhole/internal/api/middleware"
	"github.com/sinkholed/sinkhole/internal/config"
	"github.com/sinkholed/sinkhole/internal/matcher"
	"github.com/sinkholed/sinkhole/internal/reload"
	"github.com/sinkholed/sinkhole/internal/stats"
)

// Server is the admin HTTP server.
//
// Security note: do not expose this to untrusted networks without
// setting api.api_key.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, m *matcher.Matcher, s *stats.Stats, rc *reload.Controller) *Server {
	if cfg == nil {
		panic("api.New: cfg is nil")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.SlogRequestLogger(logger))

	h := handlers.New(cfg, logger, m, s, rc)
	RegisterRoutes(engine, h, cfg)

	addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{cfg: cfg, logger: logger, engine: engine, httpServer: httpServer}
}

func (s *Server) Addr() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
