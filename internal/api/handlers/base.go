// Package handlers implements the admin REST API endpoint handlers:
// read-only operational visibility into the running resolver, not a
// control plane.
package handlers

import (
	"log/slog"
	"time"

	"github.com/sinkholed/sinkhole/internal/config"
	"github.com/sinkholed/sinkhole/internal/matcher"
	"github.com/sinkholed/sinkhole/internal/reload"
	"github.com/sinkholed/sinkhole/internal/stats"
)

// Handler holds the live components the admin API reports on. All
// fields are set once at startup by cmd/sinkholed and are safe for
// concurrent reads (Matcher and Stats are already internally
// synchronized; Reload.ReloadNow is the only write path and is itself
// serialized).
type Handler struct {
	cfg       *config.Config
	logger    *slog.Logger
	startTime time.Time

	matcher *matcher.Matcher
	stats   *stats.Stats
	reload  *reload.Controller
}

// New creates a Handler wired to the resolver's live components.
func New(cfg *config.Config, logger *slog.Logger, m *matcher.Matcher, s *stats.Stats, rc *reload.Controller) *Handler {
	return &Handler{
		cfg:       cfg,
		logger:    logger,
		startTime: time.Now(),
		matcher:   m,
		stats:     s,
		reload:    rc,
	}
}
