package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sinkholed/sinkhole/internal/api/handlers"
	"github.com/sinkholed/sinkhole/internal/api/middleware"
	"github.com/sinkholed/sinkhole/internal/config"
)

// RegisterRoutes mounts the read-oriented admin surface: health,
// statistics, a view of the active filtering policy, a manual reload
// trigger, and Prometheus metrics. No blocklist-editing endpoints
// exist here.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg *config.Config) {
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/")
	if cfg != nil && cfg.API.APIKey != "" {
		api.Use(middleware.RequireAPIKey(cfg.API.APIKey))
	}

	api.GET("/stats", h.Stats)
	api.GET("/filtering/entries", h.Entries)
	api.POST("/filtering/reload", h.Reload)
}
