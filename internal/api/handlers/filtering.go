package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sinkholed/sinkhole/internal/api/models"
)

// Entries reports the size and sources of the currently active policy.
// It does not enumerate individual domains — exposing the full
// blocklist contents over HTTP is out of scope for this read-oriented
// surface.
func (h *Handler) Entries(c *gin.Context) {
	resp := models.FilteringEntriesResponse{
		Count: h.matcher.Count(),
	}
	if h.cfg != nil {
		resp.CustomList = h.cfg.Blocklist.CustomList
		resp.LocalLists = h.cfg.Blocklist.LocalLists
		resp.RemoteLists = h.cfg.Blocklist.RemoteLists
	}
	c.JSON(http.StatusOK, resp)
}

// Reload triggers the same Reload Controller path SIGHUP drives,
// synchronously, and reports whether it succeeded — useful in
// environments (containers, Windows services) where sending a signal
// to the process is awkward.
func (h *Handler) Reload(c *gin.Context) {
	if h.reload == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "reload controller not available"})
		return
	}
	if err := h.reload.ReloadNow(); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}
