package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/sinkholed/sinkhole/internal/api/models"
)

// Healthz reports liveness only: if the process can answer HTTP, it is
// up. It intentionally does not depend on matcher/stats state, so it
// keeps working even if those are mid-swap.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

// Stats reports the query-counter snapshot plus process CPU and memory
// on one endpoint.
func (h *Handler) Stats(c *gin.Context) {
	snap := h.stats.Snapshot()

	resp := struct {
		models.StatsResponse
		NumCPU      int     `json:"num_cpu"`
		CPUPercent  float64 `json:"cpu_percent"`
		MemUsedMB   float64 `json:"mem_used_mb"`
		MemUsedPerc float64 `json:"mem_used_percent"`
	}{
		StatsResponse: models.StatsResponse{
			Total:     snap.Total,
			Blocked:   snap.Blocked,
			Allowed:   snap.Allowed,
			StartedAt: snap.StartedAt,
			UptimeSec: snap.Uptime.Seconds(),
		},
		NumCPU: runtime.NumCPU(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemUsedMB = float64(vm.Used) / 1024 / 1024
		resp.MemUsedPerc = vm.UsedPercent
	}
	if pct, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(pct) > 0 {
		resp.CPUPercent = pct[0]
	}

	c.JSON(http.StatusOK, resp)
}
