package handlers

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/mantonx/cutline/internal/events"
	"github.com/mantonx/cutline/internal/renderqueue"
)

// HealthHandler serves liveness and host resource endpoints.
type HealthHandler struct {
	bus   *events.Bus
	queue *renderqueue.Queue
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(bus *events.Bus, queue *renderqueue.Queue) *HealthHandler {
	return &HealthHandler{bus: bus, queue: queue}
}

// Health reports service status. A saturated event bus degrades the
// status without failing the endpoint.
func (h *HealthHandler) Health(c *gin.Context) {
	status := "ok"
	var detail string
	if err := h.bus.Health(); err != nil {
		status = "degraded"
		detail = err.Error()
	}
	resp := gin.H{
		"status":  status,
		"service": "cutline",
		"queue":   h.queue.Status(),
	}
	if detail != "" {
		resp["detail"] = detail
	}
	c.JSON(http.StatusOK, resp)
}

// System reports host resource usage, useful for sizing renders.
func (h *HealthHandler) System(c *gin.Context) {
	resp := gin.H{
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
		"cpus":       runtime.NumCPU(),
	}
	if percent, err := cpu.Percent(0, false); err == nil && len(percent) > 0 {
		resp["cpu_percent"] = percent[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp["memory"] = gin.H{
			"total":        vm.Total,
			"available":    vm.Available,
			"used_percent": vm.UsedPercent,
		}
	}
	if usage, err := disk.Usage("/"); err == nil {
		resp["disk"] = gin.H{
			"total":        usage.Total,
			"free":         usage.Free,
			"used_percent": usage.UsedPercent,
		}
	}
	c.JSON(http.StatusOK, resp)
}
