package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/cutline/internal/database"
	"github.com/mantonx/cutline/internal/events"
	"github.com/mantonx/cutline/internal/renderqueue"
	"github.com/mantonx/cutline/internal/timebase"
)

// RenderHandler serves render job submission and queue control.
type RenderHandler struct {
	queue    *renderqueue.Queue
	store    *database.ProjectStore
	jobs     *database.RenderJobStore
	bus      *events.Bus
	logger   hclog.Logger
	upgrader websocket.Upgrader
}

// NewRenderHandler creates a new render handler.
func NewRenderHandler(queue *renderqueue.Queue, store *database.ProjectStore, jobs *database.RenderJobStore, bus *events.Bus, logger hclog.Logger) *RenderHandler {
	return &RenderHandler{
		queue:  queue,
		store:  store,
		jobs:   jobs,
		bus:    bus,
		logger: logger.Named("render"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

type submitRenderRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	StartUS   *int64 `json:"start_us"`
	EndUS     *int64 `json:"end_us"`
}

// Submit enqueues a render of a stored project. The job renders the
// project as stored at submission time; later edits do not affect it.
func (h *RenderHandler) Submit(c *gin.Context) {
	var req submitRenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	project, err := h.store.Load(req.ProjectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found", "details": err.Error()})
		return
	}

	var target timebase.Range
	if req.StartUS != nil && req.EndUS != nil {
		target, err = timebase.NewRange(timebase.Timestamp(*req.StartUS), timebase.Timestamp(*req.EndUS))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid render range", "details": err.Error()})
			return
		}
	}

	job, err := h.queue.Submit(project.Snapshot(), target)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to submit render", "details": err.Error()})
		return
	}
	h.logger.Info("render submitted", "job_id", job.ID, "project_id", req.ProjectID)
	c.JSON(http.StatusAccepted, job.Status())
}

// ListJobs returns the live jobs in submission order.
func (h *RenderHandler) ListJobs(c *gin.Context) {
	jobs := h.queue.Jobs()
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
}

// GetJob returns one live job.
func (h *RenderHandler) GetJob(c *gin.Context) {
	status, err := h.queue.Job(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// CancelJob cancels a queued or running job.
func (h *RenderHandler) CancelJob(c *gin.Context) {
	if err := h.queue.Cancel(c.Param("id")); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "failed to cancel job", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": c.Param("id")})
}

// StreamJob upgrades to a websocket and forwards one job's lifecycle
// and progress events. The current status is sent first so a client
// attaching mid-render does not start blind; the stream closes itself
// after forwarding a terminal state.
func (h *RenderHandler) StreamJob(c *gin.Context) {
	jobID := c.Param("id")
	status, err := h.queue.Job(jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found", "details": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "job_id", jobID, "error", err)
		return
	}
	defer conn.Close()

	eventCh := make(chan events.Event, 64)
	sub := h.bus.Subscribe(events.Filter{Types: []events.EventType{
		events.EventRenderStarted,
		events.EventRenderProgress,
		events.EventRenderCompleted,
		events.EventRenderFailed,
		events.EventRenderCancelled,
	}}, func(e events.Event) error {
		if id, _ := e.Data["job_id"].(string); id != jobID {
			return nil
		}
		select {
		case eventCh <- e:
		default:
		}
		return nil
	})
	defer func() {
		if err := h.bus.Unsubscribe(sub.ID); err != nil {
			h.logger.Warn("failed to unsubscribe job stream", "subscription_id", sub.ID, "error", err)
		}
	}()

	if err := conn.WriteJSON(status); err != nil {
		return
	}
	if status.State.Terminal() {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e := <-eventCh:
			if err := conn.WriteJSON(e); err != nil {
				return
			}
			switch e.Type {
			case events.EventRenderCompleted, events.EventRenderFailed, events.EventRenderCancelled:
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

// History returns persisted jobs, including those from past runs.
func (h *RenderHandler) History(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		limit = 50
	}
	recs, err := h.jobs.History(c.Query("project_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list render history", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": recs, "total": len(recs)})
}

// QueueStatus returns queue occupancy and pause state.
func (h *RenderHandler) QueueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.queue.Status())
}

// PauseQueue stops workers from picking up further jobs.
func (h *RenderHandler) PauseQueue(c *gin.Context) {
	h.queue.Pause()
	c.JSON(http.StatusOK, h.queue.Status())
}

// ResumeQueue lets workers pick up jobs again.
func (h *RenderHandler) ResumeQueue(c *gin.Context) {
	h.queue.Resume()
	c.JSON(http.StatusOK, h.queue.Status())
}
