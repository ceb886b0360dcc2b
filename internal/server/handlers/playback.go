package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/cutline/internal/timebase"
)

// PlaybackHandler drives the session's playback synchronizer.
type PlaybackHandler struct {
	session *Session
	logger  hclog.Logger
}

// NewPlaybackHandler creates a new playback handler.
func NewPlaybackHandler(session *Session, logger hclog.Logger) *PlaybackHandler {
	return &PlaybackHandler{session: session, logger: logger.Named("playback")}
}

// Play starts playback at the open project's playhead.
func (h *PlaybackHandler) Play(c *gin.Context) {
	_, sync := h.session.Current()
	if sync == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no project open"})
		return
	}
	if err := sync.Play(c.Request.Context()); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to start playback", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"playing": true})
}

// Pause halts playback, keeping the playhead where it is.
func (h *PlaybackHandler) Pause(c *gin.Context) {
	_, sync := h.session.Current()
	if sync == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no project open"})
		return
	}
	if err := sync.Pause(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to pause playback", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"playing": false})
}

// Stop halts playback and resets the playhead to the in point.
func (h *PlaybackHandler) Stop(c *gin.Context) {
	_, sync := h.session.Current()
	if sync == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no project open"})
		return
	}
	if err := sync.Stop(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop playback", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"playing": false})
}

type seekRequest struct {
	PositionUS int64 `json:"position_us"`
}

// Seek moves the playhead. During playback the underlying player
// follows, reopening media only when the target lands on another clip.
func (h *PlaybackHandler) Seek(c *gin.Context) {
	_, sync := h.session.Current()
	if sync == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no project open"})
		return
	}
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if err := sync.Seek(c.Request.Context(), timebase.Timestamp(req.PositionUS)); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to seek", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"position_us": req.PositionUS})
}

// Status reports the playhead position and transport state.
func (h *PlaybackHandler) Status(c *gin.Context) {
	project, sync := h.session.Current()
	if sync == nil {
		c.JSON(http.StatusOK, gin.H{"open": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"open":        true,
		"project_id":  project.ID,
		"playing":     sync.Playing(),
		"position_us": int64(sync.Position()),
	})
}
