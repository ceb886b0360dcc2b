package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/cutline/internal/composition"
	"github.com/mantonx/cutline/internal/database"
)

// ProjectsHandler serves project CRUD and session opening.
type ProjectsHandler struct {
	store   *database.ProjectStore
	session *Session
	logger  hclog.Logger
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(store *database.ProjectStore, session *Session, logger hclog.Logger) *ProjectsHandler {
	return &ProjectsHandler{store: store, session: session, logger: logger.Named("projects")}
}

type createProjectRequest struct {
	Name     string                `json:"name" binding:"required"`
	Settings *composition.Settings `json:"settings"`
}

// Create makes a new empty project and persists it.
func (h *ProjectsHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	settings := composition.DefaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}
	project := composition.NewProject(req.Name, settings)
	if err := h.store.Save(project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save project", "details": err.Error()})
		return
	}
	h.logger.Info("project created", "project_id", project.ID, "name", project.Name)
	c.JSON(http.StatusCreated, project)
}

// List returns stored project summaries.
func (h *ProjectsHandler) List(c *gin.Context) {
	recs, err := h.store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list projects", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": recs, "total": len(recs)})
}

// Get returns the full project document.
func (h *ProjectsHandler) Get(c *gin.Context) {
	project, err := h.store.Load(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, project)
}

// Save replaces a stored project with the posted document. The
// document passes the model's own validation on decode, so overlapping
// clips or malformed tracks are rejected before any row is touched.
func (h *ProjectsHandler) Save(c *gin.Context) {
	var project composition.Project
	if err := c.ShouldBindJSON(&project); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project document", "details": err.Error()})
		return
	}
	if project.ID != c.Param("id") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project id does not match path"})
		return
	}
	if err := h.store.Save(&project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save project", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": project.ID})
}

// Delete removes a stored project.
func (h *ProjectsHandler) Delete(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete project", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

// Open loads a project into the editing session, making it the target
// of the playback endpoints.
func (h *ProjectsHandler) Open(c *gin.Context) {
	project, err := h.store.Load(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found", "details": err.Error()})
		return
	}
	if err := h.session.Open(c.Request.Context(), project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open project", "details": err.Error()})
		return
	}
	h.logger.Info("project opened", "project_id", project.ID)
	c.JSON(http.StatusOK, gin.H{"opened": project.ID, "name": project.Name})
}
