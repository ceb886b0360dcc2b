package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/cutline/internal/assets"
	"github.com/mantonx/cutline/internal/database"
)

// AssetsHandler serves the source media registry.
type AssetsHandler struct {
	library *assets.Library
	watcher *assets.Watcher
	store   *database.AssetStore
	scanner *assets.Scanner
	logger  hclog.Logger
}

// NewAssetsHandler creates a new assets handler. The watcher and store
// may be nil; registration then skips file watching or persistence.
func NewAssetsHandler(library *assets.Library, watcher *assets.Watcher, store *database.AssetStore, logger hclog.Logger) *AssetsHandler {
	return &AssetsHandler{
		library: library,
		watcher: watcher,
		store:   store,
		scanner: assets.NewScanner(library, watcher, 0, logger),
		logger:  logger.Named("assets"),
	}
}

type registerAssetRequest struct {
	Path string `json:"path" binding:"required"`
}

// Register probes a file and adds it to the registry.
func (h *AssetsHandler) Register(c *gin.Context) {
	var req registerAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	asset, err := h.library.Register(req.Path)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to register asset", "details": err.Error()})
		return
	}
	if h.watcher != nil {
		if err := h.watcher.Watch(asset); err != nil {
			h.logger.Warn("failed to watch asset directory", "path", asset.Path, "error", err)
		}
	}
	if h.store != nil {
		if err := h.store.Save(asset); err != nil {
			h.logger.Error("failed to persist asset", "asset_id", asset.ID, "error", err)
		}
	}
	c.JSON(http.StatusCreated, asset)
}

type scanRequest struct {
	Dir string `json:"dir" binding:"required"`
}

// Scan imports every recognized media file under a directory.
func (h *AssetsHandler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	result, err := h.scanner.Scan(c.Request.Context(), req.Dir)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "scan failed", "details": err.Error()})
		return
	}
	if h.store != nil {
		for _, asset := range h.library.List() {
			if err := h.store.Save(asset); err != nil {
				h.logger.Error("failed to persist asset", "asset_id", asset.ID, "error", err)
			}
		}
	}
	c.JSON(http.StatusOK, result)
}

// List returns all registered assets.
func (h *AssetsHandler) List(c *gin.Context) {
	list := h.library.List()
	c.JSON(http.StatusOK, gin.H{"assets": list, "total": len(list)})
}

// Get returns one asset.
func (h *AssetsHandler) Get(c *gin.Context) {
	asset, err := h.library.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, asset)
}

// Remove drops an asset from the registry. Clips referencing it will
// fail compilation until it is registered again.
func (h *AssetsHandler) Remove(c *gin.Context) {
	if err := h.library.Remove(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found", "details": err.Error()})
		return
	}
	if h.store != nil {
		if err := h.store.Delete(c.Param("id")); err != nil {
			h.logger.Error("failed to delete persisted asset", "asset_id", c.Param("id"), "error", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"removed": c.Param("id")})
}
