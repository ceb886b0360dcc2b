package server

import (
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/cutline/internal/server/handlers"
)

func registerRoutes(r *gin.Engine, deps Deps, logger hclog.Logger) {
	health := handlers.NewHealthHandler(deps.Bus, deps.Queue)
	projects := handlers.NewProjectsHandler(deps.Projects, deps.Session, logger)
	render := handlers.NewRenderHandler(deps.Queue, deps.Projects, deps.Jobs, deps.Bus, logger)
	assetAPI := handlers.NewAssetsHandler(deps.Library, deps.Watcher, deps.Assets, logger)
	play := handlers.NewPlaybackHandler(deps.Session, logger)
	eventAPI := handlers.NewEventsHandler(deps.Bus, logger)

	api := r.Group("/api")
	{
		api.GET("/health", health.Health)
		api.GET("/system", health.System)

		api.POST("/projects", projects.Create)
		api.GET("/projects", projects.List)
		api.GET("/projects/:id", projects.Get)
		api.PUT("/projects/:id", projects.Save)
		api.DELETE("/projects/:id", projects.Delete)
		api.POST("/projects/:id/open", projects.Open)

		api.POST("/render/jobs", render.Submit)
		api.GET("/render/jobs", render.ListJobs)
		api.GET("/render/jobs/:id", render.GetJob)
		api.GET("/render/jobs/:id/ws", render.StreamJob)
		api.DELETE("/render/jobs/:id", render.CancelJob)
		api.GET("/render/history", render.History)
		api.GET("/render/queue", render.QueueStatus)
		api.POST("/render/queue/pause", render.PauseQueue)
		api.POST("/render/queue/resume", render.ResumeQueue)

		api.POST("/assets", assetAPI.Register)
		api.POST("/assets/scan", assetAPI.Scan)
		api.GET("/assets", assetAPI.List)
		api.GET("/assets/:id", assetAPI.Get)
		api.DELETE("/assets/:id", assetAPI.Remove)

		api.POST("/playback/play", play.Play)
		api.POST("/playback/pause", play.Pause)
		api.POST("/playback/stop", play.Stop)
		api.POST("/playback/seek", play.Seek)
		api.GET("/playback", play.Status)

		api.GET("/events", eventAPI.Recent)
		api.GET("/events/stats", eventAPI.Stats)
		api.GET("/events/ws", eventAPI.Stream)
	}
}
