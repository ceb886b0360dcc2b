// Package server exposes the editing, render, and playback operations
// over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/cutline/internal/assets"
	"github.com/mantonx/cutline/internal/config"
	"github.com/mantonx/cutline/internal/database"
	"github.com/mantonx/cutline/internal/events"
	"github.com/mantonx/cutline/internal/renderqueue"
	"github.com/mantonx/cutline/internal/server/handlers"
)

// Deps carries the wired application components the handlers serve.
type Deps struct {
	Bus      *events.Bus
	Library  *assets.Library
	Watcher  *assets.Watcher
	Queue    *renderqueue.Queue
	Projects *database.ProjectStore
	Jobs     *database.RenderJobStore
	Assets   *database.AssetStore
	Session  *handlers.Session
}

// Server is the HTTP front end.
type Server struct {
	config config.ServerConfig
	logger hclog.Logger
	http   *http.Server
}

// New builds the router and the listener around it.
func New(cfg config.ServerConfig, deps Deps, logger hclog.Logger) *Server {
	log := logger.Named("server")
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	if cfg.EnableCORS {
		r.Use(corsMiddleware(cfg.AllowedOrigins))
	}

	registerRoutes(r, deps, log)

	return &Server{
		config: cfg,
		logger: log,
		http: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.http.Shutdown(ctx)
}

func requestLogger(log hclog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Status() >= 500 {
			log.Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status())
		} else {
			log.Debug("request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status())
		}
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && contains(origins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
