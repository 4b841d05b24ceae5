// Package server exposes the dispatch and judging engine over HTTP:
// a server-sent-events endpoint for committee streaming and a
// synchronous endpoint for judging.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/go-tribunal/internal/committee"
	"github.com/ahrav/go-tribunal/internal/judging"
	"github.com/ahrav/go-tribunal/internal/ports"
)

// Config holds the HTTP server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// AllowedOrigins restricts CORS. Empty allows all origins.
	AllowedOrigins []string

	// Debug enables gin's debug mode and request logging.
	Debug bool
}

// Server wires the dispatcher and judging engine into an HTTP API.
type Server struct {
	dispatcher *committee.Dispatcher
	engine     *judging.Engine
	directory  ports.BackendDirectory
	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a Server exposing the given dispatcher and engine.
func NewServer(cfg Config, dispatcher *committee.Dispatcher, engine *judging.Engine, directory ports.BackendDirectory) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Debug {
		router.Use(gin.Logger())
	}

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		dispatcher: dispatcher,
		engine:     engine,
		directory:  directory,
		router:     router,
		httpServer: &http.Server{
			Addr:    cfg.Addr,
			Handler: router,
			// No WriteTimeout: committee streams stay open for as long
			// as the slowest backend takes.
			ReadTimeout: 30 * time.Second,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")
	api.GET("/backends", s.handleBackends)
	api.POST("/committee/stream", s.handleCommitteeStream)
	api.POST("/judge", s.handleJudge)
}

// Start begins serving and blocks until the listener fails or the
// server is shut down.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"backends": len(s.directory.IDs()),
	})
}

func (s *Server) handleBackends(c *gin.Context) {
	type backendInfo struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	}
	ids := s.directory.IDs()
	backends := make([]backendInfo, 0, len(ids))
	for _, id := range ids {
		backends = append(backends, backendInfo{ID: id, Label: s.directory.Label(id)})
	}
	c.JSON(http.StatusOK, gin.H{"backends": backends})
}
