// Package api exposes the HTTP side of a GridClash server: a health probe,
// a JSON view of the running game and the Prometheus scrape endpoint.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridclash/gridclash-node/pkg/server"
)

// StatusSource supplies the current game view. *server.GridServer
// satisfies it.
type StatusSource interface {
	Status() server.GameStatus
}

// Config holds API server configuration
type Config struct {
	ListenAddr string
}

// DefaultConfig returns default API server configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: ":8080",
	}
}

// Server is the HTTP companion of the UDP authority. It only reads; all
// game mutation stays on the game loop.
type Server struct {
	cfg    *Config
	src    StatusSource
	engine *gin.Engine
	http   *http.Server
}

// NewServer wires the routes. The Prometheus gatherer may be nil, in which
// case the default registry is scraped.
func NewServer(cfg *Config, src StatusSource, gatherer prometheus.Gatherer) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{cfg: cfg, src: src, engine: engine}

	engine.GET("/health", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := engine.Group("/api/v1")
	{
		v1.GET("/game/status", s.handleStatus)
	}

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.src.Status())
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	log.Printf("[API] listening on %s", s.cfg.ListenAddr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %v", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
