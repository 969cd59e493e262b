// Package adminhttp exposes a small gin.Engine surface for operating a
// running pool: health, stats, and a websocket stream of its log events.
// It is entirely optional; a Pool works without it.
package adminhttp

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relaypool/connpool/internal/health"
	"github.com/relaypool/connpool/internal/pool"
)

// PoolStatter is the subset of *pool.Pool the health/stats endpoints need.
type PoolStatter interface {
	Stats() pool.Stats
}

// Server wires a health Monitor and a Pool together behind gin routes.
type Server struct {
	monitor *health.Monitor
	target  PoolStatter
	hub     *eventHub
	engine  *gin.Engine
}

// NewServer builds the gin.Engine but does not start listening.
func NewServer(monitor *health.Monitor, target PoolStatter) *Server {
	s := &Server{
		monitor: monitor,
		target:  target,
		hub:     newEventHub(),
	}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), requestIDMiddleware)
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// SetTarget attaches the pool /stats reports on, once it exists. Callers
// that need a Pool's LogFn before the Pool itself is constructed create
// the Server first, pass LogFn() into pool.Options, then call SetTarget
// once New returns.
func (s *Server) SetTarget(target PoolStatter) {
	s.target = target
}

// LogFn returns a pool.LogFn that fans every event out to connected
// /events websocket clients.
func (s *Server) LogFn() pool.LogFn {
	return s.hub.publish
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.GET("/stats", s.handleStats)
	s.engine.GET("/events", s.handleEvents)
}

func (s *Server) handleHealthz(c *gin.Context) {
	h := s.monitor.GetHealth()
	status := http.StatusOK
	if h.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, h)
}

func (s *Server) handleStats(c *gin.Context) {
	if s.target == nil {
		respondError(c, http.StatusServiceUnavailable, "no pool attached")
		return
	}
	c.JSON(http.StatusOK, s.target.Stats())
}
