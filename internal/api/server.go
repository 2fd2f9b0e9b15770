// Package api is the HTTP translation layer over the scheduling core. It
// holds no scheduling logic of its own.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stitchadmin/internal/monitoring"
	"stitchadmin/internal/scheduler"
)

// Server represents the HTTP surface of the scheduling core
type Server struct {
	Router    *gin.Engine
	Scheduler *scheduler.Scheduler
	Monitor   *monitoring.Monitor
	Hub       *Hub

	jwtSecret string
}

// NewServer creates the API server around an existing planning-board hub
// so the scheduler can publish into it.
func NewServer(sched *scheduler.Scheduler, monitor *monitoring.Monitor, hub *Hub, jwtSecret string) *Server {
	server := &Server{
		Router:    gin.Default(),
		Scheduler: sched,
		Monitor:   monitor,
		Hub:       hub,
		jwtSecret: jwtSecret,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "StitchAdmin scheduling API is running"})
	})

	// Planning board live feed
	s.Router.GET("/ws", s.handleWebSocket)

	v1 := s.Router.Group("/api/v1")
	{
		// Planning queries
		v1.GET("/planning", s.GetPlanning)
		v1.GET("/orders/unassigned", s.GetUnassigned)
		v1.GET("/orders/:id/history", s.GetTimeHistory)
		v1.GET("/machines/:id/schedule", s.GetMachineSchedule)
		v1.POST("/estimate", s.PostEstimate)
		v1.GET("/monitor", s.GetMonitor)

		// Schedule commands, operator-authenticated
		commands := v1.Group("/")
		commands.Use(AuthMiddleware(s.jwtSecret))
		{
			commands.POST("/assignments", s.PostAssignment)
			commands.POST("/slots/:id/start", s.PostSlotStart)
			commands.POST("/slots/:id/complete", s.PostSlotComplete)
			commands.POST("/slots/:id/cancel", s.PostSlotCancel)
			commands.POST("/slots/:id/pause", s.PostSlotPause)
		}
	}
}
