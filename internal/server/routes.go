package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/courier/internal/middleware"
)

// RegisterRoutes sets up the ingress API and the session endpoint.
func (s *Server) RegisterRoutes() {
	rateLimiter := middleware.RateLimiter()

	s.E.POST("/publish", s.handler.Publish, rateLimiter)
	s.E.GET("/clients", s.handler.Clients)
	s.E.GET("/messages", s.handler.Messages)
	s.E.GET("/consumptions", s.handler.Consumptions)

	s.E.GET("/ws", s.Gateway.Handler())

	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}
