package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health returns the liveness state of the service, including database
// connectivity.
func (s *Server) Health(c *gin.Context) {
	status := "healthy"
	database := "ok"
	httpStatus := http.StatusOK

	sqlDB, err := s.DB.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		status = "unhealthy"
		database = "unavailable"
		httpStatus = http.StatusServiceUnavailable
	}

	payload := gin.H{
		"status":    status,
		"database":  database,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if startVal, exists := c.Get("serverStartTime"); exists {
		if start, ok := startVal.(time.Time); ok {
			payload["uptime"] = time.Since(start).String()
		}
	}

	c.JSON(httpStatus, payload)
}
