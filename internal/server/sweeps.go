package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TriggerSweep runs one named sweep immediately, outside the ticker.
func (s *Server) TriggerSweep(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))

	if err := s.scheduler.RunJob(c.Request.Context(), name); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"job": name, "status": "completed"}})
}
