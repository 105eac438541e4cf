package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListPlans returns the active catalog localized for the requested
// language (?lang=tr, default en).
func (s *Server) ListPlans(c *gin.Context) {
	plans, err := s.planSvc.ListActive(c.Request.Context(), c.Query("lang"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}
