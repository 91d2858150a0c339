package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/hiredeck/hiredeck/internal/models"
)

// currentCandidate returns the candidate loaded by the auth middleware.
func currentCandidate(c *gin.Context) (*models.Candidate, bool) {
	value, ok := c.Get("candidate")
	if !ok {
		return nil, false
	}
	candidate, ok := value.(*models.Candidate)
	return candidate, ok
}
