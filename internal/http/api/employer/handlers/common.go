package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/hiredeck/hiredeck/internal/models"
)

// currentEmployer returns the employer loaded by the auth middleware.
func currentEmployer(c *gin.Context) (*models.Employer, bool) {
	value, ok := c.Get("employer")
	if !ok {
		return nil, false
	}
	employer, ok := value.(*models.Employer)
	return employer, ok
}
