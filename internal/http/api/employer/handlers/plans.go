package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hiredeck/hiredeck/internal/models"
	"gorm.io/gorm"
)

// PlanHandler serves the public plan catalog.
type PlanHandler struct {
	db *gorm.DB // Database handle for plan records.
}

// NewPlanHandler constructs a plan handler.
func NewPlanHandler(db *gorm.DB) *PlanHandler {
	return &PlanHandler{db: db}
}

// List returns active plans ordered for display.
func (h *PlanHandler) List(c *gin.Context) {
	var rows []models.SubscriptionPlan
	errFind := h.db.WithContext(c.Request.Context()).
		Where("is_active = ?", true).
		Order("sort_order ASC, price ASC").
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list plans failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatPlan(&row))
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

// Get fetches one active plan by ID.
func (h *PlanHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var plan models.SubscriptionPlan
	errFind := h.db.WithContext(c.Request.Context()).
		Where("is_active = ?", true).
		First(&plan, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatPlan(&plan))
}

// formatPlan converts a plan model into a response payload. Gateway plan IDs
// are internal bookkeeping and never leave the API.
func (h *PlanHandler) formatPlan(p *models.SubscriptionPlan) gin.H {
	return gin.H{
		"id":                  p.ID,
		"name":                p.Name,
		"price":               p.Price,
		"currency":            p.Currency,
		"duration_days":       p.DurationDays,
		"job_posts_limit":     p.JobPostsLimit,
		"featured_jobs_limit": p.FeaturedJobsLimit,
		"resume_views_limit":  p.ResumeViewsLimit,
		"payment_type":        p.PaymentType,
		"is_featured":         p.IsFeatured,
	}
}
