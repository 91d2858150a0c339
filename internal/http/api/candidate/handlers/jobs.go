package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hiredeck/hiredeck/internal/db"
	"github.com/hiredeck/hiredeck/internal/models"
	"gorm.io/gorm"
)

// JobHandler serves the public job board.
type JobHandler struct {
	db *gorm.DB // Database handle for job records.
}

// NewJobHandler constructs a job handler.
func NewJobHandler(conn *gorm.DB) *JobHandler {
	return &JobHandler{db: conn}
}

// List returns active jobs, featured first, optionally filtered by a search
// term over title and location.
func (h *JobHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).
		Model(&models.Job{}).
		Where("is_active = ?", true)

	if term := strings.TrimSpace(c.Query("q")); term != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+term+"%")
		q = q.Where(db.CaseInsensitiveLikeExpr(h.db, "title")+" OR "+db.CaseInsensitiveLikeExpr(h.db, "location"),
			pattern, pattern)
	}

	var rows []models.Job
	if errFind := q.Order("is_featured DESC, created_at DESC").Limit(100).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list jobs failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatJob(&row))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out})
}

// Get fetches one active job by ID.
func (h *JobHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var job models.Job
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Employer").
		Where("is_active = ?", true).
		First(&job, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := h.formatJob(&job)
	out["company"] = gin.H{
		"name":     job.Employer.CompanyName,
		"website":  job.Employer.Website,
		"location": job.Employer.Location,
	}
	c.JSON(http.StatusOK, out)
}

// formatJob converts a job model into a response payload.
func (h *JobHandler) formatJob(j *models.Job) gin.H {
	return gin.H{
		"id":          j.ID,
		"title":       j.Title,
		"description": j.Description,
		"location":    j.Location,
		"salary_min":  j.SalaryMin,
		"salary_max":  j.SalaryMax,
		"currency":    j.Currency,
		"is_featured": j.IsFeatured,
		"created_at":  j.CreatedAt,
	}
}
