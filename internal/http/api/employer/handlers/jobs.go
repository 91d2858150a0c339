package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hiredeck/hiredeck/internal/models"
	"github.com/hiredeck/hiredeck/internal/subscription"
	"gorm.io/gorm"
)

// JobHandler manages employer job postings. Creation and featuring consume
// subscription quota.
type JobHandler struct {
	db *gorm.DB // Database handle for job records.
}

// NewJobHandler constructs a job handler.
func NewJobHandler(db *gorm.DB) *JobHandler {
	return &JobHandler{db: db}
}

// errQuotaExhausted rolls back a quota-gated write on a denied decrement.
var errQuotaExhausted = errors.New("quota exhausted")

// createJobRequest captures the payload for posting a job.
type createJobRequest struct {
	Title       string  `json:"title"`       // Job title.
	Description string  `json:"description"` // Job description.
	Location    string  `json:"location"`    // Job location.
	SalaryMin   float64 `json:"salary_min"`  // Salary range lower bound.
	SalaryMax   float64 `json:"salary_max"`  // Salary range upper bound.
	Currency    string  `json:"currency"`    // Salary currency code.
	Featured    bool    `json:"featured"`    // Post as a featured job.
}

// Create posts a job, consuming one job-post quota unit (and one featured
// unit when requested). A quota denial is 402, not 500: the fix is buying a
// plan, not retrying.
func (h *JobHandler) Create(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body createJobRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(body.Currency))
	if currency == "" {
		currency = "USD"
	}
	job := models.Job{
		EmployerID:  employer.ID,
		Title:       title,
		Description: body.Description,
		Location:    strings.TrimSpace(body.Location),
		SalaryMin:   body.SalaryMin,
		SalaryMax:   body.SalaryMax,
		Currency:    currency,
		IsFeatured:  body.Featured,
		IsActive:    true,
	}

	// Quota decrements and the job insert commit together; a denial on
	// either counter (or a failed insert) leaves every counter untouched.
	denied := ""
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		ok, errDec := subscription.DecrementQuotaTx(tx, employer.ID, subscription.QuotaJobPosts)
		if errDec != nil {
			return errDec
		}
		if !ok {
			denied = "job post quota exhausted"
			return errQuotaExhausted
		}
		if body.Featured {
			okFeatured, errFeatured := subscription.DecrementQuotaTx(tx, employer.ID, subscription.QuotaFeaturedJobs)
			if errFeatured != nil {
				return errFeatured
			}
			if !okFeatured {
				denied = "featured job quota exhausted"
				return errQuotaExhausted
			}
		}
		return tx.Create(&job).Error
	})
	if errTx != nil {
		if denied != "" {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": denied})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create job failed"})
		return
	}
	c.JSON(http.StatusCreated, h.formatJob(&job))
}

// List returns the employer's jobs, newest first.
func (h *JobHandler) List(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var rows []models.Job
	errFind := h.db.WithContext(c.Request.Context()).
		Where("employer_id = ?", employer.ID).
		Order("created_at DESC").
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list jobs failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatJob(&row))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out})
}

// loadOwnedJob fetches a job and checks it belongs to the acting employer.
func (h *JobHandler) loadOwnedJob(c *gin.Context, employerID uint64) (*models.Job, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}

	var job models.Job
	if errFind := h.db.WithContext(c.Request.Context()).First(&job, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	if job.EmployerID != employerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the owner"})
		return nil, false
	}
	return &job, true
}

// Get fetches one of the employer's jobs.
func (h *JobHandler) Get(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	job, ok := h.loadOwnedJob(c, employer.ID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.formatJob(job))
}

// updateJobRequest captures optional fields for job updates.
type updateJobRequest struct {
	Title       *string  `json:"title"`       // Optional title update.
	Description *string  `json:"description"` // Optional description update.
	Location    *string  `json:"location"`    // Optional location update.
	SalaryMin   *float64 `json:"salary_min"`  // Optional salary lower bound.
	SalaryMax   *float64 `json:"salary_max"`  // Optional salary upper bound.
}

// Update applies job field updates. Featuring is a separate quota-gated call.
func (h *JobHandler) Update(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	job, ok := h.loadOwnedJob(c, employer.ID)
	if !ok {
		return
	}

	var body updateJobRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{
		"updated_at": time.Now().UTC(),
	}
	if body.Title != nil {
		title := strings.TrimSpace(*body.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title cannot be empty"})
			return
		}
		updates["title"] = title
	}
	if body.Description != nil {
		updates["description"] = *body.Description
	}
	if body.Location != nil {
		updates["location"] = strings.TrimSpace(*body.Location)
	}
	if body.SalaryMin != nil {
		updates["salary_min"] = *body.SalaryMin
	}
	if body.SalaryMax != nil {
		updates["salary_max"] = *body.SalaryMax
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Job{}).
		Where("id = ?", job.ID).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Feature promotes an existing job to featured, consuming one featured unit.
func (h *JobHandler) Feature(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	job, ok := h.loadOwnedJob(c, employer.ID)
	if !ok {
		return
	}
	if job.IsFeatured {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	denied := false
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		ok, errDec := subscription.DecrementQuotaTx(tx, employer.ID, subscription.QuotaFeaturedJobs)
		if errDec != nil {
			return errDec
		}
		if !ok {
			denied = true
			return errQuotaExhausted
		}
		return tx.Model(&models.Job{}).
			Where("id = ?", job.ID).
			Updates(map[string]any{"is_featured": true, "updated_at": time.Now().UTC()}).Error
	})
	if errTx != nil {
		if denied {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "featured job quota exhausted"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Close stops a job from accepting applications. No quota is refunded.
func (h *JobHandler) Close(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	job, ok := h.loadOwnedJob(c, employer.ID)
	if !ok {
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Job{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
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
		"is_active":   j.IsActive,
		"created_at":  j.CreatedAt,
	}
}
