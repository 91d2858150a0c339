package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hiredeck/hiredeck/internal/hiring"
	"github.com/hiredeck/hiredeck/internal/models"
	"gorm.io/gorm"
)

// ApplicationHandler exposes the candidate side of the hiring pipeline.
type ApplicationHandler struct {
	db     *gorm.DB       // Database handle for application records.
	engine *hiring.Engine // Withdrawals and ownership checks.
}

// NewApplicationHandler constructs an application handler.
func NewApplicationHandler(db *gorm.DB, engine *hiring.Engine) *ApplicationHandler {
	return &ApplicationHandler{db: db, engine: engine}
}

// applyRequest captures the payload for applying to a job.
type applyRequest struct {
	CoverLetter string  `json:"cover_letter"` // Optional cover letter.
	ApplyVia    string  `json:"apply_via"`    // custom_cv or profile_cv.
	ResumeID    *uint64 `json:"resume_id"`    // Resume to attach for custom_cv.
}

// Apply submits an application to an active job. One application per
// candidate per job; duplicates are 409.
func (h *ApplicationHandler) Apply(c *gin.Context) {
	candidate, ok := currentCandidate(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	jobID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body applyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var job models.Job
	errJob := h.db.WithContext(c.Request.Context()).
		Where("is_active = ?", true).
		First(&job, jobID).Error
	if errJob != nil {
		if errors.Is(errJob, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	applyVia := models.ApplyVia(strings.TrimSpace(body.ApplyVia))
	if applyVia == "" {
		applyVia = models.ApplyViaProfileCV
	}
	if applyVia != models.ApplyViaCustomCV && applyVia != models.ApplyViaProfileCV {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid apply_via"})
		return
	}

	resumeID := body.ResumeID
	if applyVia == models.ApplyViaCustomCV {
		if resumeID == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "resume_id is required for custom_cv"})
			return
		}
	} else {
		// Profile applies attach the primary resume when one exists.
		var primary models.Resume
		errPrimary := h.db.WithContext(c.Request.Context()).
			Where("candidate_id = ? AND is_primary = ?", candidate.ID, true).
			First(&primary).Error
		if errPrimary == nil {
			resumeID = &primary.ID
		}
	}
	if resumeID != nil {
		var resume models.Resume
		errResume := h.db.WithContext(c.Request.Context()).
			Where("candidate_id = ?", candidate.ID).
			First(&resume, *resumeID).Error
		if errResume != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid resume_id"})
			return
		}
	}

	var existing int64
	h.db.WithContext(c.Request.Context()).Model(&models.JobApplication{}).
		Where("job_id = ? AND candidate_id = ?", jobID, candidate.ID).
		Count(&existing)
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "already applied"})
		return
	}

	app := models.JobApplication{
		JobID:       jobID,
		CandidateID: candidate.ID,
		ResumeID:    resumeID,
		CoverLetter: body.CoverLetter,
		ApplyVia:    applyVia,
		Status:      models.StatusApplied,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&app).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "apply failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":        app.ID,
		"job_id":    app.JobID,
		"status":    app.Status,
		"apply_via": app.ApplyVia,
	})
}

// List returns the candidate's applications, newest first.
func (h *ApplicationHandler) List(c *gin.Context) {
	candidate, ok := currentCandidate(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var rows []models.JobApplication
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Job").
		Where("candidate_id = ?", candidate.ID).
		Order("created_at DESC").
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list applications failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		entry := gin.H{
			"id":         row.ID,
			"job_id":     row.JobID,
			"job_title":  row.Job.Title,
			"status":     row.Status,
			"created_at": row.CreatedAt,
		}
		if row.Status == models.StatusWithdrawn {
			entry["withdrawn_at"] = row.WithdrawnAt
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"applications": out})
}

// withdrawRequest captures the payload for withdrawing an application.
type withdrawRequest struct {
	Reason string `json:"reason"` // Optional withdrawal reason.
}

// Withdraw withdraws the candidate's own application.
func (h *ApplicationHandler) Withdraw(c *gin.Context) {
	candidate, ok := currentCandidate(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body withdrawRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil && errBind.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	app, errWithdraw := h.engine.Withdraw(c.Request.Context(), candidate.ID, id, strings.TrimSpace(body.Reason))
	if errWithdraw != nil {
		switch {
		case errors.Is(errWithdraw, hiring.ErrApplicationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errWithdraw, hiring.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "not the owner"})
		case errors.Is(errWithdraw, hiring.ErrTerminalStatus):
			c.JSON(http.StatusConflict, gin.H{"error": "application is in a terminal state"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "withdraw failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           app.ID,
		"status":       app.Status,
		"withdrawn_at": app.WithdrawnAt,
	})
}
