package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hiredeck/hiredeck/internal/hiring"
	"github.com/hiredeck/hiredeck/internal/models"
	"github.com/hiredeck/hiredeck/internal/subscription"
	"gorm.io/gorm"
)

// ApplicationHandler exposes the employer side of the hiring pipeline.
type ApplicationHandler struct {
	db     *gorm.DB                   // Database handle for application records.
	engine *hiring.Engine             // Stage transitions and ownership checks.
	orch   *subscription.Orchestrator // CV-download quota gate.
}

// NewApplicationHandler constructs an application handler.
func NewApplicationHandler(db *gorm.DB, engine *hiring.Engine, orch *subscription.Orchestrator) *ApplicationHandler {
	return &ApplicationHandler{db: db, engine: engine, orch: orch}
}

// ListByJob returns one pipeline bucket of a job's applications. The bucket
// query parameter defaults to unsorted.
func (h *ApplicationHandler) ListByJob(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	jobID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	bucket := hiring.PipelineBucket(strings.TrimSpace(c.DefaultQuery("bucket", string(hiring.BucketUnsorted))))
	apps, errList := h.engine.ListByBucket(c.Request.Context(), employer.ID, jobID, bucket)
	if errList != nil {
		h.renderError(c, errList)
		return
	}

	out := make([]gin.H, 0, len(apps))
	for _, app := range apps {
		out = append(out, h.formatApplication(&app))
	}
	c.JSON(http.StatusOK, gin.H{"applications": out, "bucket": bucket})
}

// changeStatusRequest captures the payload for a single stage transition.
type changeStatusRequest struct {
	Status string `json:"status"` // Target hiring stage.
	Notes  string `json:"notes"`  // Optional employer notes.
}

// ChangeStatus moves one application to a new hiring stage.
func (h *ApplicationHandler) ChangeStatus(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body changeStatusRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	app, errChange := h.engine.ChangeStatus(c.Request.Context(), employer.ID, id,
		models.ApplicationStatus(strings.TrimSpace(body.Status)), body.Notes)
	if errChange != nil {
		h.renderError(c, errChange)
		return
	}
	c.JSON(http.StatusOK, h.formatApplication(app))
}

// batchChangeStatusRequest captures the payload for a batch transition.
type batchChangeStatusRequest struct {
	ApplicationIDs []uint64 `json:"application_ids"` // Applications to move.
	Status         string   `json:"status"`          // Target hiring stage.
	Notes          string   `json:"notes"`           // Optional employer notes.
}

// BatchChangeStatus moves many applications best-effort and reports how many
// actually changed. Forbidden or terminal items are skipped, not fatal.
func (h *ApplicationHandler) BatchChangeStatus(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body batchChangeStatusRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body.ApplicationIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "application_ids is required"})
		return
	}

	changed, errBatch := h.engine.BatchChangeStatus(c.Request.Context(), employer.ID,
		body.ApplicationIDs, models.ApplicationStatus(strings.TrimSpace(body.Status)), body.Notes)
	if errBatch != nil {
		h.renderError(c, errBatch)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"changed":   changed,
		"requested": len(body.ApplicationIDs),
	})
}

// DownloadResume serves the resume attached to an application. Every
// download consumes one CV-download quota unit first; a denial never leaks
// the file.
func (h *ApplicationHandler) DownloadResume(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var app models.JobApplication
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Job").Preload("Resume").
		First(&app, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if app.Job.EmployerID != employer.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the owner"})
		return
	}
	if app.Resume == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no resume attached"})
		return
	}

	allowed, errQuota := h.orch.DecrementCVDownloads(c.Request.Context(), employer.ID)
	if errQuota != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quota check failed"})
		return
	}
	if !allowed {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "cv download quota exhausted"})
		return
	}

	c.FileAttachment(app.Resume.FilePath, app.Resume.Title+".pdf")
}

// renderError maps hiring-engine failures to HTTP responses.
func (h *ApplicationHandler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, hiring.ErrApplicationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, hiring.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the owner"})
	case errors.Is(err, hiring.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
	case errors.Is(err, hiring.ErrTerminalStatus):
		c.JSON(http.StatusConflict, gin.H{"error": "application is in a terminal state"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "request failed"})
	}
}

// formatApplication converts an application model into a response payload.
func (h *ApplicationHandler) formatApplication(a *models.JobApplication) gin.H {
	out := gin.H{
		"id":             a.ID,
		"job_id":         a.JobID,
		"candidate_id":   a.CandidateID,
		"status":         a.Status,
		"apply_via":      a.ApplyVia,
		"cover_letter":   a.CoverLetter,
		"employer_notes": a.EmployerNotes,
		"created_at":     a.CreatedAt,
	}
	if a.Status == models.StatusWithdrawn {
		out["withdrawal_reason"] = a.WithdrawalReason
		out["withdrawn_at"] = a.WithdrawnAt
	}
	return out
}
