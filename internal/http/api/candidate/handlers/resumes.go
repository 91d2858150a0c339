package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hiredeck/hiredeck/internal/models"
	"gorm.io/gorm"
)

// ResumeHandler manages a candidate's stored resumes.
type ResumeHandler struct {
	db *gorm.DB // Database handle for resume records.
}

// NewResumeHandler constructs a resume handler.
func NewResumeHandler(db *gorm.DB) *ResumeHandler {
	return &ResumeHandler{db: db}
}

// createResumeRequest captures the payload for registering a resume.
type createResumeRequest struct {
	Title    string `json:"title"`      // Resume title.
	FilePath string `json:"file_path"`  // Stored file location.
	Primary  bool   `json:"is_primary"` // Use as the profile default.
}

// Create registers a resume record. At most one resume is primary; marking
// a new primary demotes the previous one.
func (h *ResumeHandler) Create(c *gin.Context) {
	candidate, ok := currentCandidate(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body createResumeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	title := strings.TrimSpace(body.Title)
	filePath := strings.TrimSpace(body.FilePath)
	if title == "" || filePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and file_path are required"})
		return
	}

	resume := models.Resume{
		CandidateID: candidate.ID,
		Title:       title,
		FilePath:    filePath,
		IsPrimary:   body.Primary,
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if body.Primary {
			if errDemote := tx.Model(&models.Resume{}).
				Where("candidate_id = ? AND is_primary = ?", candidate.ID, true).
				Update("is_primary", false).Error; errDemote != nil {
				return errDemote
			}
		}
		return tx.Create(&resume).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create resume failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         resume.ID,
		"title":      resume.Title,
		"is_primary": resume.IsPrimary,
	})
}

// List returns the candidate's resumes.
func (h *ResumeHandler) List(c *gin.Context) {
	candidate, ok := currentCandidate(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var rows []models.Resume
	errFind := h.db.WithContext(c.Request.Context()).
		Where("candidate_id = ?", candidate.ID).
		Order("is_primary DESC, created_at DESC").
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list resumes failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":         row.ID,
			"title":      row.Title,
			"is_primary": row.IsPrimary,
			"created_at": row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"resumes": out})
}

// Delete removes one of the candidate's resumes.
func (h *ResumeHandler) Delete(c *gin.Context) {
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

	res := h.db.WithContext(c.Request.Context()).
		Where("candidate_id = ?", candidate.ID).
		Delete(&models.Resume{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
