package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hiredeck/hiredeck/internal/models"
	"gorm.io/gorm"
)

// NotificationHandler lists and acknowledges employer notifications.
type NotificationHandler struct {
	db *gorm.DB // Database handle for notification records.
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{db: db}
}

// List returns the employer's notifications, newest first. Pass unread=true
// to filter to unread ones.
func (h *NotificationHandler) List(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	q := h.db.WithContext(c.Request.Context()).
		Where("recipient_type = ? AND recipient_id = ?", models.RecipientEmployer, employer.ID)
	if strings.TrimSpace(c.Query("unread")) == "true" {
		q = q.Where("read_at IS NULL")
	}

	var rows []models.Notification
	if errFind := q.Order("created_at DESC").Limit(100).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list notifications failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":              row.ID,
			"event":           row.Event,
			"subject":         row.Subject,
			"body":            row.Body,
			"application_id":  row.JobApplicationID,
			"subscription_id": row.SubscriptionID,
			"read_at":         row.ReadAt,
			"created_at":      row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

// MarkRead stamps one of the employer's notifications as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
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

	res := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("id = ? AND recipient_type = ? AND recipient_id = ?", id, models.RecipientEmployer, employer.ID).
		Update("read_at", time.Now().UTC())
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
