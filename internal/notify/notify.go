package notify

import (
	"context"
	"fmt"

	"github.com/hiredeck/hiredeck/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Message is a notification to deliver to one recipient.
type Message struct {
	RecipientType models.RecipientType
	RecipientID   uint64
	Event         string
	Subject       string
	Body          string

	JobApplicationID *uint64
	SubscriptionID   *uint64
}

// Dispatcher delivers notifications. Dispatch is fire-and-forget: failures
// are logged and never propagate to the triggering operation.
type Dispatcher interface {
	Send(ctx context.Context, msg Message)
}

// StoreDispatcher persists notifications as database rows for in-app
// delivery. Email fan-out reads the same rows elsewhere.
type StoreDispatcher struct {
	db *gorm.DB
}

// NewStoreDispatcher constructs a StoreDispatcher.
func NewStoreDispatcher(db *gorm.DB) *StoreDispatcher { return &StoreDispatcher{db: db} }

// Send writes the notification row, logging on failure.
func (d *StoreDispatcher) Send(ctx context.Context, msg Message) {
	if d == nil || d.db == nil {
		return
	}

	row := models.Notification{
		RecipientType:    msg.RecipientType,
		RecipientID:      msg.RecipientID,
		Event:            msg.Event,
		Subject:          msg.Subject,
		Body:             msg.Body,
		JobApplicationID: msg.JobApplicationID,
		SubscriptionID:   msg.SubscriptionID,
	}
	if errCreate := d.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).WithFields(log.Fields{
			"event":          msg.Event,
			"recipient_type": msg.RecipientType,
			"recipient_id":   msg.RecipientID,
		}).Warn("notify: failed to record notification")
	}
}

// Event keys emitted by the core components.
const (
	EventApplicationStatusChanged = "application.status_changed"
	EventApplicationWithdrawn     = "application.withdrawn"
	EventSubscriptionActivated    = "subscription.activated"
	EventSubscriptionSuspended    = "subscription.suspended"
	EventSubscriptionCancelled    = "subscription.cancelled"
	EventSubscriptionResumed      = "subscription.resumed"
)

// StatusChangedSubject formats the subject for a hiring-stage transition.
func StatusChangedSubject(jobTitle string, status models.ApplicationStatus) string {
	return fmt.Sprintf("Your application for %q moved to %s", jobTitle, status)
}
