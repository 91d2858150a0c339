package models

import "time"

// RecipientType identifies which account type a notification targets.
type RecipientType string

// RecipientType values.
const (
	// RecipientEmployer targets an employer account.
	RecipientEmployer RecipientType = "employer"
	// RecipientCandidate targets a candidate account.
	RecipientCandidate RecipientType = "candidate"
)

// Notification is a dispatched message record keyed off hiring-stage
// transitions and subscription lifecycle events.
type Notification struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RecipientType RecipientType `gorm:"type:varchar(16);not null;index"` // employer or candidate.
	RecipientID   uint64        `gorm:"not null;index"`                  // Target account ID.

	Event   string `gorm:"type:varchar(64);not null"` // Event key, e.g. application.status_changed.
	Subject string `gorm:"type:varchar(255);not null"` // Message subject line.
	Body    string `gorm:"type:text"`                  // Message body.

	JobApplicationID *uint64 `gorm:"index"` // Related application, if any.
	SubscriptionID   *uint64 `gorm:"index"` // Related subscription, if any.

	ReadAt *time.Time `` // When the recipient read the notification.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
