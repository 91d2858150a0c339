package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is an audit row recorded for every inbound gateway webhook
// delivery, processed or not, so failed events can be replayed manually.
type WebhookEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Gateway   string `gorm:"type:varchar(16);not null;index"`  // Originating gateway.
	EventType string `gorm:"type:varchar(128);not null;index"` // Gateway event type.

	Reference string `gorm:"type:varchar(255);index"` // Gateway-side reference the event keyed on.

	Payload datatypes.JSON `gorm:"type:jsonb"` // Raw event payload.

	Processed bool   `gorm:"not null;default:false"` // Whether routing succeeded.
	Error     string `gorm:"type:text"`              // Failure detail when not processed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Delivery timestamp.
}
