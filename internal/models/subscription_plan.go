package models

import (
	"time"

	"gorm.io/datatypes"
)

// PlanPaymentType distinguishes one-time purchases from recurring billing.
type PlanPaymentType string

// PlanPaymentType values.
const (
	// PlanPaymentOneTime charges once for a fixed period.
	PlanPaymentOneTime PlanPaymentType = "one_time"
	// PlanPaymentRecurring bills automatically through the gateway.
	PlanPaymentRecurring PlanPaymentType = "recurring"
)

// SubscriptionPlan is a catalog entry describing a purchasable tier.
// Quota limits are copied onto subscriptions at activation; later plan
// edits never affect issued subscriptions.
type SubscriptionPlan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string  `gorm:"type:varchar(255);not null"`            // Plan name.
	Price    float64 `gorm:"type:decimal(10,2);not null;default:0"` // Plan price.
	Currency string  `gorm:"type:varchar(8);not null;default:USD"`  // Price currency code.

	DurationDays int `gorm:"not null;default:30"` // Subscription period length in days.

	JobPostsLimit     int `gorm:"not null;default:0"` // Job postings included.
	FeaturedJobsLimit int `gorm:"not null;default:0"` // Featured postings included.
	ResumeViewsLimit  int `gorm:"not null;default:0"` // CV downloads included.

	PaymentType PlanPaymentType `gorm:"type:varchar(16);not null;default:one_time"` // one_time or recurring.

	// GatewayPlanIDs maps a gateway name to the remote plan/price identifier
	// created on first use, e.g. {"stripe":"price_123","paypal":"P-456"}.
	GatewayPlanIDs datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"`

	SortOrder  int  `gorm:"not null;default:0"`     // Display ordering weight.
	IsActive   bool `gorm:"not null;default:true"`  // Whether new subscriptions are allowed.
	IsFeatured bool `gorm:"not null;default:false"` // Highlighted in plan listings.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
