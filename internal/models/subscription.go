package models

import "time"

// PaymentProvider identifies the external gateway a subscription was paid through.
type PaymentProvider string

// PaymentProvider values.
const (
	// ProviderStripe is the Stripe gateway.
	ProviderStripe PaymentProvider = "stripe"
	// ProviderPayPal is the PayPal gateway.
	ProviderPayPal PaymentProvider = "paypal"
)

// Subscription is one employer's purchase of one plan for one period.
// Quota counters are a snapshot of the plan limits taken at activation and
// are decremented in place as the employer consumes them.
type Subscription struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	EmployerID uint64   `gorm:"not null;index"`        // Owning employer ID.
	Employer   Employer `gorm:"foreignKey:EmployerID"` // Owning employer record.

	SubscriptionPlanID uint64           `gorm:"not null;index"`                // Purchased plan ID.
	SubscriptionPlan   SubscriptionPlan `gorm:"foreignKey:SubscriptionPlanID"` // Purchased plan record.

	StartDate *time.Time `gorm:"index"` // Period start, set at activation.
	EndDate   *time.Time `gorm:"index"` // Period end, set at activation.

	AmountPaid float64 `gorm:"type:decimal(10,2);not null;default:0"` // Amount charged.
	Currency   string  `gorm:"type:varchar(8);not null;default:USD"`  // Charge currency code.

	PaymentProvider PaymentProvider `gorm:"type:varchar(16);not null"` // stripe or paypal.

	// PaymentReference is the gateway-side checkout session / order ID used
	// to correlate verification calls and one-time webhooks.
	PaymentReference string `gorm:"type:varchar(255);not null;index"`
	// GatewaySubscriptionID is the gateway-side recurring subscription ID;
	// empty for one-time purchases.
	GatewaySubscriptionID string `gorm:"type:varchar(255);index"`

	TransactionID string `gorm:"type:varchar(255)"` // Gateway transaction/capture ID.
	ReceiptPath   string `gorm:"type:text"`         // Optional offline payment proof path.

	JobPostsLeft     int `gorm:"not null;default:0"` // Remaining job postings.
	FeaturedJobsLeft int `gorm:"not null;default:0"` // Remaining featured postings.
	CVDownloadsLeft  int `gorm:"not null;default:0"` // Remaining CV downloads.

	IsActive    bool `gorm:"not null;default:false;index"` // Activated by verified payment.
	IsSuspended bool `gorm:"not null;default:false"`       // Set on gateway payment failure.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
