package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hiredeck/hiredeck/internal/gateway"
	"github.com/hiredeck/hiredeck/internal/metrics"
	"github.com/hiredeck/hiredeck/internal/models"
	"github.com/hiredeck/hiredeck/internal/notify"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Typed failures surfaced to the HTTP layer.
var (
	// ErrPlanNotFound indicates the referenced plan does not exist.
	ErrPlanNotFound = errors.New("subscription: plan not found")
	// ErrPlanInactive indicates the plan no longer accepts new subscriptions.
	ErrPlanInactive = errors.New("subscription: plan is inactive")
	// ErrSubscriptionNotFound indicates no matching subscription row.
	ErrSubscriptionNotFound = errors.New("subscription: not found")
	// ErrPaymentNotCompleted indicates verification reported an unpaid reference.
	ErrPaymentNotCompleted = errors.New("subscription: payment not completed")
	// ErrSubscriptionExpired indicates a resume attempt outside grace terms.
	ErrSubscriptionExpired = errors.New("subscription: period has expired")
)

// Orchestrator coordinates the plan catalog, gateway clients and the
// subscription ledger. It is the single source of truth for turning a
// plan-selection intent into a paid, quota-bearing subscription.
type Orchestrator struct {
	db       *gorm.DB
	gateways *gateway.Factory
	notifier notify.Dispatcher
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(db *gorm.DB, gateways *gateway.Factory, notifier notify.Dispatcher) *Orchestrator {
	return &Orchestrator{db: db, gateways: gateways, notifier: notifier}
}

// PaymentLink is the result of starting a checkout.
type PaymentLink struct {
	RedirectURL string // Gateway URL the employer completes payment at.
	ReferenceID string // Gateway reference used for later verification.
}

// PaymentData carries caller-supplied payment confirmation details.
type PaymentData struct {
	Reference             string  // Gateway session/order ID.
	TransactionID         string  // Gateway transaction/capture ID.
	GatewaySubscriptionID string  // Gateway recurring subscription ID.
	AmountPaid            float64 // Confirmed amount; falls back to plan price.
	Currency              string  // Confirmed currency; falls back to plan currency.
}

// VerifyResult reports the outcome of a payment verification.
type VerifyResult struct {
	Success bool
	Message string
}

// loadPlan fetches a plan by ID, mapping record-not-found to ErrPlanNotFound.
func (o *Orchestrator) loadPlan(ctx context.Context, planID uint64) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if errFind := o.db.WithContext(ctx).First(&plan, planID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("subscription: load plan: %w", errFind)
	}
	return &plan, nil
}

// GeneratePaymentLink starts a gateway checkout for the plan and records a
// pending subscription row tagged with the gateway reference. The plan must
// be active; gateway failures surface as *gateway.Error.
func (o *Orchestrator) GeneratePaymentLink(ctx context.Context, employer *models.Employer, planID uint64, gatewayName, callbackURL string) (*PaymentLink, error) {
	plan, errPlan := o.loadPlan(ctx, planID)
	if errPlan != nil {
		return nil, errPlan
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}

	gw, errGateway := o.gateways.Get(gatewayName)
	if errGateway != nil {
		return nil, errGateway
	}

	sess, errCheckout := gw.CreateCheckout(ctx, gateway.CheckoutParams{
		Plan:          plan,
		EmployerID:    employer.ID,
		EmployerEmail: employer.Email,
		SuccessURL:    callbackURL,
		CancelURL:     callbackURL,
	})
	if errCheckout != nil {
		return nil, errCheckout
	}

	// EnsurePlan may have minted a gateway-side plan ID during checkout.
	if errSave := o.db.WithContext(ctx).Model(&models.SubscriptionPlan{}).
		Where("id = ?", plan.ID).
		Update("gateway_plan_ids", plan.GatewayPlanIDs).Error; errSave != nil {
		return nil, fmt.Errorf("subscription: persist gateway plan ids: %w", errSave)
	}

	pending := models.Subscription{
		EmployerID:            employer.ID,
		SubscriptionPlanID:    plan.ID,
		Currency:              plan.Currency,
		PaymentProvider:       models.PaymentProvider(gw.Name()),
		PaymentReference:      sess.Reference,
		GatewaySubscriptionID: sess.GatewaySubscriptionID,
		IsActive:              false,
	}
	if errCreate := o.db.WithContext(ctx).Create(&pending).Error; errCreate != nil {
		return nil, fmt.Errorf("subscription: create pending row: %w", errCreate)
	}

	return &PaymentLink{RedirectURL: sess.RedirectURL, ReferenceID: sess.Reference}, nil
}

// VerifyPayment confirms a checkout reference completed at the gateway.
// Idempotent: a reference whose local subscription is already active
// reports success without another gateway call or charge. Verification
// does not activate; SubscribeToPlan commits separately so both steps can
// be retried independently.
func (o *Orchestrator) VerifyPayment(ctx context.Context, reference, gatewayName string) (VerifyResult, error) {
	var existing models.Subscription
	errFind := o.db.WithContext(ctx).
		Where("payment_reference = ?", reference).
		First(&existing).Error
	if errFind == nil && existing.IsActive {
		return VerifyResult{Success: true, Message: "payment already verified"}, nil
	}

	gw, errGateway := o.gateways.Get(gatewayName)
	if errGateway != nil {
		return VerifyResult{}, errGateway
	}

	status, errVerify := gw.VerifyPayment(ctx, reference)
	if errVerify != nil {
		return VerifyResult{}, errVerify
	}
	if !status.Paid {
		return VerifyResult{Success: false, Message: "payment not completed"}, nil
	}

	metrics.PaymentsVerified.WithLabelValues(gw.Name()).Inc()
	return VerifyResult{Success: true, Message: "payment verified"}, nil
}

// activate finalizes a subscription row inside tx: quota snapshot from the
// plan, period dates, payment details, single-active-subscription rule.
// The activation is claimed with a conditional UPDATE on is_active, so a
// webhook delivery and an in-flight SubscribeToPlan that both read the row
// as inactive cannot double-apply the quota grant; the loser sees zero
// affected rows and no-ops.
func activate(tx *gorm.DB, sub *models.Subscription, plan *models.SubscriptionPlan, data PaymentData, receiptPath string) error {
	claim := tx.Model(&models.Subscription{}).
		Where("id = ? AND is_active = ?", sub.ID, false).
		Update("is_active", true)
	if claim.Error != nil {
		return fmt.Errorf("claim activation: %w", claim.Error)
	}
	if claim.RowsAffected == 0 {
		// A concurrent writer activated first. Reload so the caller's
		// struct reflects the winning activation.
		if errReload := tx.First(sub, sub.ID).Error; errReload != nil {
			return fmt.Errorf("reload subscription: %w", errReload)
		}
		return nil
	}

	now := time.Now().UTC()
	end := now.AddDate(0, 0, plan.DurationDays)

	amount := data.AmountPaid
	if amount == 0 {
		amount = plan.Price
	}
	currency := data.Currency
	if currency == "" {
		currency = plan.Currency
	}

	// The previous active subscription, if any, stops governing quotas.
	if errDeactivate := tx.Model(&models.Subscription{}).
		Where("employer_id = ? AND is_active = ? AND id <> ?", sub.EmployerID, true, sub.ID).
		Updates(map[string]any{"is_active": false, "updated_at": now}).Error; errDeactivate != nil {
		return fmt.Errorf("deactivate previous: %w", errDeactivate)
	}

	sub.SubscriptionPlanID = plan.ID
	sub.StartDate = &now
	sub.EndDate = &end
	sub.AmountPaid = amount
	sub.Currency = currency
	sub.JobPostsLeft = plan.JobPostsLimit
	sub.FeaturedJobsLeft = plan.FeaturedJobsLimit
	sub.CVDownloadsLeft = plan.ResumeViewsLimit
	sub.IsActive = true
	sub.IsSuspended = false
	sub.UpdatedAt = now
	if data.TransactionID != "" {
		sub.TransactionID = data.TransactionID
	}
	if data.GatewaySubscriptionID != "" {
		sub.GatewaySubscriptionID = data.GatewaySubscriptionID
	}
	if receiptPath != "" {
		sub.ReceiptPath = receiptPath
	}

	if errSave := tx.Save(sub).Error; errSave != nil {
		return fmt.Errorf("save subscription: %w", errSave)
	}
	return nil
}

// SubscribeToPlan finalizes a pending subscription into an active one,
// snapshotting the plan's quota limits. Callers must have verified payment
// first; the orchestrator does not re-verify here. When no pending row
// matches the reference (manual/offline payments) a new row is created.
func (o *Orchestrator) SubscribeToPlan(ctx context.Context, employer *models.Employer, planID uint64, data PaymentData, gatewayName, receiptPath string) (*models.Subscription, error) {
	plan, errPlan := o.loadPlan(ctx, planID)
	if errPlan != nil {
		return nil, errPlan
	}

	var sub models.Subscription
	errTx := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		errFind := tx.
			Where("employer_id = ? AND payment_reference = ?", employer.ID, data.Reference).
			First(&sub).Error
		if errFind != nil {
			if !errors.Is(errFind, gorm.ErrRecordNotFound) {
				return errFind
			}
			sub = models.Subscription{
				EmployerID:         employer.ID,
				SubscriptionPlanID: plan.ID,
				PaymentProvider:    models.PaymentProvider(gatewayName),
				PaymentReference:   data.Reference,
			}
			if errCreate := tx.Create(&sub).Error; errCreate != nil {
				return errCreate
			}
		}
		return activate(tx, &sub, plan, data, receiptPath)
	})
	if errTx != nil {
		return nil, fmt.Errorf("subscription: subscribe: %w", errTx)
	}

	o.notifier.Send(ctx, notify.Message{
		RecipientType:  models.RecipientEmployer,
		RecipientID:    employer.ID,
		Event:          notify.EventSubscriptionActivated,
		Subject:        fmt.Sprintf("Your %s subscription is active", plan.Name),
		SubscriptionID: &sub.ID,
	})
	return &sub, nil
}

// CompleteCheckout verifies a payment reference and, when paid, activates
// the pending subscription in one step, removing the crash window between
// the two separate calls.
func (o *Orchestrator) CompleteCheckout(ctx context.Context, employer *models.Employer, reference, gatewayName string) (*models.Subscription, error) {
	var pending models.Subscription
	if errFind := o.db.WithContext(ctx).
		Where("employer_id = ? AND payment_reference = ?", employer.ID, reference).
		First(&pending).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("subscription: load pending: %w", errFind)
	}
	if pending.IsActive {
		return &pending, nil
	}

	gw, errGateway := o.gateways.Get(gatewayName)
	if errGateway != nil {
		return nil, errGateway
	}
	status, errVerify := gw.VerifyPayment(ctx, reference)
	if errVerify != nil {
		return nil, errVerify
	}
	if !status.Paid {
		return nil, ErrPaymentNotCompleted
	}
	metrics.PaymentsVerified.WithLabelValues(gw.Name()).Inc()

	return o.SubscribeToPlan(ctx, employer, pending.SubscriptionPlanID, PaymentData{
		Reference:             reference,
		TransactionID:         status.TransactionID,
		GatewaySubscriptionID: status.GatewaySubscriptionID,
		AmountPaid:            status.AmountPaid,
		Currency:              status.Currency,
	}, gatewayName, "")
}

// UpdateSubscription switches a subscription to a new plan in place. The
// new period replaces the old entirely; there is no proration.
func (o *Orchestrator) UpdateSubscription(ctx context.Context, sub *models.Subscription, newPlanID uint64, data PaymentData, gatewayName, receiptPath string) (*models.Subscription, error) {
	plan, errPlan := o.loadPlan(ctx, newPlanID)
	if errPlan != nil {
		return nil, errPlan
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}

	errTx := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if data.Reference != "" {
			sub.PaymentReference = data.Reference
		}
		sub.PaymentProvider = models.PaymentProvider(gatewayName)
		// Drop the current activation so the new plan's snapshot can
		// claim the row.
		if errDrop := tx.Model(&models.Subscription{}).
			Where("id = ?", sub.ID).
			Update("is_active", false).Error; errDrop != nil {
			return errDrop
		}
		sub.IsActive = false
		return activate(tx, sub, plan, data, receiptPath)
	})
	if errTx != nil {
		return nil, fmt.Errorf("subscription: update: %w", errTx)
	}
	return sub, nil
}

// Quota kinds accepted by DecrementQuota.
const (
	QuotaJobPosts     = "job_posts"
	QuotaFeaturedJobs = "featured_jobs"
	QuotaCVDownloads  = "cv_downloads"
)

// quotaColumns maps quota kinds to their counter columns.
var quotaColumns = map[string]string{
	QuotaJobPosts:     "job_posts_left",
	QuotaFeaturedJobs: "featured_jobs_left",
	QuotaCVDownloads:  "cv_downloads_left",
}

// DecrementQuota atomically consumes one unit of the given quota from the
// employer's governing subscription. The decrement is a single conditional
// UPDATE checked by affected-row count, so concurrent calls can never
// over-consume. Returns false without mutating state when the counter is
// exhausted or no governing subscription exists.
func (o *Orchestrator) DecrementQuota(ctx context.Context, employerID uint64, kind string) (bool, error) {
	return DecrementQuotaTx(o.db.WithContext(ctx), employerID, kind)
}

// DecrementQuotaTx is DecrementQuota against a caller-supplied transaction,
// for writes that must consume quota and insert their row atomically (a
// denial or failed insert rolls both back).
func DecrementQuotaTx(tx *gorm.DB, employerID uint64, kind string) (bool, error) {
	column, ok := quotaColumns[kind]
	if !ok {
		return false, fmt.Errorf("subscription: unknown quota kind %q", kind)
	}

	now := time.Now().UTC()
	res := tx.Model(&models.Subscription{}).
		Where("employer_id = ? AND is_active = ? AND is_suspended = ?", employerID, true, false).
		Where("end_date >= ?", now).
		Where(column+" > 0").
		Updates(map[string]any{
			column:       gorm.Expr(column + " - 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("subscription: decrement %s: %w", kind, res.Error)
	}
	if res.RowsAffected == 0 {
		metrics.QuotaDenied.WithLabelValues(kind).Inc()
		return false, nil
	}
	return true, nil
}

// DecrementCVDownloads consumes one CV download. This is the quota gate in
// front of every resume download.
func (o *Orchestrator) DecrementCVDownloads(ctx context.Context, employerID uint64) (bool, error) {
	return o.DecrementQuota(ctx, employerID, QuotaCVDownloads)
}

// DecrementJobPosts consumes one job posting slot.
func (o *Orchestrator) DecrementJobPosts(ctx context.Context, employerID uint64) (bool, error) {
	return o.DecrementQuota(ctx, employerID, QuotaJobPosts)
}

// DecrementFeaturedJobs consumes one featured posting slot.
func (o *Orchestrator) DecrementFeaturedJobs(ctx context.Context, employerID uint64) (bool, error) {
	return o.DecrementQuota(ctx, employerID, QuotaFeaturedJobs)
}

// CancelSubscription cancels recurring billing at the gateway, then
// deactivates the local row. When the gateway call fails the local state is
// left untouched and false is returned, so the employer is never cut off
// from a subscription that is still billing them.
func (o *Orchestrator) CancelSubscription(ctx context.Context, sub *models.Subscription) bool {
	if sub.GatewaySubscriptionID != "" {
		gw, errGateway := o.gateways.Get(string(sub.PaymentProvider))
		if errGateway != nil {
			log.WithError(errGateway).WithField("subscription_id", sub.ID).
				Warn("subscription: cancel: unknown gateway")
			return false
		}
		if errCancel := gw.CancelSubscription(ctx, sub.GatewaySubscriptionID); errCancel != nil {
			log.WithError(errCancel).WithFields(log.Fields{
				"subscription_id": sub.ID,
				"gateway":         sub.PaymentProvider,
			}).Warn("subscription: gateway cancel failed, keeping local state")
			return false
		}
	}

	now := time.Now().UTC()
	if errUpdate := o.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", sub.ID).
		Updates(map[string]any{"is_active": false, "updated_at": now}).Error; errUpdate != nil {
		log.WithError(errUpdate).WithField("subscription_id", sub.ID).
			Warn("subscription: cancel: local update failed")
		return false
	}
	sub.IsActive = false

	o.notifier.Send(ctx, notify.Message{
		RecipientType:  models.RecipientEmployer,
		RecipientID:    sub.EmployerID,
		Event:          notify.EventSubscriptionCancelled,
		Subject:        "Your subscription has been cancelled",
		SubscriptionID: &sub.ID,
	})
	return true
}

// Suspend marks a subscription suspended, typically after a gateway-reported
// payment failure.
func (o *Orchestrator) Suspend(ctx context.Context, subscriptionID uint64) error {
	res := o.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", subscriptionID).
		Updates(map[string]any{"is_suspended": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("subscription: suspend: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}

	var sub models.Subscription
	if errFind := o.db.WithContext(ctx).First(&sub, subscriptionID).Error; errFind == nil {
		o.notifier.Send(ctx, notify.Message{
			RecipientType:  models.RecipientEmployer,
			RecipientID:    sub.EmployerID,
			Event:          notify.EventSubscriptionSuspended,
			Subject:        "Your subscription has been suspended",
			Body:           "A payment failed at the gateway. Update billing to resume service.",
			SubscriptionID: &sub.ID,
		})
	}
	return nil
}

// Resume lifts a suspension without re-payment when the period has not yet
// expired (the grace rule).
func (o *Orchestrator) Resume(ctx context.Context, subscriptionID uint64) error {
	var sub models.Subscription
	if errFind := o.db.WithContext(ctx).First(&sub, subscriptionID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrSubscriptionNotFound
		}
		return fmt.Errorf("subscription: resume: %w", errFind)
	}
	if sub.EndDate != nil && sub.EndDate.Before(time.Now().UTC()) {
		return ErrSubscriptionExpired
	}

	if errUpdate := o.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", sub.ID).
		Updates(map[string]any{"is_suspended": false, "updated_at": time.Now().UTC()}).Error; errUpdate != nil {
		return fmt.Errorf("subscription: resume: %w", errUpdate)
	}

	o.notifier.Send(ctx, notify.Message{
		RecipientType:  models.RecipientEmployer,
		RecipientID:    sub.EmployerID,
		Event:          notify.EventSubscriptionResumed,
		Subject:        "Your subscription has been resumed",
		SubscriptionID: &sub.ID,
	})
	return nil
}

// GetActiveSubscription returns the most recently created subscription that
// currently governs quota consumption, or nil when the employer has none.
func (o *Orchestrator) GetActiveSubscription(ctx context.Context, employerID uint64) (*models.Subscription, error) {
	var sub models.Subscription
	errFind := o.db.WithContext(ctx).
		Where("employer_id = ? AND is_active = ? AND is_suspended = ?", employerID, true, false).
		Where("end_date >= ?", time.Now().UTC()).
		Order("created_at DESC").
		First(&sub).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("subscription: active lookup: %w", errFind)
	}
	return &sub, nil
}

// ExpireOverdue deactivates subscriptions whose period has passed. Run
// periodically so read paths are not the only expiry enforcement.
func (o *Orchestrator) ExpireOverdue(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res := o.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("is_active = ? AND end_date < ?", true, now).
		Updates(map[string]any{"is_active": false, "updated_at": now})
	if res.Error != nil {
		return 0, fmt.Errorf("subscription: expire sweep: %w", res.Error)
	}
	return res.RowsAffected, nil
}
