package subscription

import (
	"context"
	"errors"
	"net/http"

	"github.com/hiredeck/hiredeck/internal/gateway"
	"github.com/hiredeck/hiredeck/internal/metrics"
	"github.com/hiredeck/hiredeck/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// HandleWebhook processes one inbound gateway webhook delivery. The payload
// signature is verified before any field is trusted; a tampered payload
// touches no subscription state. Every delivery leaves a WebhookEvent audit
// row. Returns true only when the event was routed and applied (no-op event
// types count as applied).
func (o *Orchestrator) HandleWebhook(ctx context.Context, gatewayName string, payload []byte, header http.Header) bool {
	audit := models.WebhookEvent{
		Gateway: gatewayName,
		Payload: datatypes.JSON(payload),
	}

	gw, errGateway := o.gateways.Get(gatewayName)
	if errGateway != nil {
		return o.finishWebhook(ctx, &audit, false, errGateway)
	}

	event, errParse := gw.ParseWebhook(ctx, payload, header)
	if errParse != nil {
		metrics.WebhookEvents.WithLabelValues(gatewayName, "rejected").Inc()
		return o.finishWebhook(ctx, &audit, false, errParse)
	}
	audit.EventType = event.RawType
	audit.Reference = event.Reference
	if audit.Reference == "" {
		audit.Reference = event.SubscriptionID
	}

	var errRoute error
	switch event.Type {
	case gateway.EventCheckoutCompleted:
		errRoute = o.webhookActivate(ctx, event)
	case gateway.EventPaymentFailed:
		errRoute = o.webhookSuspend(ctx, event)
	case gateway.EventSubscriptionCancelled:
		errRoute = o.webhookCancel(ctx, event)
	case gateway.EventTransactionRecorded:
		errRoute = o.webhookRecordTransaction(ctx, event)
	case gateway.EventIgnored:
		// Unhandled event types acknowledge without touching state.
	}

	result := "processed"
	if errRoute != nil {
		result = "failed"
	}
	metrics.WebhookEvents.WithLabelValues(gatewayName, result).Inc()
	return o.finishWebhook(ctx, &audit, errRoute == nil, errRoute)
}

// finishWebhook records the audit row and logs failures with enough
// context to replay the event manually.
func (o *Orchestrator) finishWebhook(ctx context.Context, audit *models.WebhookEvent, ok bool, cause error) bool {
	audit.Processed = ok
	if cause != nil {
		audit.Error = cause.Error()
		log.WithError(cause).WithFields(log.Fields{
			"gateway":    audit.Gateway,
			"event_type": audit.EventType,
			"reference":  audit.Reference,
		}).Warn("subscription: webhook not processed")
	}
	if errCreate := o.db.WithContext(ctx).Create(audit).Error; errCreate != nil {
		log.WithError(errCreate).Warn("subscription: failed to record webhook audit row")
	}
	return ok
}

// findByEvent resolves the local subscription a gateway event refers to:
// payment_reference for one-time flows, gateway subscription ID for
// recurring flows. Webhooks can race local record creation, so "not found"
// is an expected outcome the caller reports rather than panics on.
func (o *Orchestrator) findByEvent(ctx context.Context, event *gateway.Event) (*models.Subscription, error) {
	var sub models.Subscription

	if event.Reference != "" {
		errFind := o.db.WithContext(ctx).
			Where("payment_reference = ?", event.Reference).
			First(&sub).Error
		if errFind == nil {
			return &sub, nil
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, errFind
		}
	}

	if event.SubscriptionID != "" {
		errFind := o.db.WithContext(ctx).
			Where("gateway_subscription_id = ?", event.SubscriptionID).
			First(&sub).Error
		if errFind == nil {
			return &sub, nil
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, errFind
		}
	}

	return nil, ErrSubscriptionNotFound
}

// webhookActivate activates the subscription a completed checkout refers to.
func (o *Orchestrator) webhookActivate(ctx context.Context, event *gateway.Event) error {
	sub, errFind := o.findByEvent(ctx, event)
	if errFind != nil {
		return errFind
	}
	if sub.IsActive {
		return nil
	}

	plan, errPlan := o.loadPlan(ctx, sub.SubscriptionPlanID)
	if errPlan != nil {
		return errPlan
	}

	return o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return activate(tx, sub, plan, PaymentData{
			TransactionID:         event.TransactionID,
			GatewaySubscriptionID: event.SubscriptionID,
		}, "")
	})
}

// webhookSuspend suspends the subscription after a failed recurring charge.
func (o *Orchestrator) webhookSuspend(ctx context.Context, event *gateway.Event) error {
	sub, errFind := o.findByEvent(ctx, event)
	if errFind != nil {
		return errFind
	}
	return o.Suspend(ctx, sub.ID)
}

// webhookCancel deactivates the subscription after a gateway-side
// cancellation. The gateway already stopped billing, so only local state
// is updated here.
func (o *Orchestrator) webhookCancel(ctx context.Context, event *gateway.Event) error {
	sub, errFind := o.findByEvent(ctx, event)
	if errFind != nil {
		return errFind
	}
	if !sub.IsActive {
		return nil
	}
	if errUpdate := o.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", sub.ID).
		Update("is_active", false).Error; errUpdate != nil {
		return errUpdate
	}
	return nil
}

// webhookRecordTransaction stores the gateway transaction ID on the
// matching subscription.
func (o *Orchestrator) webhookRecordTransaction(ctx context.Context, event *gateway.Event) error {
	sub, errFind := o.findByEvent(ctx, event)
	if errFind != nil {
		return errFind
	}
	if event.TransactionID == "" || sub.TransactionID == event.TransactionID {
		return nil
	}
	return o.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", sub.ID).
		Update("transaction_id", event.TransactionID).Error
}
