package subscription

import (
	"context"
	"net/http"
	"testing"

	"github.com/hiredeck/hiredeck/internal/gateway"
	"github.com/hiredeck/hiredeck/internal/models"
)

func TestHandleWebhook_BadSignatureTouchesNothing(t *testing.T) {
	fake := &fakeGateway{
		name:     "testpay",
		eventErr: &gateway.Error{Gateway: "testpay", Op: "parse webhook", Message: "signature mismatch"},
	}
	o, conn := newTestOrchestrator(t, fake)
	employer := seedEmployer(t, conn)
	plan := seedPlan(t, conn, true)

	sub, errSub := o.SubscribeToPlan(context.Background(), employer, plan.ID, PaymentData{Reference: "sess_w1"}, "testpay", "")
	if errSub != nil {
		t.Fatalf("subscribe: %v", errSub)
	}

	ok := o.HandleWebhook(context.Background(), "testpay", []byte(`{"tampered":true}`), http.Header{})
	if ok {
		t.Fatalf("tampered webhook must be rejected")
	}

	var stored models.Subscription
	conn.First(&stored, sub.ID)
	if !stored.IsActive || stored.IsSuspended {
		t.Fatalf("rejected webhook must not change subscription state: %+v", stored)
	}

	var audit models.WebhookEvent
	if errFind := conn.Where("gateway = ?", "testpay").First(&audit).Error; errFind != nil {
		t.Fatalf("expected an audit row even for rejected webhooks: %v", errFind)
	}
	if audit.Processed {
		t.Fatalf("rejected webhook must not be marked processed")
	}
	if audit.Error == "" {
		t.Fatalf("expected rejection cause on the audit row")
	}
}

func TestHandleWebhook_CheckoutCompletedActivatesPending(t *testing.T) {
	fake := &fakeGateway{
		name:     "testpay",
		checkout: &gateway.CheckoutSession{Reference: "sess_w2", RedirectURL: "https://pay.test/w2"},
	}
	o, conn := newTestOrchestrator(t, fake)
	employer := seedEmployer(t, conn)
	plan := seedPlan(t, conn, true)

	if _, err := o.GeneratePaymentLink(context.Background(), employer, plan.ID, "testpay", "https://app.test/cb"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	fake.event = &gateway.Event{
		Type:          gateway.EventCheckoutCompleted,
		RawType:       "checkout.session.completed",
		Reference:     "sess_w2",
		TransactionID: "txn_w2",
	}
	if ok := o.HandleWebhook(context.Background(), "testpay", []byte(`{}`), http.Header{}); !ok {
		t.Fatalf("expected webhook to process")
	}

	var sub models.Subscription
	if errFind := conn.Where("payment_reference = ?", "sess_w2").First(&sub).Error; errFind != nil {
		t.Fatalf("find: %v", errFind)
	}
	if !sub.IsActive {
		t.Fatalf("expected webhook activation")
	}
	if sub.CVDownloadsLeft != plan.ResumeViewsLimit || sub.JobPostsLeft != plan.JobPostsLimit {
		t.Fatalf("quota snapshot mismatch: %+v", sub)
	}

	var audit models.WebhookEvent
	if errFind := conn.Where("event_type = ?", "checkout.session.completed").First(&audit).Error; errFind != nil {
		t.Fatalf("audit row: %v", errFind)
	}
	if !audit.Processed {
		t.Fatalf("expected audit row marked processed")
	}
}

func TestHandleWebhook_DuplicateDeliveryDoesNotRegrant(t *testing.T) {
	fake := &fakeGateway{
		name:     "testpay",
		checkout: &gateway.CheckoutSession{Reference: "sess_w3", RedirectURL: "https://pay.test/w3"},
	}
	o, conn := newTestOrchestrator(t, fake)
	employer := seedEmployer(t, conn)
	plan := seedPlan(t, conn, true)

	if _, err := o.GeneratePaymentLink(context.Background(), employer, plan.ID, "testpay", "https://app.test/cb"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	fake.event = &gateway.Event{Type: gateway.EventCheckoutCompleted, RawType: "checkout.session.completed", Reference: "sess_w3"}
	if ok := o.HandleWebhook(context.Background(), "testpay", []byte(`{}`), http.Header{}); !ok {
		t.Fatalf("first delivery: expected success")
	}

	// Spend a unit, then replay the same event.
	if ok, _ := o.DecrementCVDownloads(context.Background(), employer.ID); !ok {
		t.Fatalf("decrement should succeed")
	}
	if ok := o.HandleWebhook(context.Background(), "testpay", []byte(`{}`), http.Header{}); !ok {
		t.Fatalf("replayed delivery: expected success")
	}

	var sub models.Subscription
	conn.Where("payment_reference = ?", "sess_w3").First(&sub)
	if sub.CVDownloadsLeft != plan.ResumeViewsLimit-1 {
		t.Fatalf("replayed webhook must not re-grant quota, got %d", sub.CVDownloadsLeft)
	}
}

func TestHandleWebhook_PaymentFailedSuspends(t *testing.T) {
	fake := &fakeGateway{name: "testpay"}
	o, conn := newTestOrchestrator(t, fake)
	employer := seedEmployer(t, conn)
	plan := seedPlan(t, conn, true)

	sub, errSub := o.SubscribeToPlan(context.Background(), employer, plan.ID, PaymentData{
		Reference:             "sess_w4",
		GatewaySubscriptionID: "rsub_w4",
	}, "testpay", "")
	if errSub != nil {
		t.Fatalf("subscribe: %v", errSub)
	}

	fake.event = &gateway.Event{
		Type:           gateway.EventPaymentFailed,
		RawType:        "invoice.payment_failed",
		SubscriptionID: "rsub_w4",
	}
	if ok := o.HandleWebhook(context.Background(), "testpay", []byte(`{}`), http.Header{}); !ok {
		t.Fatalf("expected webhook to process")
	}

	var stored models.Subscription
	conn.First(&stored, sub.ID)
	if !stored.IsSuspended {
		t.Fatalf("expected suspension after payment failure")
	}
	if active, _ := o.GetActiveSubscription(context.Background(), employer.ID); active != nil {
		t.Fatalf("suspended subscription must not govern quotas")
	}
}

func TestHandleWebhook_CancelledDeactivates(t *testing.T) {
	fake := &fakeGateway{name: "testpay"}
	o, conn := newTestOrchestrator(t, fake)
	employer := seedEmployer(t, conn)
	plan := seedPlan(t, conn, true)

	sub, errSub := o.SubscribeToPlan(context.Background(), employer, plan.ID, PaymentData{
		Reference:             "sess_w5",
		GatewaySubscriptionID: "rsub_w5",
	}, "testpay", "")
	if errSub != nil {
		t.Fatalf("subscribe: %v", errSub)
	}

	fake.event = &gateway.Event{
		Type:           gateway.EventSubscriptionCancelled,
		RawType:        "customer.subscription.deleted",
		SubscriptionID: "rsub_w5",
	}
	if ok := o.HandleWebhook(context.Background(), "testpay", []byte(`{}`), http.Header{}); !ok {
		t.Fatalf("expected webhook to process")
	}

	var stored models.Subscription
	conn.First(&stored, sub.ID)
	if stored.IsActive {
		t.Fatalf("expected gateway cancellation to deactivate")
	}
}

func TestHandleWebhook_UnknownReference(t *testing.T) {
	fake := &fakeGateway{name: "testpay"}
	o, conn := newTestOrchestrator(t, fake)

	fake.event = &gateway.Event{
		Type:      gateway.EventCheckoutCompleted,
		RawType:   "checkout.session.completed",
		Reference: "sess_nobody",
	}
	if ok := o.HandleWebhook(context.Background(), "testpay", []byte(`{}`), http.Header{}); ok {
		t.Fatalf("unknown reference must not report success")
	}

	var audit models.WebhookEvent
	if errFind := conn.Where("reference = ?", "sess_nobody").First(&audit).Error; errFind != nil {
		t.Fatalf("expected audit row for unknown reference: %v", errFind)
	}
	if audit.Processed {
		t.Fatalf("unknown reference must not be marked processed")
	}
}

func TestHandleWebhook_IgnoredEventSucceeds(t *testing.T) {
	fake := &fakeGateway{name: "testpay"}
	o, _ := newTestOrchestrator(t, fake)

	fake.event = &gateway.Event{Type: gateway.EventIgnored, RawType: "charge.updated"}
	if ok := o.HandleWebhook(context.Background(), "testpay", []byte(`{}`), http.Header{}); !ok {
		t.Fatalf("unrelated event types should acknowledge cleanly")
	}
}

func TestHandleWebhook_UnknownGateway(t *testing.T) {
	fake := &fakeGateway{name: "testpay"}
	o, _ := newTestOrchestrator(t, fake)

	if ok := o.HandleWebhook(context.Background(), "nopay", []byte(`{}`), http.Header{}); ok {
		t.Fatalf("unknown gateway must be rejected")
	}
}
