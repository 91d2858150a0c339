package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/hiredeck/hiredeck/internal/config"
	"github.com/hiredeck/hiredeck/internal/models"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/product"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeClient implements Client using the Stripe API.
type StripeClient struct {
	webhookSecret string
}

// NewStripeClient creates a StripeClient and installs the API key.
func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	stripe.Key = cfg.APIKey
	return &StripeClient{webhookSecret: cfg.WebhookSecret}
}

// Name returns the gateway name.
func (c *StripeClient) Name() string { return NameStripe }

// stripeErr wraps a Stripe API failure as a gateway Error.
func stripeErr(op string, err error) error {
	msg := ""
	var apiErr *stripe.Error
	if errors.As(err, &apiErr) {
		msg = apiErr.Msg
	}
	return &Error{Gateway: NameStripe, Op: op, Message: msg, Err: err}
}

// EnsurePlan creates a Stripe product and price for the plan on first use
// and returns the price ID. The created ID is recorded on the plan in
// memory; the caller persists it.
func (c *StripeClient) EnsurePlan(_ context.Context, plan *models.SubscriptionPlan) (string, error) {
	if id := RemotePlanID(plan, NameStripe); id != "" {
		return id, nil
	}

	prod, errProduct := product.New(&stripe.ProductParams{
		Name: stripe.String(plan.Name),
		Metadata: map[string]string{
			"plan_id": strconv.FormatUint(plan.ID, 10),
		},
	})
	if errProduct != nil {
		return "", stripeErr("create product", errProduct)
	}

	params := &stripe.PriceParams{
		Product:    stripe.String(prod.ID),
		UnitAmount: stripe.Int64(int64(math.Round(plan.Price * 100))),
		Currency:   stripe.String(strings.ToLower(plan.Currency)),
	}
	if plan.PaymentType == models.PlanPaymentRecurring {
		params.Recurring = &stripe.PriceRecurringParams{
			Interval:      stripe.String("day"),
			IntervalCount: stripe.Int64(int64(plan.DurationDays)),
		}
	}
	pr, errPrice := price.New(params)
	if errPrice != nil {
		return "", stripeErr("create price", errPrice)
	}

	if errSet := SetRemotePlanID(plan, NameStripe, pr.ID); errSet != nil {
		return "", stripeErr("record price id", errSet)
	}
	return pr.ID, nil
}

// CreateCheckout opens a Stripe Checkout session for the plan purchase.
func (c *StripeClient) CreateCheckout(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	priceID, errEnsure := c.EnsurePlan(ctx, p.Plan)
	if errEnsure != nil {
		return nil, errEnsure
	}

	mode := stripe.CheckoutSessionModePayment
	if p.Plan.PaymentType == models.PlanPaymentRecurring {
		mode = stripe.CheckoutSessionModeSubscription
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(mode)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		ClientReferenceID: stripe.String(strconv.FormatUint(p.EmployerID, 10)),
	}
	if p.EmployerEmail != "" {
		params.CustomerEmail = stripe.String(p.EmployerEmail)
	}
	// Retried checkout calls must not open duplicate sessions.
	params.SetIdempotencyKey(uuid.NewString())

	sess, errSession := session.New(params)
	if errSession != nil {
		return nil, stripeErr("create checkout session", errSession)
	}

	out := &CheckoutSession{Reference: sess.ID, RedirectURL: sess.URL}
	if sess.Subscription != nil {
		out.GatewaySubscriptionID = sess.Subscription.ID
	}
	return out, nil
}

// VerifyPayment fetches the checkout session and reports whether it paid.
func (c *StripeClient) VerifyPayment(_ context.Context, reference string) (*PaymentStatus, error) {
	sess, errGet := session.Get(reference, nil)
	if errGet != nil {
		return nil, stripeErr("get checkout session", errGet)
	}

	status := &PaymentStatus{
		Paid:       sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountPaid: float64(sess.AmountTotal) / 100,
		Currency:   strings.ToUpper(string(sess.Currency)),
	}
	if sess.PaymentIntent != nil {
		status.TransactionID = sess.PaymentIntent.ID
	}
	if sess.Subscription != nil {
		status.GatewaySubscriptionID = sess.Subscription.ID
	}
	return status, nil
}

// CancelSubscription cancels a Stripe subscription immediately.
func (c *StripeClient) CancelSubscription(_ context.Context, gatewaySubscriptionID string) error {
	if _, errCancel := subscription.Cancel(gatewaySubscriptionID, &stripe.SubscriptionCancelParams{}); errCancel != nil {
		return stripeErr("cancel subscription", errCancel)
	}
	return nil
}

// stripeInvoicePayload extracts the subscription reference from an invoice
// event without depending on SDK struct layout, which moved the field
// between API versions.
type stripeInvoicePayload struct {
	Subscription string `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// ParseWebhook verifies the Stripe-Signature header and normalizes the event.
func (c *StripeClient) ParseWebhook(_ context.Context, payload []byte, header http.Header) (*Event, error) {
	event, errVerify := webhook.ConstructEvent(payload, header.Get("Stripe-Signature"), c.webhookSecret)
	if errVerify != nil {
		return nil, &Error{Gateway: NameStripe, Op: "verify webhook signature", Err: errVerify}
	}

	out := &Event{Type: EventIgnored, RawType: string(event.Type)}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if errUnmarshal := json.Unmarshal(event.Data.Raw, &sess); errUnmarshal != nil {
			return nil, &Error{Gateway: NameStripe, Op: "parse checkout event", Err: errUnmarshal}
		}
		out.Type = EventCheckoutCompleted
		out.Reference = sess.ID
		if sess.Subscription != nil {
			out.SubscriptionID = sess.Subscription.ID
		}
		if sess.PaymentIntent != nil {
			out.TransactionID = sess.PaymentIntent.ID
		}
	case "invoice.paid":
		var inv stripeInvoicePayload
		if errUnmarshal := json.Unmarshal(event.Data.Raw, &inv); errUnmarshal != nil {
			return nil, &Error{Gateway: NameStripe, Op: "parse invoice event", Err: errUnmarshal}
		}
		out.Type = EventTransactionRecorded
		out.SubscriptionID = invoiceSubscriptionID(inv)
		out.TransactionID = event.ID
	case "invoice.payment_failed":
		var inv stripeInvoicePayload
		if errUnmarshal := json.Unmarshal(event.Data.Raw, &inv); errUnmarshal != nil {
			return nil, &Error{Gateway: NameStripe, Op: "parse invoice event", Err: errUnmarshal}
		}
		out.Type = EventPaymentFailed
		out.SubscriptionID = invoiceSubscriptionID(inv)
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if errUnmarshal := json.Unmarshal(event.Data.Raw, &sub); errUnmarshal != nil {
			return nil, &Error{Gateway: NameStripe, Op: "parse subscription event", Err: errUnmarshal}
		}
		out.Type = EventSubscriptionCancelled
		out.SubscriptionID = sub.ID
	}

	return out, nil
}

// invoiceSubscriptionID returns whichever subscription reference the
// invoice payload carried.
func invoiceSubscriptionID(inv stripeInvoicePayload) string {
	if inv.Subscription != "" {
		return inv.Subscription
	}
	return inv.Parent.SubscriptionDetails.Subscription
}
