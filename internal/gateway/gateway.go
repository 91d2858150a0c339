package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hiredeck/hiredeck/internal/config"
	"github.com/hiredeck/hiredeck/internal/models"
)

// Gateway names accepted by the factory.
const (
	NameStripe = "stripe"
	NamePayPal = "paypal"
)

// ErrUnknownGateway indicates a gateway name with no registered client.
var ErrUnknownGateway = errors.New("gateway: unknown gateway")

// Error wraps a failure talking to a payment gateway, carrying enough
// context to relay the gateway's message to the caller.
type Error struct {
	Gateway string // Gateway name.
	Op      string // Failing operation.
	Message string // Gateway-reported message.
	Err     error  // Underlying error, if any.
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway %s: %s: %s", e.Gateway, e.Op, e.Message)
	}
	return fmt.Sprintf("gateway %s: %s: %v", e.Gateway, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// CheckoutParams describes a payment-link request for one plan purchase.
type CheckoutParams struct {
	Plan          *models.SubscriptionPlan // Plan being purchased.
	EmployerID    uint64                   // Purchasing employer.
	EmployerEmail string                   // Receipt email.
	SuccessURL    string                   // Redirect after completed payment.
	CancelURL     string                   // Redirect after abandoned payment.
}

// CheckoutSession is the gateway-side session created for a checkout.
type CheckoutSession struct {
	Reference             string // Gateway session/order ID to verify against.
	RedirectURL           string // URL the employer completes payment at.
	GatewaySubscriptionID string // Recurring subscription ID, empty for one-time.
}

// PaymentStatus is the result of verifying a payment reference.
type PaymentStatus struct {
	Paid                  bool    // Whether the payment completed.
	TransactionID         string  // Gateway transaction/capture ID.
	GatewaySubscriptionID string  // Recurring subscription ID, if any.
	AmountPaid            float64 // Amount confirmed by the gateway.
	Currency              string  // Confirmed currency code.
}

// EventType classifies normalized webhook events.
type EventType string

// EventType values.
const (
	// EventCheckoutCompleted reports a completed checkout/payment.
	EventCheckoutCompleted EventType = "checkout_completed"
	// EventPaymentFailed reports a failed recurring charge.
	EventPaymentFailed EventType = "payment_failed"
	// EventSubscriptionCancelled reports a gateway-side cancellation.
	EventSubscriptionCancelled EventType = "subscription_cancelled"
	// EventTransactionRecorded carries a transaction ID to persist.
	EventTransactionRecorded EventType = "transaction_recorded"
	// EventIgnored marks event types this system does not act on.
	EventIgnored EventType = "ignored"
)

// Event is a signature-verified webhook event normalized across gateways.
type Event struct {
	Type           EventType // Normalized event class.
	RawType        string    // Gateway-native event type string.
	Reference      string    // Checkout session / order ID, for one-time flows.
	SubscriptionID string    // Gateway recurring subscription ID, for recurring flows.
	TransactionID  string    // Gateway transaction/capture ID, when present.
}

// Client is a payment gateway adapter. Implementations must verify webhook
// signatures inside ParseWebhook before trusting any payload field.
type Client interface {
	Name() string
	EnsurePlan(ctx context.Context, plan *models.SubscriptionPlan) (string, error)
	CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	VerifyPayment(ctx context.Context, reference string) (*PaymentStatus, error)
	CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error
	ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*Event, error)
}

// Factory resolves gateway clients by name.
type Factory struct {
	clients map[string]Client
}

// NewFactory builds a factory with Stripe and PayPal clients from config.
func NewFactory(cfg config.GatewayConfig) *Factory {
	f := &Factory{clients: make(map[string]Client)}
	f.Register(NewStripeClient(cfg.Stripe))
	f.Register(NewPayPalClient(cfg.PayPal))
	return f
}

// Register adds or replaces a client under its own name.
func (f *Factory) Register(c Client) {
	if c == nil {
		return
	}
	f.clients[c.Name()] = c
}

// Get returns the client registered under name.
func (f *Factory) Get(name string) (Client, error) {
	c, ok := f.clients[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}
	return c, nil
}
