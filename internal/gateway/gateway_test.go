package gateway

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hiredeck/hiredeck/internal/config"
	"github.com/hiredeck/hiredeck/internal/models"

	stripe "github.com/stripe/stripe-go/v82"
)

func TestFactoryResolvesRegisteredClients(t *testing.T) {
	f := NewFactory(config.GatewayConfig{})

	for _, name := range []string{NameStripe, NamePayPal} {
		client, err := f.Get(name)
		if err != nil {
			t.Fatalf("get %s: %v", name, err)
		}
		if client.Name() != name {
			t.Fatalf("expected %s, got %s", name, client.Name())
		}
	}

	// Lookup is case- and whitespace-insensitive.
	if _, err := f.Get(" Stripe "); err != nil {
		t.Fatalf("normalized lookup: %v", err)
	}

	if _, err := f.Get("square"); !errors.Is(err, ErrUnknownGateway) {
		t.Fatalf("expected ErrUnknownGateway, got %v", err)
	}
}

func TestRemotePlanIDRoundTrip(t *testing.T) {
	plan := &models.SubscriptionPlan{GatewayPlanIDs: []byte(`{}`)}

	if got := RemotePlanID(plan, NameStripe); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}

	if errSet := SetRemotePlanID(plan, NameStripe, "price_123"); errSet != nil {
		t.Fatalf("set: %v", errSet)
	}
	if errSet := SetRemotePlanID(plan, NamePayPal, "P-456"); errSet != nil {
		t.Fatalf("set: %v", errSet)
	}

	if got := RemotePlanID(plan, NameStripe); got != "price_123" {
		t.Fatalf("expected price_123, got %q", got)
	}
	if got := RemotePlanID(plan, NamePayPal); got != "P-456" {
		t.Fatalf("expected P-456, got %q", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Gateway: NameStripe, Op: "create checkout", Message: "bad request", Err: cause}

	if !errors.Is(err, cause) {
		t.Fatalf("expected unwrap to reach cause")
	}
	if err.Error() == "" {
		t.Fatalf("expected formatted message")
	}
}

func TestStripeErrExtractsWrappedAPIError(t *testing.T) {
	apiErr := &stripe.Error{Msg: "card declined"}
	err := stripeErr("create checkout session", fmt.Errorf("request failed: %w", apiErr))

	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if gwErr.Message != "card declined" {
		t.Fatalf("expected the API error message even when wrapped, got %q", gwErr.Message)
	}
	if !errors.Is(err, apiErr) {
		t.Fatalf("expected unwrap to reach the API error")
	}
}
