package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hiredeck/hiredeck/internal/config"
	"github.com/hiredeck/hiredeck/internal/models"
)

// paypalRequestTimeout bounds every call to the PayPal REST API.
const paypalRequestTimeout = 15 * time.Second

// PayPalClient implements Client over the PayPal REST API. There is no
// maintained official Go SDK, so this is a thin hand-rolled client covering
// only the endpoints this system needs: OAuth2 tokens, Orders v2, Billing
// Subscriptions v1, and webhook signature verification.
type PayPalClient struct {
	clientID     string
	clientSecret string
	apiBase      string
	webhookID    string

	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalClient creates a PayPalClient from config.
func NewPayPalClient(cfg config.PayPalConfig) *PayPalClient {
	return &PayPalClient{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		apiBase:      strings.TrimRight(cfg.APIBase, "/"),
		webhookID:    cfg.WebhookID,
		httpClient:   &http.Client{Timeout: paypalRequestTimeout},
	}
}

// Name returns the gateway name.
func (c *PayPalClient) Name() string { return NamePayPal }

// paypalErr wraps a PayPal API failure as a gateway Error.
func paypalErr(op, message string, err error) error {
	return &Error{Gateway: NamePayPal, Op: op, Message: message, Err: err}
}

// token returns a cached OAuth2 access token, refreshing when expired.
func (c *PayPalClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if errReq != nil {
		return "", paypalErr("request token", "", errReq)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return "", paypalErr("request token", "", errDo)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", paypalErr("request token", string(body), fmt.Errorf("status %d", resp.StatusCode))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if errUnmarshal := json.Unmarshal(body, &out); errUnmarshal != nil {
		return "", paypalErr("parse token response", "", errUnmarshal)
	}

	c.accessToken = out.AccessToken
	// Refresh one minute early to avoid using a token at its expiry edge.
	c.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

// call performs an authenticated JSON request against the PayPal API.
func (c *PayPalClient) call(ctx context.Context, method, path string, in any, out any) error {
	tok, errToken := c.token(ctx)
	if errToken != nil {
		return errToken
	}

	var body io.Reader
	if in != nil {
		raw, errMarshal := json.Marshal(in)
		if errMarshal != nil {
			return paypalErr("encode request", "", errMarshal)
		}
		body = bytes.NewReader(raw)
	}

	req, errReq := http.NewRequestWithContext(ctx, method, c.apiBase+path, body)
	if errReq != nil {
		return paypalErr("build request", "", errReq)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return paypalErr(method+" "+path, "", errDo)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return paypalErr(method+" "+path, string(raw), fmt.Errorf("status %d", resp.StatusCode))
	}
	if out != nil && len(raw) > 0 {
		if errUnmarshal := json.Unmarshal(raw, out); errUnmarshal != nil {
			return paypalErr("decode response", "", errUnmarshal)
		}
	}
	return nil
}

// paypalLink is a HATEOAS link entry in PayPal responses.
type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

// linkByRel returns the href of the link with the given rel.
func linkByRel(links []paypalLink, rel string) string {
	for _, l := range links {
		if l.Rel == rel {
			return l.Href
		}
	}
	return ""
}

// EnsurePlan creates a PayPal billing plan for recurring plans on first use.
// One-time plans need no remote catalog entry; orders carry the amount inline.
func (c *PayPalClient) EnsurePlan(ctx context.Context, plan *models.SubscriptionPlan) (string, error) {
	if plan.PaymentType != models.PlanPaymentRecurring {
		return "", nil
	}
	if id := RemotePlanID(plan, NamePayPal); id != "" {
		return id, nil
	}

	var prod struct {
		ID string `json:"id"`
	}
	if errCreate := c.call(ctx, http.MethodPost, "/v1/catalogs/products", map[string]any{
		"name": plan.Name,
		"type": "SERVICE",
	}, &prod); errCreate != nil {
		return "", errCreate
	}

	var created struct {
		ID string `json:"id"`
	}
	if errCreate := c.call(ctx, http.MethodPost, "/v1/billing/plans", map[string]any{
		"product_id": prod.ID,
		"name":       plan.Name,
		"billing_cycles": []map[string]any{
			{
				"frequency": map[string]any{
					"interval_unit":  "DAY",
					"interval_count": plan.DurationDays,
				},
				"tenure_type":  "REGULAR",
				"sequence":     1,
				"total_cycles": 0,
				"pricing_scheme": map[string]any{
					"fixed_price": map[string]any{
						"value":         strconv.FormatFloat(plan.Price, 'f', 2, 64),
						"currency_code": plan.Currency,
					},
				},
			},
		},
		"payment_preferences": map[string]any{
			"auto_bill_outstanding": true,
		},
	}, &created); errCreate != nil {
		return "", errCreate
	}

	if errSet := SetRemotePlanID(plan, NamePayPal, created.ID); errSet != nil {
		return "", paypalErr("record plan id", "", errSet)
	}
	return created.ID, nil
}

// CreateCheckout creates an order (one-time) or billing subscription
// (recurring) and returns the approval redirect.
func (c *PayPalClient) CreateCheckout(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	if p.Plan.PaymentType == models.PlanPaymentRecurring {
		planID, errEnsure := c.EnsurePlan(ctx, p.Plan)
		if errEnsure != nil {
			return nil, errEnsure
		}

		var created struct {
			ID    string       `json:"id"`
			Links []paypalLink `json:"links"`
		}
		if errCreate := c.call(ctx, http.MethodPost, "/v1/billing/subscriptions", map[string]any{
			"plan_id":   planID,
			"custom_id": strconv.FormatUint(p.EmployerID, 10),
			"application_context": map[string]any{
				"return_url": p.SuccessURL,
				"cancel_url": p.CancelURL,
			},
		}, &created); errCreate != nil {
			return nil, errCreate
		}

		return &CheckoutSession{
			Reference:             created.ID,
			RedirectURL:           linkByRel(created.Links, "approve"),
			GatewaySubscriptionID: created.ID,
		}, nil
	}

	var created struct {
		ID    string       `json:"id"`
		Links []paypalLink `json:"links"`
	}
	if errCreate := c.call(ctx, http.MethodPost, "/v2/checkout/orders", map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"reference_id": strconv.FormatUint(p.EmployerID, 10),
				"description":  p.Plan.Name,
				"amount": map[string]any{
					"currency_code": p.Plan.Currency,
					"value":         strconv.FormatFloat(p.Plan.Price, 'f', 2, 64),
				},
			},
		},
		"application_context": map[string]any{
			"return_url": p.SuccessURL,
			"cancel_url": p.CancelURL,
		},
	}, &created); errCreate != nil {
		return nil, errCreate
	}

	return &CheckoutSession{
		Reference:   created.ID,
		RedirectURL: linkByRel(created.Links, "approve"),
	}, nil
}

// paypalOrder is the subset of an Orders v2 response we read.
type paypalOrder struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Amount struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
		Payments struct {
			Captures []struct {
				ID string `json:"id"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// VerifyPayment confirms an order or billing subscription completed.
// Approved orders are captured as part of verification; re-verifying a
// completed order is a no-op.
func (c *PayPalClient) VerifyPayment(ctx context.Context, reference string) (*PaymentStatus, error) {
	// Billing subscription IDs are prefixed "I-"; everything else is an order.
	if strings.HasPrefix(reference, "I-") {
		var sub struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if errGet := c.call(ctx, http.MethodGet, "/v1/billing/subscriptions/"+url.PathEscape(reference), nil, &sub); errGet != nil {
			return nil, errGet
		}
		return &PaymentStatus{
			Paid:                  sub.Status == "ACTIVE",
			GatewaySubscriptionID: sub.ID,
		}, nil
	}

	var order paypalOrder
	if errGet := c.call(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(reference), nil, &order); errGet != nil {
		return nil, errGet
	}

	if order.Status == "APPROVED" {
		if errCapture := c.call(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(reference)+"/capture", struct{}{}, &order); errCapture != nil {
			return nil, errCapture
		}
	}

	status := &PaymentStatus{Paid: order.Status == "COMPLETED"}
	if len(order.PurchaseUnits) > 0 {
		unit := order.PurchaseUnits[0]
		status.Currency = unit.Amount.CurrencyCode
		if v, errParse := strconv.ParseFloat(unit.Amount.Value, 64); errParse == nil {
			status.AmountPaid = v
		}
		if len(unit.Payments.Captures) > 0 {
			status.TransactionID = unit.Payments.Captures[0].ID
		}
	}
	return status, nil
}

// CancelSubscription cancels a PayPal billing subscription.
func (c *PayPalClient) CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error {
	return c.call(ctx, http.MethodPost,
		"/v1/billing/subscriptions/"+url.PathEscape(gatewaySubscriptionID)+"/cancel",
		map[string]any{"reason": "cancelled by merchant"}, nil)
}

// paypalWebhookResource is the subset of webhook resources we read.
type paypalWebhookResource struct {
	ID                 string `json:"id"`
	BillingAgreementID string `json:"billing_agreement_id"`
	SupplementaryData  struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

// ParseWebhook verifies the transmission signature through PayPal's
// verify-webhook-signature endpoint, then normalizes the event. A payload
// that fails verification never reaches event routing.
func (c *PayPalClient) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*Event, error) {
	var verification struct {
		Status string `json:"verification_status"`
	}
	if errVerify := c.call(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", map[string]any{
		"auth_algo":         header.Get("Paypal-Auth-Algo"),
		"cert_url":          header.Get("Paypal-Cert-Url"),
		"transmission_id":   header.Get("Paypal-Transmission-Id"),
		"transmission_sig":  header.Get("Paypal-Transmission-Sig"),
		"transmission_time": header.Get("Paypal-Transmission-Time"),
		"webhook_id":        c.webhookID,
		"webhook_event":     json.RawMessage(payload),
	}, &verification); errVerify != nil {
		return nil, errVerify
	}
	if verification.Status != "SUCCESS" {
		return nil, &Error{Gateway: NamePayPal, Op: "verify webhook signature",
			Message: "verification_status=" + verification.Status, Err: fmt.Errorf("signature mismatch")}
	}

	var event struct {
		EventType string                `json:"event_type"`
		Resource  paypalWebhookResource `json:"resource"`
	}
	if errUnmarshal := json.Unmarshal(payload, &event); errUnmarshal != nil {
		return nil, paypalErr("parse webhook payload", "", errUnmarshal)
	}

	out := &Event{Type: EventIgnored, RawType: event.EventType}
	switch event.EventType {
	case "CHECKOUT.ORDER.APPROVED":
		out.Type = EventCheckoutCompleted
		out.Reference = event.Resource.ID
	case "PAYMENT.CAPTURE.COMPLETED":
		out.Type = EventTransactionRecorded
		out.Reference = event.Resource.SupplementaryData.RelatedIDs.OrderID
		out.SubscriptionID = event.Resource.BillingAgreementID
		out.TransactionID = event.Resource.ID
	case "BILLING.SUBSCRIPTION.ACTIVATED":
		out.Type = EventCheckoutCompleted
		out.Reference = event.Resource.ID
		out.SubscriptionID = event.Resource.ID
	case "BILLING.SUBSCRIPTION.PAYMENT.FAILED":
		out.Type = EventPaymentFailed
		out.SubscriptionID = event.Resource.ID
	case "BILLING.SUBSCRIPTION.CANCELLED":
		out.Type = EventSubscriptionCancelled
		out.SubscriptionID = event.Resource.ID
	}
	return out, nil
}
