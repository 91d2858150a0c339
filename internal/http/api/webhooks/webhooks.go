package webhooks

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hiredeck/hiredeck/internal/gateway"
	"github.com/hiredeck/hiredeck/internal/subscription"
)

// RegisterWebhookRoutes registers public payment gateway webhook endpoints.
func RegisterWebhookRoutes(r *gin.Engine, orch *subscription.Orchestrator) {
	if r == nil || orch == nil {
		return
	}

	handler := &WebhookHandler{orch: orch}
	r.POST("/webhooks/stripe", handler.Stripe)
	r.POST("/webhooks/paypal", handler.PayPal)
}

// WebhookHandler receives gateway webhook deliveries. Responses are always
// 200 so gateways stop retrying; the success flag in the body reports the
// processing outcome, and failures are kept in the webhook audit table.
type WebhookHandler struct {
	orch *subscription.Orchestrator // Event routing and audit trail.
}

// Stripe handles Stripe webhook deliveries.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	h.handle(c, gateway.NameStripe)
}

// PayPal handles PayPal webhook deliveries.
func (h *WebhookHandler) PayPal(c *gin.Context) {
	h.handle(c, gateway.NamePayPal)
}

// handle reads the raw payload and hands it to the orchestrator. The raw
// body is required for signature verification, so it is read before any
// JSON parsing.
func (h *WebhookHandler) handle(c *gin.Context, gatewayName string) {
	payload, errRead := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if errRead != nil {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	ok := h.orch.HandleWebhook(c.Request.Context(), gatewayName, payload, c.Request.Header)
	c.JSON(http.StatusOK, gin.H{"success": ok})
}
