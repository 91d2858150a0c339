package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hiredeck/hiredeck/internal/gateway"
	"github.com/hiredeck/hiredeck/internal/models"
	"github.com/hiredeck/hiredeck/internal/subscription"
	"gorm.io/gorm"
)

// SubscriptionHandler exposes the employer-facing subscription lifecycle.
type SubscriptionHandler struct {
	db   *gorm.DB                   // Database handle for subscription records.
	orch *subscription.Orchestrator // Payment and quota orchestration.
}

// NewSubscriptionHandler constructs a subscription handler.
func NewSubscriptionHandler(db *gorm.DB, orch *subscription.Orchestrator) *SubscriptionHandler {
	return &SubscriptionHandler{db: db, orch: orch}
}

// checkoutRequest captures the payload for starting a plan checkout.
type checkoutRequest struct {
	PlanID      uint64 `json:"plan_id"`      // Plan to purchase.
	Gateway     string `json:"gateway"`      // stripe or paypal.
	CallbackURL string `json:"callback_url"` // Where the gateway redirects after payment.
}

// Checkout starts a gateway checkout and returns the redirect URL.
func (h *SubscriptionHandler) Checkout(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body checkoutRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.PlanID == 0 || strings.TrimSpace(body.Gateway) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id and gateway are required"})
		return
	}

	link, errLink := h.orch.GeneratePaymentLink(c.Request.Context(), employer, body.PlanID, body.Gateway, body.CallbackURL)
	if errLink != nil {
		h.renderError(c, errLink)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"redirect_url": link.RedirectURL,
		"reference":    link.ReferenceID,
	})
}

// verifyRequest captures the payload for verifying a payment reference.
type verifyRequest struct {
	Reference string `json:"reference"` // Gateway checkout reference.
	Gateway   string `json:"gateway"`   // stripe or paypal.
}

// Verify confirms a payment completed at the gateway without activating.
func (h *SubscriptionHandler) Verify(c *gin.Context) {
	var body verifyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Reference) == "" || strings.TrimSpace(body.Gateway) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference and gateway are required"})
		return
	}

	result, errVerify := h.orch.VerifyPayment(c.Request.Context(), body.Reference, body.Gateway)
	if errVerify != nil {
		h.renderError(c, errVerify)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": result.Success, "message": result.Message})
}

// Complete verifies a payment reference and activates the pending
// subscription in one call. This is the redirect-landing endpoint.
func (h *SubscriptionHandler) Complete(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body verifyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Reference) == "" || strings.TrimSpace(body.Gateway) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference and gateway are required"})
		return
	}

	sub, errComplete := h.orch.CompleteCheckout(c.Request.Context(), employer, body.Reference, body.Gateway)
	if errComplete != nil {
		h.renderError(c, errComplete)
		return
	}
	c.JSON(http.StatusOK, h.formatSubscription(sub))
}

// List returns the employer's subscription history, newest first.
func (h *SubscriptionHandler) List(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var rows []models.Subscription
	errFind := h.db.WithContext(c.Request.Context()).
		Where("employer_id = ?", employer.ID).
		Order("created_at DESC").
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list subscriptions failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatSubscription(&row))
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": out})
}

// Active returns the subscription currently governing quotas, if any.
func (h *SubscriptionHandler) Active(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sub, errActive := h.orch.GetActiveSubscription(c.Request.Context(), employer.ID)
	if errActive != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if sub == nil {
		c.JSON(http.StatusOK, gin.H{"subscription": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": h.formatSubscription(sub)})
}

// loadOwnedSubscription fetches a subscription and checks it belongs to the
// acting employer.
func (h *SubscriptionHandler) loadOwnedSubscription(c *gin.Context, employerID uint64) (*models.Subscription, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}

	var sub models.Subscription
	if errFind := h.db.WithContext(c.Request.Context()).First(&sub, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	if sub.EmployerID != employerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the owner"})
		return nil, false
	}
	return &sub, true
}

// Cancel cancels gateway billing and deactivates the subscription. A gateway
// failure reports success=false and leaves the subscription untouched.
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	sub, ok := h.loadOwnedSubscription(c, employer.ID)
	if !ok {
		return
	}

	if cancelled := h.orch.CancelSubscription(c.Request.Context(), sub); !cancelled {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "gateway cancellation failed, subscription unchanged"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Resume lifts a payment-failure suspension within the grace period.
func (h *SubscriptionHandler) Resume(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	sub, ok := h.loadOwnedSubscription(c, employer.ID)
	if !ok {
		return
	}

	if errResume := h.orch.Resume(c.Request.Context(), sub.ID); errResume != nil {
		h.renderError(c, errResume)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// changePlanRequest captures the payload for switching plans.
type changePlanRequest struct {
	PlanID        uint64  `json:"plan_id"`        // New plan to switch to.
	Reference     string  `json:"reference"`      // Payment reference for the new period.
	TransactionID string  `json:"transaction_id"` // Gateway transaction ID, if known.
	AmountPaid    float64 `json:"amount_paid"`    // Confirmed amount, if known.
	Gateway       string  `json:"gateway"`        // stripe or paypal.
}

// ChangePlan switches the subscription to a new plan. The new period fully
// replaces the old; unused quota is not carried over.
func (h *SubscriptionHandler) ChangePlan(c *gin.Context) {
	employer, ok := currentEmployer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	sub, ok := h.loadOwnedSubscription(c, employer.ID)
	if !ok {
		return
	}

	var body changePlanRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.PlanID == 0 || strings.TrimSpace(body.Gateway) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id and gateway are required"})
		return
	}

	updated, errUpdate := h.orch.UpdateSubscription(c.Request.Context(), sub, body.PlanID, subscription.PaymentData{
		Reference:     body.Reference,
		TransactionID: body.TransactionID,
		AmountPaid:    body.AmountPaid,
	}, body.Gateway, "")
	if errUpdate != nil {
		h.renderError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, h.formatSubscription(updated))
}

// renderError maps orchestrator and gateway failures to HTTP responses.
func (h *SubscriptionHandler) renderError(c *gin.Context, err error) {
	var gwErr *gateway.Error
	switch {
	case errors.Is(err, subscription.ErrPlanNotFound),
		errors.Is(err, subscription.ErrSubscriptionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, subscription.ErrPlanInactive):
		c.JSON(http.StatusConflict, gin.H{"error": "plan is no longer available"})
	case errors.Is(err, subscription.ErrPaymentNotCompleted):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "payment not completed"})
	case errors.Is(err, subscription.ErrSubscriptionExpired):
		c.JSON(http.StatusConflict, gin.H{"error": "subscription period has expired"})
	case errors.Is(err, gateway.ErrUnknownGateway):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown gateway"})
	case errors.As(err, &gwErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway error"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "request failed"})
	}
}

// formatSubscription converts a subscription model into a response payload.
func (h *SubscriptionHandler) formatSubscription(s *models.Subscription) gin.H {
	return gin.H{
		"id":                 s.ID,
		"plan_id":            s.SubscriptionPlanID,
		"payment_provider":   s.PaymentProvider,
		"start_date":         s.StartDate,
		"end_date":           s.EndDate,
		"amount_paid":        s.AmountPaid,
		"currency":           s.Currency,
		"job_posts_left":     s.JobPostsLeft,
		"featured_jobs_left": s.FeaturedJobsLeft,
		"cv_downloads_left":  s.CVDownloadsLeft,
		"is_active":          s.IsActive,
		"is_suspended":       s.IsSuspended,
		"created_at":         s.CreatedAt,
	}
}
