package api

import (
	"errors"
	"net/http"

	"creator-subscription-api/internal/gateway"
	"creator-subscription-api/internal/middleware"
	"creator-subscription-api/internal/models"
	"creator-subscription-api/internal/response"
	"creator-subscription-api/internal/services"

	"github.com/gin-gonic/gin"
)

// CreateSubscriptionRequest represents a checkout request
type CreateSubscriptionRequest struct {
	OwnerID string `json:"owner_id" binding:"required"`
	Amount  int64  `json:"amount"`
}

// SubscriptionStatusResponse represents the status of one payment reference
type SubscriptionStatusResponse struct {
	Reference    string               `json:"reference"`
	Status       string               `json:"status"`
	Polling      bool                 `json:"polling"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

// ActiveSubscriptionResponse represents an access check result
type ActiveSubscriptionResponse struct {
	Active       bool                 `json:"active"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

// CreateSubscription opens a pending subscription and returns the hosted
// checkout URL. Server-side polling starts immediately as a fallback for a
// missed provider callback, unless the poller is at capacity.
// POST /api/subscriptions
func (h *Handler) CreateSubscription(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	result, err := h.orchestrator.InitiateSubscription(c.Request.Context(), identity, req.OwnerID, req.Amount)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	if h.poller != nil {
		h.poller.Start(result.Reference)
	}

	response.CreatedJSON(c, result)
}

// GetSubscriptionStatus runs one verification round and reports the outcome
// GET /api/subscriptions/:reference/status
func (h *Handler) GetSubscriptionStatus(c *gin.Context) {
	reference := c.Param("reference")
	if _, ok := h.authorizeReference(c, reference); !ok {
		return
	}

	outcome, err := h.orchestrator.PollOnce(c.Request.Context(), reference)
	if errors.Is(err, gateway.ErrGatewayUnavailable) {
		// Report the stored state; the poller keeps trying
		subscription, loadErr := h.ledger.GetByReference(c.Request.Context(), reference)
		if loadErr != nil {
			response.HandleError(c, loadErr)
			return
		}
		outcome = &services.Outcome{Status: subscription.Status, Subscription: subscription}
	} else if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessJSON(c, SubscriptionStatusResponse{
		Reference:    reference,
		Status:       outcome.Status,
		Polling:      h.poller != nil && h.poller.Active(reference),
		Subscription: outcome.Subscription,
	})
}

// CancelPolling stops server-side polling of a reference
// DELETE /api/subscriptions/:reference/poll
func (h *Handler) CancelPolling(c *gin.Context) {
	reference := c.Param("reference")
	if _, ok := h.authorizeReference(c, reference); !ok {
		return
	}

	cancelled := h.poller != nil && h.poller.Cancel(reference)
	response.SuccessJSON(c, gin.H{
		"reference": reference,
		"cancelled": cancelled,
	})
}

// GetActiveSubscription reports whether the caller can access an owner's
// premium content
// GET /api/subscriptions/active?owner_id=xxx
func (h *Handler) GetActiveSubscription(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	ownerID := c.Query("owner_id")
	if ownerID == "" {
		response.ErrorJSON(c, http.StatusBadRequest, "owner_id is required")
		return
	}

	subscription, err := h.ledger.QueryActiveFor(c.Request.Context(), identity.UserID, ownerID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessJSON(c, ActiveSubscriptionResponse{
		Active:       subscription != nil,
		Subscription: subscription,
	})
}

// ListSubscriptions lists the caller's subscriptions
// GET /api/subscriptions
func (h *Handler) ListSubscriptions(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	subscriptions, err := h.ledger.ListForSubscriber(c.Request.Context(), identity.UserID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessJSON(c, subscriptions)
}

// authorizeReference loads the subscription behind a reference and checks
// that it belongs to the caller. Administrators may see any reference.
func (h *Handler) authorizeReference(c *gin.Context, reference string) (*models.Subscription, bool) {
	identity, _ := middleware.CurrentIdentity(c)

	subscription, err := h.ledger.GetByReference(c.Request.Context(), reference)
	if err != nil {
		response.HandleError(c, err)
		return nil, false
	}
	if subscription.SubscriberID != identity.UserID && !identity.IsAdmin() {
		// Same answer as an unknown reference
		response.HandleError(c, services.ErrUnknownReference)
		return nil, false
	}
	return subscription, true
}
