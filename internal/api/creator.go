package api

import (
	"net/http"

	"creator-subscription-api/internal/middleware"
	"creator-subscription-api/internal/response"

	"github.com/gin-gonic/gin"
)

// SetPriceRequest represents a subscription fee update
type SetPriceRequest struct {
	Amount   int64  `json:"amount" binding:"required"`
	Currency string `json:"currency"`
}

// GetBalance returns the caller's pending (withdrawable) earnings
// GET /api/creator/earnings/balance
func (h *Handler) GetBalance(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	balance, err := h.earnings.PendingBalance(c.Request.Context(), identity.UserID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessJSON(c, gin.H{
		"owner_id":        identity.UserID,
		"pending_balance": balance,
	})
}

// GetEarnings lists the caller's earnings
// GET /api/creator/earnings
func (h *Handler) GetEarnings(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	earnings, err := h.earnings.History(c.Request.Context(), identity.UserID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessJSON(c, earnings)
}

// RequestWithdrawal withdraws the caller's whole pending balance
// POST /api/creator/withdrawals
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	withdrawal, err := h.withdrawals.RequestWithdrawal(c.Request.Context(), identity)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.CreatedJSON(c, withdrawal)
}

// ListWithdrawals lists the caller's withdrawals
// GET /api/creator/withdrawals
func (h *Handler) ListWithdrawals(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	withdrawals, err := h.withdrawals.History(c.Request.Context(), identity.UserID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessJSON(c, withdrawals)
}

// ListSubscribers lists the subscriptions held on the caller's content
// GET /api/creator/subscribers
func (h *Handler) ListSubscribers(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	subscriptions, err := h.ledger.ListSubscribersOf(c.Request.Context(), identity.UserID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessJSON(c, subscriptions)
}

// SetCreatorPrice sets the caller's subscription fee
// PUT /api/creator/pricing
func (h *Handler) SetCreatorPrice(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	var req SetPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	price, err := h.pricing.SetCreatorPrice(c.Request.Context(), identity.UserID, req.Amount)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessJSON(c, price)
}

// GetPricing returns the fee a subscriber would pay for an owner
// GET /api/pricing/:owner_id
func (h *Handler) GetPricing(c *gin.Context) {
	price, err := h.pricing.PriceFor(c.Request.Context(), c.Param("owner_id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessJSON(c, gin.H{
		"owner_id": c.Param("owner_id"),
		"amount":   price.Amount,
		"currency": price.Currency,
	})
}
