package api

import (
	"net/http"
	"strconv"

	"creator-subscription-api/internal/database"
	"creator-subscription-api/internal/middleware"
	"creator-subscription-api/internal/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// DecisionRequest represents an administrator's withdrawal decision
type DecisionRequest struct {
	Outcome string `json:"outcome" binding:"required"`
	Note    string `json:"note"`
}

// SetRateRequest represents a revenue share override. A null rate restores
// the platform default.
type SetRateRequest struct {
	Rate *float64 `json:"rate"`
}

// DecideWithdrawal approves or rejects a pending withdrawal
// POST /api/admin/withdrawals/:id/decision
func (h *Handler) DecideWithdrawal(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	withdrawal, err := h.withdrawals.Decide(c.Request.Context(), c.Param("id"), req.Outcome, identity, req.Note)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessJSON(c, withdrawal)
}

// AdminListWithdrawals lists withdrawals across creators
// GET /api/admin/withdrawals?status=pending
func (h *Handler) AdminListWithdrawals(c *gin.Context) {
	withdrawals, err := h.withdrawals.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessJSON(c, withdrawals)
}

// AdminListEarnings lists earnings across creators
// GET /api/admin/earnings?owner_id=&status=&limit=&offset=
func (h *Handler) AdminListEarnings(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		response.ErrorJSON(c, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		response.ErrorJSON(c, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	earnings, err := h.earnings.ListAll(c.Request.Context(), database.EarningFilter{
		OwnerID: c.Query("owner_id"),
		Status:  c.Query("status"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessJSON(c, gin.H{
		"earnings": earnings,
		"limit":    limit,
		"offset":   offset,
	})
}

// AdminEarningsSummary returns per-creator earning totals
// GET /api/admin/earnings/summary
func (h *Handler) AdminEarningsSummary(c *gin.Context) {
	summary, err := h.earnings.AggregateByOwner(c.Request.Context())
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessJSON(c, summary)
}

// SetGlobalPrice sets the platform default subscription fee
// PUT /api/admin/pricing/global
func (h *Handler) SetGlobalPrice(c *gin.Context) {
	var req SetPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	price, err := h.pricing.SetGlobalPrice(c.Request.Context(), req.Amount, req.Currency)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessJSON(c, price)
}

// SetCreatorRate overrides one creator's revenue share
// PUT /api/admin/pricing/:owner_id/rate
func (h *Handler) SetCreatorRate(c *gin.Context) {
	var req SetRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	price, err := h.pricing.SetCreatorRate(c.Request.Context(), c.Param("owner_id"), req.Rate)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessJSON(c, price)
}
