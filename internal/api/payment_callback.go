package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"creator-subscription-api/internal/gateway"
	"creator-subscription-api/internal/response"
	"creator-subscription-api/internal/services"
	"creator-subscription-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

const maxCallbackBodyBytes = 1 << 20

// PaymentWebhook handles a server-to-server notification from the payment
// provider. Unknown references and replays are acknowledged so the provider
// stops redelivering. Verification failures and payments the gateway has not
// settled yet return 503 so it retries.
// POST /api/payments/callback/:provider
func (h *Handler) PaymentWebhook(c *gin.Context) {
	if c.Param("provider") != h.provider {
		response.ErrorJSON(c, http.StatusNotFound, "Unknown payment provider")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBodyBytes))
	if err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Failed to read request body")
		return
	}

	outcome, err := h.orchestrator.HandleGatewayCallback(c.Request.Context(), payload, c.Request.Header)
	switch {
	case err == nil:
	case errors.Is(err, gateway.ErrInvalidCallback):
		logging.Warnf("Rejected %s callback: %v", h.provider, err)
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid callback")
		return
	case errors.Is(err, services.ErrUnknownReference):
		response.SuccessJSON(c, gin.H{"acknowledged": true})
		return
	case errors.Is(err, services.ErrPaymentNotSettled):
		response.HandleError(c, err)
		return
	default:
		logging.Errorf("Failed to process %s callback: %v", h.provider, err)
		response.HandleError(c, err)
		return
	}

	data := gin.H{"acknowledged": true}
	if outcome != nil {
		data["status"] = outcome.Status
	}
	response.SuccessJSON(c, data)
}

// PaymentRedirect handles the browser returning from the hosted checkout
// page. The reference is verified with the provider, never trusted from the
// query string alone.
// GET /api/payments/callback?reference=xxx (tx_ref for Flutterwave)
func (h *Handler) PaymentRedirect(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		reference = c.Query("tx_ref")
	}
	if reference == "" {
		response.ErrorJSON(c, http.StatusBadRequest, "reference is required")
		return
	}

	status := services.OutcomePending
	outcome, err := h.orchestrator.HandleRedirect(c.Request.Context(), reference)
	switch {
	case err == nil:
		status = outcome.Status
	case errors.Is(err, services.ErrUnknownReference):
		// Never opened by this instance; the subscriber only sees a failed payment
		logging.Warnf("Redirect for unknown reference: %s", reference)
		status = services.OutcomeFailed
	default:
		logging.Warnf("Redirect verification failed - reference: %s, error: %v", reference, err)
	}

	if h.appURL == "" {
		response.SuccessJSON(c, gin.H{
			"reference": reference,
			"status":    status,
		})
		return
	}

	query := url.Values{}
	query.Set("reference", reference)
	query.Set("status", status)
	c.Redirect(http.StatusFound, strings.TrimRight(h.appURL, "/")+"/subscription/result?"+query.Encode())
}
