package response

import (
	"errors"
	"net/http"

	"creator-subscription-api/internal/gateway"
	"creator-subscription-api/internal/services"
	"creator-subscription-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success returns a success response
func Success(data interface{}) Response {
	return Response{
		Success: true,
		Message: "success",
		Data:    data,
	}
}

// Error returns an error response
func Error(message string) Response {
	return Response{
		Success: false,
		Message: message,
	}
}

// JSON sends a JSON response
func JSON(c *gin.Context, statusCode int, response Response) {
	c.JSON(statusCode, response)
}

// SuccessJSON sends a success JSON response
func SuccessJSON(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, Success(data))
}

// CreatedJSON sends a 201 success JSON response
func CreatedJSON(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, Success(data))
}

// ErrorJSON sends an error JSON response
func ErrorJSON(c *gin.Context, statusCode int, message string) {
	JSON(c, statusCode, Error(message))
}

// StatusFor maps a service or gateway error to an HTTP status and a
// client-facing message
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrDuplicateReference):
		return http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrUnknownReference):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrWithdrawalNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrPaymentNotSettled):
		return http.StatusServiceUnavailable, "Payment not settled yet, please retry"
	case errors.Is(err, gateway.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, "Payment provider unavailable, please try again"
	case errors.Is(err, gateway.ErrGatewayRejected):
		return http.StatusPaymentRequired, "Payment could not be started"
	case errors.Is(err, gateway.ErrInvalidCallback):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, services.ErrAlreadyDecided),
		errors.Is(err, services.ErrBalanceChanged),
		errors.Is(err, services.ErrLockNotAcquired):
		return http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrSelfSubscription),
		errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, services.ErrInvalidOutcome),
		errors.Is(err, services.ErrPriceTooLow),
		errors.Is(err, services.ErrInvalidRate):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// HandleError writes the mapped error response. Unmapped errors are logged
// and reported without detail.
func HandleError(c *gin.Context, err error) {
	status, message := StatusFor(err)
	if status == http.StatusInternalServerError {
		logging.Errorf("Request failed - path: %s, error: %v", c.FullPath(), err)
	}
	ErrorJSON(c, status, message)
}
