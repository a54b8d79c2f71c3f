// Package gateway wraps the external payment providers behind one contract:
// create a checkout session for a caller-minted reference, verify a
// transaction by that reference, and authenticate provider callbacks.
package gateway

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrGatewayUnavailable is returned for network failures and 5xx responses. Retryable.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected is returned for 4xx and validation failures. Not retryable.
	ErrGatewayRejected = errors.New("payment gateway rejected the request")
	// ErrReferenceNotFound means the gateway has no record of the reference yet
	ErrReferenceNotFound = errors.New("payment reference not found at gateway")
	// ErrInvalidCallback is returned when a callback fails authentication or parsing
	ErrInvalidCallback = errors.New("invalid payment callback")
)

// Transaction statuses reported by VerifyTransaction
const (
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
	StatusPending    = "pending"
)

// CheckoutRequest describes the payment the subscriber is asked to make
type CheckoutRequest struct {
	Reference   string
	PayerID     string
	PayerEmail  string
	Amount      int64
	Currency    string
	CallbackURL string
	Description string
}

// CheckoutSession is the gateway-side artifact handed back to the subscriber
type CheckoutSession struct {
	CheckoutURL string
	Reference   string
	SessionID   string
}

// Verification is the gateway's view of a transaction
type Verification struct {
	Reference  string
	Status     string
	Amount     int64
	Currency   string
	ProviderID string
}

// CallbackEvent is an authenticated provider notification. ProviderID is
// the provider's own transaction id when the payload carries one.
type CallbackEvent struct {
	EventID    string
	Type       string
	Reference  string
	ProviderID string
}

// Gateway is implemented by each payment provider adapter
type Gateway interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	// VerifyTransaction is read-only and safe to call repeatedly
	VerifyTransaction(ctx context.Context, reference string) (*Verification, error)
	// ParseCallback authenticates a webhook payload. A nil event with nil
	// error means the notification is valid but irrelevant.
	ParseCallback(payload []byte, header http.Header) (*CallbackEvent, error)
}

// CallbackVerifier is implemented by adapters that can verify a callback by
// the transaction id it names instead of a reference lookup
type CallbackVerifier interface {
	VerifyCallback(ctx context.Context, event *CallbackEvent) (*Verification, error)
}

func validateCheckout(req CheckoutRequest) error {
	if req.Reference == "" {
		return errors.Join(ErrGatewayRejected, errors.New("reference is required"))
	}
	if req.Amount <= 0 {
		return errors.Join(ErrGatewayRejected, errors.New("amount must be positive"))
	}
	if req.Currency == "" {
		return errors.Join(ErrGatewayRejected, errors.New("currency is required"))
	}
	return nil
}

// classifyStatus maps an HTTP status code onto the adapter error taxonomy
func classifyStatus(code int) error {
	switch {
	case code >= 500:
		return ErrGatewayUnavailable
	case code == http.StatusTooManyRequests:
		return ErrGatewayUnavailable
	case code >= 400:
		return ErrGatewayRejected
	default:
		return nil
	}
}
