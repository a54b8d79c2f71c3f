package gateway

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FlutterwaveGateway talks to the Flutterwave v3 hosted payments API
type FlutterwaveGateway struct {
	baseURL    string
	secretKey  string
	secretHash string
	httpClient *http.Client
}

// NewFlutterwaveGateway creates a Flutterwave adapter. secretHash is the
// value Flutterwave echoes in the verif-hash header of webhooks.
func NewFlutterwaveGateway(baseURL, secretKey, secretHash string) *FlutterwaveGateway {
	return &FlutterwaveGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		secretHash: secretHash,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (g *FlutterwaveGateway) Name() string {
	return "flutterwave"
}

type flutterwaveEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type flutterwavePaymentRequest struct {
	TxRef          string                 `json:"tx_ref"`
	Amount         int64                  `json:"amount"`
	Currency       string                 `json:"currency"`
	RedirectURL    string                 `json:"redirect_url"`
	Customer       flutterwaveCustomer    `json:"customer"`
	Customizations map[string]string      `json:"customizations,omitempty"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
}

type flutterwaveCustomer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type flutterwaveTransaction struct {
	ID       int64   `json:"id"`
	TxRef    string  `json:"tx_ref"`
	Status   string  `json:"status"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// CreateCheckout creates a hosted payment link for the reference
func (g *FlutterwaveGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if err := validateCheckout(req); err != nil {
		return nil, err
	}

	body := flutterwavePaymentRequest{
		TxRef:       req.Reference,
		Amount:      req.Amount,
		Currency:    req.Currency,
		RedirectURL: req.CallbackURL,
		Customer: flutterwaveCustomer{
			Email: req.PayerEmail,
		},
		Customizations: map[string]string{
			"title":       "Premium Content Subscription",
			"description": req.Description,
		},
		Meta: map[string]interface{}{
			"subscriber_id": req.PayerID,
		},
	}

	var envelope flutterwaveEnvelope
	if _, err := g.do(ctx, http.MethodPost, "/v3/payments", body, &envelope); err != nil {
		return nil, err
	}
	if envelope.Status != "success" {
		return nil, fmt.Errorf("%w: %s", ErrGatewayRejected, envelope.Message)
	}

	var data struct {
		Link string `json:"link"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil || data.Link == "" {
		return nil, fmt.Errorf("%w: checkout link missing from response", ErrGatewayUnavailable)
	}

	return &CheckoutSession{
		CheckoutURL: data.Link,
		Reference:   req.Reference,
	}, nil
}

// VerifyTransaction looks the transaction up by tx_ref
func (g *FlutterwaveGateway) VerifyTransaction(ctx context.Context, reference string) (*Verification, error) {
	path := "/v3/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(reference)

	var envelope flutterwaveEnvelope
	if code, err := g.do(ctx, http.MethodGet, path, nil, &envelope); err != nil {
		if errors.Is(err, ErrGatewayRejected) && (code == http.StatusNotFound || isFlutterwaveNotFound(envelope)) {
			return nil, ErrReferenceNotFound
		}
		return nil, err
	}

	var tx flutterwaveTransaction
	if err := json.Unmarshal(envelope.Data, &tx); err != nil {
		return nil, fmt.Errorf("%w: failed to parse transaction: %v", ErrGatewayUnavailable, err)
	}

	return &Verification{
		Reference:  reference,
		Status:     normalizeFlutterwaveStatus(tx.Status),
		Amount:     int64(math.Round(tx.Amount)),
		Currency:   strings.ToUpper(tx.Currency),
		ProviderID: fmt.Sprint(tx.ID),
	}, nil
}

// ParseCallback authenticates a webhook by its verif-hash header
func (g *FlutterwaveGateway) ParseCallback(payload []byte, header http.Header) (*CallbackEvent, error) {
	signature := header.Get("verif-hash")
	if g.secretHash == "" || subtle.ConstantTimeCompare([]byte(signature), []byte(g.secretHash)) != 1 {
		return nil, fmt.Errorf("%w: verif-hash mismatch", ErrInvalidCallback)
	}

	var body struct {
		Event string                 `json:"event"`
		Data  flutterwaveTransaction `json:"data"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}

	if body.Event != "charge.completed" || body.Data.TxRef == "" {
		return nil, nil
	}

	return &CallbackEvent{
		EventID:   fmt.Sprintf("%s:%d", body.Event, body.Data.ID),
		Type:      body.Event,
		Reference: body.Data.TxRef,
	}, nil
}

// do sends a JSON request. On a non-2xx status the decoded envelope (if
// any) is still written to out so callers can inspect the message.
func (g *FlutterwaveGateway) do(ctx context.Context, method, path string, in interface{}, out *flutterwaveEnvelope) (int, error) {
	var reader io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("%w: failed to marshal request: %v", ErrGatewayRejected, err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create request: %v", ErrGatewayRejected, err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read response: %v", ErrGatewayUnavailable, err)
	}

	decodeErr := json.Unmarshal(body, out)

	if statusErr := classifyStatus(resp.StatusCode); statusErr != nil {
		return resp.StatusCode, fmt.Errorf("%w: status %d: %s", statusErr, resp.StatusCode, out.Message)
	}
	if decodeErr != nil {
		return resp.StatusCode, fmt.Errorf("%w: failed to parse response: %v", ErrGatewayUnavailable, decodeErr)
	}
	return resp.StatusCode, nil
}

func isFlutterwaveNotFound(envelope flutterwaveEnvelope) bool {
	return strings.Contains(strings.ToLower(envelope.Message), "no transaction")
}

func normalizeFlutterwaveStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "successful":
		return StatusSuccessful
	case "failed", "cancelled":
		return StatusFailed
	default:
		return StatusPending
	}
}
