package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
	"github.com/stripe/stripe-go/v75/webhook"
)

// StripeGateway creates Stripe Checkout sessions in payment mode and
// verifies them through the payment intent search API, keyed on the
// reference stored in the intent metadata. Callbacks are verified by the
// payment intent id in the session payload.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway creates a Stripe adapter. Passing nil backends uses the
// default Stripe API endpoints.
func NewStripeGateway(secretKey, webhookSecret string, backends *stripe.Backends) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeGateway{
		api:           api,
		webhookSecret: webhookSecret,
	}
}

func (g *StripeGateway) Name() string {
	return "stripe"
}

// CreateCheckout opens a hosted checkout page for a single payment
func (g *StripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if err := validateCheckout(req); err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = "Premium content subscription"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(withQuery(req.CallbackURL, "reference", req.Reference)),
		CancelURL:         stripe.String(withQuery(withQuery(req.CallbackURL, "reference", req.Reference), "canceled", "1")),
		ClientReferenceID: stripe.String(req.Reference),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(toMinorUnits(req.Amount, req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"reference":     req.Reference,
				"subscriber_id": req.PayerID,
			},
		},
	}
	if req.PayerEmail != "" {
		params.CustomerEmail = stripe.String(req.PayerEmail)
	}
	params.AddMetadata("reference", req.Reference)
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, classifyStripeError(err)
	}

	return &CheckoutSession{
		CheckoutURL: s.URL,
		Reference:   req.Reference,
		SessionID:   s.ID,
	}, nil
}

// VerifyTransaction searches payment intents by reference metadata. Stripe
// search is eventually consistent, so an empty result is reported as
// ErrReferenceNotFound rather than a failure.
func (g *StripeGateway) VerifyTransaction(ctx context.Context, reference string) (*Verification, error) {
	params := &stripe.PaymentIntentSearchParams{}
	params.SearchParams.Query = fmt.Sprintf("metadata['reference']:'%s'", strings.ReplaceAll(reference, "'", "\\'"))
	params.SearchParams.Context = ctx

	iter := g.api.PaymentIntents.Search(params)

	var best *stripe.PaymentIntent
	for iter.Next() {
		pi := iter.PaymentIntent()
		if best == nil || stripeStatusRank(pi) > stripeStatusRank(best) {
			best = pi
		}
	}
	if err := iter.Err(); err != nil {
		return nil, classifyStripeError(err)
	}
	if best == nil {
		return nil, ErrReferenceNotFound
	}

	return stripeVerification(reference, best), nil
}

// VerifyCallback fetches the payment intent named by a checkout session
// event. Unlike search, a direct read sees the intent immediately.
func (g *StripeGateway) VerifyCallback(ctx context.Context, event *CallbackEvent) (*Verification, error) {
	if event.ProviderID == "" {
		return g.VerifyTransaction(ctx, event.Reference)
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(event.ProviderID, params)
	if err != nil {
		return nil, classifyStripeError(err)
	}
	if ref := pi.Metadata["reference"]; ref != "" && ref != event.Reference {
		return nil, fmt.Errorf("%w: payment intent %s belongs to reference %s", ErrInvalidCallback, pi.ID, ref)
	}

	return stripeVerification(event.Reference, pi), nil
}

func stripeVerification(reference string, pi *stripe.PaymentIntent) *Verification {
	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	currency := strings.ToUpper(string(pi.Currency))

	return &Verification{
		Reference:  reference,
		Status:     normalizeStripeStatus(pi),
		Amount:     fromMinorUnits(amount, currency),
		Currency:   currency,
		ProviderID: pi.ID,
	}
}

// ParseCallback verifies the Stripe-Signature header and extracts the
// reference from checkout session events
func (g *StripeGateway) ParseCallback(payload []byte, header http.Header) (*CallbackEvent, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidCallback)
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		header.Get("Stripe-Signature"),
		g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}

	switch string(event.Type) {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("%w: failed to parse session: %v", ErrInvalidCallback, err)
		}
		reference := session.ClientReferenceID
		if reference == "" && session.Metadata != nil {
			reference = session.Metadata["reference"]
		}
		if reference == "" {
			return nil, nil
		}
		callback := &CallbackEvent{
			EventID:   event.ID,
			Type:      string(event.Type),
			Reference: reference,
		}
		if session.PaymentIntent != nil {
			callback.ProviderID = session.PaymentIntent.ID
		}
		return callback, nil
	default:
		// Acknowledge unknown events to avoid retries
		return nil, nil
	}
}

func classifyStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if statusErr := classifyStatus(stripeErr.HTTPStatusCode); statusErr != nil {
			return fmt.Errorf("%w: %s", statusErr, stripeErr.Msg)
		}
	}
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}

func normalizeStripeStatus(pi *stripe.PaymentIntent) string {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSuccessful
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		// A declined attempt returns the intent to requires_payment_method
		if pi.LastPaymentError != nil {
			return StatusFailed
		}
		return StatusPending
	default:
		return StatusPending
	}
}

// stripeStatusRank orders intents so a succeeded one always wins
func stripeStatusRank(pi *stripe.PaymentIntent) int {
	switch normalizeStripeStatus(pi) {
	case StatusSuccessful:
		return 2
	case StatusPending:
		return 1
	default:
		return 0
	}
}

var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true,
	"KMF": true, "KRW": true, "MGA": true, "PYG": true, "RWF": true,
	"UGX": true, "VND": true, "VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

func toMinorUnits(amount int64, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return amount
	}
	return amount * 100
}

func fromMinorUnits(amount int64, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return amount
	}
	return amount / 100
}

func withQuery(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
