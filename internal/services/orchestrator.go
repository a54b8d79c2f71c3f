package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"creator-subscription-api/internal/database"
	"creator-subscription-api/internal/gateway"
	"creator-subscription-api/internal/models"
	"creator-subscription-api/pkg/logging"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Outcome statuses reported to the subscriber. A settled subscription may
// also report its stored or effective status, such as expired.
const (
	OutcomeActive  = "active"
	OutcomePending = "pending"
	OutcomeFailed  = "failed"
)

// CheckoutResult is what the subscriber needs to complete payment
type CheckoutResult struct {
	CheckoutURL    string `json:"checkout_url"`
	Reference      string `json:"reference"`
	SubscriptionID string `json:"subscription_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

// Outcome is the result of one verification round
type Outcome struct {
	Status       string               `json:"status"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

// Finished reports whether further polling can change the outcome
func (o *Outcome) Finished() bool {
	return o != nil && o.Status != OutcomePending
}

// Orchestrator drives a subscription from checkout to activation. The
// provider callback and the poller both end in SubscriptionLedger.Reconcile,
// so whichever arrives first activates and the other is a no-op.
type Orchestrator struct {
	db          *gorm.DB
	gateway     gateway.Gateway
	ledger      *SubscriptionLedger
	pricing     *PricingService
	replay      ReplayGuard
	callbackURL string
	now         func() time.Time
}

// NewOrchestrator creates the orchestrator. replay may be nil.
func NewOrchestrator(db *gorm.DB, gw gateway.Gateway, ledger *SubscriptionLedger, pricing *PricingService, replay ReplayGuard, callbackURL string) *Orchestrator {
	return &Orchestrator{
		db:          db,
		gateway:     gw,
		ledger:      ledger,
		pricing:     pricing,
		replay:      replay,
		callbackURL: callbackURL,
		now:         time.Now,
	}
}

// NewReference mints a payment reference of the form sub_<unix-ms>_<random>
func NewReference(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("sub_%d_%s", now.UnixMilli(), random)
}

// InitiateSubscription opens a pending subscription and a checkout session
// for it. amount 0 charges the creator's configured price; an explicit
// amount may not be below it. If the gateway fails the pending record is
// kept and the gateway error is returned.
func (o *Orchestrator) InitiateSubscription(ctx context.Context, subscriber models.Identity, ownerID string, amount int64) (*CheckoutResult, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidAmount)
	}

	price, err := o.pricing.PriceFor(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		amount = price.Amount
	} else if amount < price.Amount {
		return nil, fmt.Errorf("%w: amount is below the creator's price of %d", ErrInvalidAmount, price.Amount)
	}

	reference := NewReference(o.now())

	subscription, err := o.ledger.OpenPending(ctx, subscriber.UserID, ownerID, amount, price.Currency, reference, o.gateway.Name())
	if err != nil {
		return nil, err
	}

	session, err := o.gateway.CreateCheckout(ctx, gateway.CheckoutRequest{
		Reference:   reference,
		PayerID:     subscriber.UserID,
		PayerEmail:  subscriber.Email,
		Amount:      amount,
		Currency:    price.Currency,
		CallbackURL: o.callbackURL,
		Description: "Premium content subscription",
	})
	if err != nil {
		logging.Errorf("Checkout creation failed, pending subscription kept - reference: %s, error: %v", reference, err)
		return nil, err
	}

	return &CheckoutResult{
		CheckoutURL:    session.CheckoutURL,
		Reference:      reference,
		SubscriptionID: subscription.ID,
		Amount:         amount,
		Currency:       price.Currency,
	}, nil
}

// HandleCallback verifies and reconciles a reference named by the provider
func (o *Orchestrator) HandleCallback(ctx context.Context, reference string) (*Outcome, error) {
	return o.verifyAndReconcile(ctx, reference, models.EventSourceCallback, nil)
}

// HandleRedirect verifies and reconciles a reference from the browser
// returning from the hosted checkout page
func (o *Orchestrator) HandleRedirect(ctx context.Context, reference string) (*Outcome, error) {
	return o.verifyAndReconcile(ctx, reference, models.EventSourceRedirect, nil)
}

// PollOnce runs one verification round for the polling fallback
func (o *Orchestrator) PollOnce(ctx context.Context, reference string) (*Outcome, error) {
	return o.verifyAndReconcile(ctx, reference, models.EventSourcePoll, nil)
}

// HandleGatewayCallback authenticates a provider webhook, drops replays and
// reconciles the reference it names. A nil outcome with a nil error means
// the notification was acknowledged without any work. A payment the gateway
// has not settled yet returns ErrPaymentNotSettled so the provider
// redelivers the event.
func (o *Orchestrator) HandleGatewayCallback(ctx context.Context, payload []byte, header http.Header) (*Outcome, error) {
	event, err := o.gateway.ParseCallback(payload, header)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, nil
	}

	if o.replay != nil && event.EventID != "" {
		processed, err := o.replay.Processed(ctx, o.gateway.Name(), event.EventID)
		if err != nil {
			logging.Warnf("Replay guard unavailable, processing callback anyway - event: %s, error: %v", event.EventID, err)
		} else if processed {
			return nil, nil
		}
	}

	outcome, err := o.verifyAndReconcile(ctx, event.Reference, models.EventSourceCallback, event)
	if err == nil && !outcome.Finished() {
		logging.Infof("Callback for unsettled payment, asking for redelivery - reference: %s, event: %s", event.Reference, event.EventID)
		return outcome, fmt.Errorf("%w: reference %s: %w", ErrPaymentNotSettled, event.Reference, gateway.ErrGatewayUnavailable)
	}
	if err != nil && !errors.Is(err, ErrUnknownReference) {
		return outcome, err
	}

	if o.replay != nil && event.EventID != "" {
		if markErr := o.replay.MarkProcessed(ctx, o.gateway.Name(), event.EventID); markErr != nil {
			logging.Warnf("Failed to record callback event %s: %v", event.EventID, markErr)
		}
	}
	return outcome, err
}

// verifyAndReconcile runs one verification round. event is set for provider
// callbacks and lets adapters verify by the transaction id it carries.
func (o *Orchestrator) verifyAndReconcile(ctx context.Context, reference, source string, event *gateway.CallbackEvent) (*Outcome, error) {
	eventID := ""
	if event != nil {
		eventID = event.EventID
	}

	subscription, err := o.ledger.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, ErrUnknownReference) {
			logging.Warnf("Verification for unknown reference - reference: %s, source: %s", reference, source)
			o.recordEvent(reference, source, eventID, nil, "unknown_reference", "")
		}
		return nil, err
	}

	if subscription.Status != models.SubscriptionPending {
		return &Outcome{Status: subscription.Status, Subscription: subscription}, nil
	}

	verification, err := o.verify(ctx, reference, event)
	if errors.Is(err, gateway.ErrReferenceNotFound) {
		o.recordEvent(reference, source, eventID, nil, OutcomePending, "reference not yet known to gateway")
		return &Outcome{Status: OutcomePending, Subscription: subscription}, nil
	}
	if err != nil {
		o.recordEvent(reference, source, eventID, nil, "error", err.Error())
		return nil, err
	}

	switch verification.Status {
	case gateway.StatusSuccessful:
		updated, err := o.ledger.Reconcile(ctx, reference, verification.Amount)
		if errors.Is(err, ErrAmountMismatch) {
			logging.Errorf("Payment rejected on amount mismatch - reference: %s, error: %v", reference, err)
			o.recordEvent(reference, source, eventID, verification, "amount_mismatch", err.Error())
			return &Outcome{Status: OutcomeFailed, Subscription: subscription}, nil
		}
		if err != nil {
			o.recordEvent(reference, source, eventID, verification, "error", err.Error())
			return nil, err
		}
		o.recordEvent(reference, source, eventID, verification, updated.Status, "")
		return &Outcome{Status: updated.EffectiveStatus(o.now().UTC()), Subscription: updated}, nil

	case gateway.StatusFailed:
		o.recordEvent(reference, source, eventID, verification, OutcomeFailed, "")
		return &Outcome{Status: OutcomeFailed, Subscription: subscription}, nil

	default:
		o.recordEvent(reference, source, eventID, verification, OutcomePending, "")
		return &Outcome{Status: OutcomePending, Subscription: subscription}, nil
	}
}

func (o *Orchestrator) verify(ctx context.Context, reference string, event *gateway.CallbackEvent) (*gateway.Verification, error) {
	if cv, ok := o.gateway.(gateway.CallbackVerifier); ok && event != nil {
		return cv.VerifyCallback(ctx, event)
	}
	return o.gateway.VerifyTransaction(ctx, reference)
}

// recordEvent writes the audit row for one verification. Failures are logged only.
func (o *Orchestrator) recordEvent(reference, source, eventID string, verification *gateway.Verification, outcome, detail string) {
	event := &models.PaymentEvent{
		Provider:  o.gateway.Name(),
		Reference: reference,
		Source:    source,
		Outcome:   outcome,
		Detail:    detail,
	}
	if eventID != "" {
		event.EventID = &eventID
	}
	if verification != nil {
		event.GatewayStatus = verification.Status
		event.GatewayAmount = verification.Amount
		event.Currency = verification.Currency
	}

	if err := database.CreatePaymentEvent(o.db, event); err != nil {
		logging.Errorf("Failed to record payment event - reference: %s, error: %v", reference, err)
	}
}

// PaymentEvents returns the verification history of a reference
func (o *Orchestrator) PaymentEvents(ctx context.Context, reference string) ([]models.PaymentEvent, error) {
	events, err := database.GetPaymentEventsByReference(o.db.WithContext(ctx), reference)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment events: %w", err)
	}
	return events, nil
}
