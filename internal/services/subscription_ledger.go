package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creator-subscription-api/internal/config"
	"creator-subscription-api/internal/database"
	"creator-subscription-api/internal/models"
	"creator-subscription-api/pkg/logging"

	"gorm.io/gorm"
)

// SubscriptionLedger owns the subscription lifecycle: pending on checkout,
// active once a payment is verified, expired when expires_at passes.
type SubscriptionLedger struct {
	db             *gorm.DB
	bus            *ActivationBus
	validity       time.Duration
	mismatchPolicy string
	now            func() time.Time
}

// NewSubscriptionLedger creates a ledger. mismatchPolicy is
// config.MismatchPolicyLog or config.MismatchPolicyReject.
func NewSubscriptionLedger(db *gorm.DB, bus *ActivationBus, validity time.Duration, mismatchPolicy string) *SubscriptionLedger {
	if bus == nil {
		bus = NewActivationBus()
	}
	return &SubscriptionLedger{
		db:             db,
		bus:            bus,
		validity:       validity,
		mismatchPolicy: mismatchPolicy,
		now:            time.Now,
	}
}

// OpenPending records the subscriber's intent before any gateway call is made
func (l *SubscriptionLedger) OpenPending(ctx context.Context, subscriberID, ownerID string, amount int64, currency, reference, provider string) (*models.Subscription, error) {
	if subscriberID == "" || ownerID == "" || reference == "" {
		return nil, fmt.Errorf("%w: subscriber, owner and reference are required", ErrInvalidRequest)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	if subscriberID == ownerID {
		return nil, ErrSelfSubscription
	}

	db := l.db.WithContext(ctx)

	if _, err := database.GetSubscriptionByReference(db, reference); err == nil {
		return nil, ErrDuplicateReference
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check reference: %w", err)
	}

	subscription := &models.Subscription{
		SubscriberID:     subscriberID,
		OwnerID:          ownerID,
		AmountPaid:       amount,
		Currency:         currency,
		PaymentReference: reference,
		Provider:         provider,
		Status:           models.SubscriptionPending,
	}
	if err := database.CreateSubscription(db, subscription); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateReference
		}
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	logging.WithFields(map[string]interface{}{
		"reference":     reference,
		"owner_id":      ownerID,
		"subscriber_id": subscriberID,
		"amount":        amount,
	}).Info("Pending subscription opened")

	return subscription, nil
}

// Reconcile applies the pending→active transition for a verified payment.
// Only one caller per reference wins the transition; every other caller
// gets the current record back unchanged.
func (l *SubscriptionLedger) Reconcile(ctx context.Context, reference string, verifiedAmount int64) (*models.Subscription, error) {
	var (
		result    *models.Subscription
		activated *models.SubscriptionActivated
	)

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := database.GetSubscriptionByReference(tx, reference)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownReference
		}
		if err != nil {
			return fmt.Errorf("failed to load subscription: %w", err)
		}

		if subscription.Status != models.SubscriptionPending {
			result = subscription
			return nil
		}

		if verifiedAmount != subscription.AmountPaid {
			if l.mismatchPolicy == config.MismatchPolicyReject {
				return fmt.Errorf("%w: expected %d, gateway reported %d", ErrAmountMismatch, subscription.AmountPaid, verifiedAmount)
			}
			logging.Warnf("Amount mismatch on reconcile - reference: %s, stored: %d, verified: %d",
				reference, subscription.AmountPaid, verifiedAmount)
		}

		now := l.now().UTC()
		expiresAt := now.Add(l.validity)

		rows, err := database.ActivatePendingSubscription(tx, reference, now, expiresAt)
		if err != nil {
			return fmt.Errorf("failed to activate subscription: %w", err)
		}
		if rows == 0 {
			// Another caller activated it between our read and our write
			current, err := database.GetSubscriptionByReference(tx, reference)
			if err != nil {
				return fmt.Errorf("failed to reload subscription: %w", err)
			}
			result = current
			return nil
		}

		subscription.Status = models.SubscriptionActive
		subscription.ActivatedAt = &now
		subscription.ExpiresAt = &expiresAt
		subscription.UpdatedAt = now

		event := models.SubscriptionActivated{
			SubscriptionID: subscription.ID,
			OwnerID:        subscription.OwnerID,
			SubscriberID:   subscription.SubscriberID,
			Amount:         subscription.AmountPaid,
			Currency:       subscription.Currency,
			Reference:      reference,
			ActivatedAt:    now,
			ExpiresAt:      expiresAt,
		}
		if err := l.bus.publishInTx(ctx, tx, event); err != nil {
			return fmt.Errorf("activation handler failed: %w", err)
		}

		result = subscription
		activated = &event
		return nil
	})
	if err != nil {
		return nil, err
	}

	if activated != nil {
		logging.WithFields(map[string]interface{}{
			"reference":       reference,
			"subscription_id": activated.SubscriptionID,
			"owner_id":        activated.OwnerID,
		}).Info("Subscription activated")
		l.bus.publishAfterCommit(ctx, *activated)
	}

	return result, nil
}

// QueryActiveFor returns the subscription currently granting the subscriber
// access to the owner, or nil when there is none
func (l *SubscriptionLedger) QueryActiveFor(ctx context.Context, subscriberID, ownerID string) (*models.Subscription, error) {
	subscription, err := database.GetActiveSubscription(l.db.WithContext(ctx), subscriberID, ownerID, l.now().UTC())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active subscription: %w", err)
	}
	return subscription, nil
}

// GetByReference returns the subscription with its effective status
func (l *SubscriptionLedger) GetByReference(ctx context.Context, reference string) (*models.Subscription, error) {
	subscription, err := database.GetSubscriptionByReference(l.db.WithContext(ctx), reference)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownReference
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	subscription.Status = subscription.EffectiveStatus(l.now().UTC())
	return subscription, nil
}

// ListForSubscriber returns a subscriber's subscriptions, newest first
func (l *SubscriptionLedger) ListForSubscriber(ctx context.Context, subscriberID string) ([]models.Subscription, error) {
	subscriptions, err := database.GetSubscriberSubscriptions(l.db.WithContext(ctx), subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	now := l.now().UTC()
	for i := range subscriptions {
		subscriptions[i].Status = subscriptions[i].EffectiveStatus(now)
	}
	return subscriptions, nil
}

// ListSubscribersOf returns the subscriptions currently active for an owner
func (l *SubscriptionLedger) ListSubscribersOf(ctx context.Context, ownerID string) ([]models.Subscription, error) {
	subscriptions, err := database.GetOwnerActiveSubscriptions(l.db.WithContext(ctx), ownerID, l.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subscriptions, nil
}

// ExpireLapsed persists the expired status for active subscriptions past
// their expiry. Reads never depend on it.
func (l *SubscriptionLedger) ExpireLapsed(ctx context.Context) (int64, error) {
	rows, err := database.ExpireLapsedSubscriptions(l.db.WithContext(ctx), l.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire subscriptions: %w", err)
	}
	return rows, nil
}
